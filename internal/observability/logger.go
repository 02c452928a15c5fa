package observability

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// LogsDirName is the directory under the data dir that holds log files.
const LogsDirName = "logs"

// ParseLevel maps a config level name to a log level. Unknown or empty names
// fall back to info.
func ParseLevel(level string) log.Level {
	l, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.InfoLevel
	}
	return l
}

// NewLogger builds the process logger writing to w at the given level.
func NewLogger(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = io.Discard
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "cc",
		Level:           ParseLevel(level),
	})
}

// OpenLogFile opens (appending) dataDir/logs/name, creating the directory.
// The caller closes the file.
func OpenLogFile(dataDir, name string) (*os.File, error) {
	dir := filepath.Join(dataDir, LogsDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
