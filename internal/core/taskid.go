package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

// The counter file holds the last number issued. The lock file serializes
// cc processes sharing a data directory.
const (
	counterFileName = ".task_counter"
	counterLockName = ".task_counter.lock"
)

// TaskIDGenerator hands out sequential task IDs.
type TaskIDGenerator interface {
	GenerateTaskID() (string, error)
}

type counterIDGenerator struct {
	mu     sync.Mutex
	dir    string
	prefix string
	pad    int
}

// NewTaskIDGenerator creates a TaskIDGenerator whose counter lives in
// dataDir. padWidth zero-pads the number (5 gives CC-00001); 0 disables it.
func NewTaskIDGenerator(dataDir string, prefix string, padWidth int) TaskIDGenerator {
	if prefix == "" {
		prefix = "CC"
	}
	return &counterIDGenerator{dir: dataDir, prefix: prefix, pad: padWidth}
}

func (g *counterIDGenerator) GenerateTaskID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := os.MkdirAll(g.dir, 0o750); err != nil {
		return "", fmt.Errorf("generating task id: %w", err)
	}

	var next int
	err := withFileLock(filepath.Join(g.dir, counterLockName), func() error {
		path := filepath.Join(g.dir, counterFileName)
		last, err := readCounter(path)
		if err != nil {
			return err
		}
		next = last + 1
		return writeCounter(path, next)
	})
	if err != nil {
		return "", fmt.Errorf("generating task id: %w", err)
	}
	return formatTaskID(g.prefix, g.pad, next), nil
}

// formatTaskID renders PREFIX-NNNNN; a zero width prints the bare number.
func formatTaskID(prefix string, width, n int) string {
	return fmt.Sprintf("%s-%0*d", prefix, width, n)
}

func readCounter(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", counterFileName, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s holds %q, expected a non-negative number", counterFileName, text)
	}
	return n, nil
}

func writeCounter(path string, n int) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(n)), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", counterFileName, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", counterFileName, err)
	}
	return nil
}

// withFileLock runs fn while holding an exclusive flock on path.
func withFileLock(path string, fn func() error) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("opening lock file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN) }()

	return fn()
}
