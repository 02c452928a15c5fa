package observability

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/valter-silva-au/critical-claude/pkg/models"
)

type memorySink struct {
	metrics []models.UsageMetric
	err     error
	panics  bool
}

func (s *memorySink) Record(m models.UsageMetric) (*models.UsageMetric, error) {
	if s.panics {
		panic("sink exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	s.metrics = append(s.metrics, m)
	return &m, nil
}

func TestRecordCommand_Success(t *testing.T) {
	sink := &memorySink{}
	r := NewUsageRecorder(sink, true, nil)

	r.RecordCommand("task", "create", time.Now().Add(-25*time.Millisecond), nil)

	if len(sink.metrics) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(sink.metrics))
	}
	m := sink.metrics[0]
	if m.Command != "task" || m.Action != "create" || !m.Success || m.Error != "" {
		t.Errorf("unexpected metric: %+v", m)
	}
	if m.ExecutionTimeMs < 25 {
		t.Errorf("ExecutionTimeMs = %d, want >= 25", m.ExecutionTimeMs)
	}
}

func TestRecordCommand_Failure(t *testing.T) {
	sink := &memorySink{}
	r := NewUsageRecorder(sink, true, nil)

	r.RecordCommand("task", "view", time.Now(), errors.New("task CC-1: not found"))

	if len(sink.metrics) != 1 || sink.metrics[0].Success || sink.metrics[0].Error != "task CC-1: not found" {
		t.Errorf("unexpected metrics: %+v", sink.metrics)
	}
}

func TestRecordCommand_Disabled(t *testing.T) {
	sink := &memorySink{}
	NewUsageRecorder(sink, false, nil).RecordCommand("task", "list", time.Now(), nil)
	if len(sink.metrics) != 0 {
		t.Error("disabled recorder must not record")
	}

	var nilRecorder *UsageRecorder
	nilRecorder.RecordCommand("task", "list", time.Now(), nil)
	NewUsageRecorder(nil, true, nil).RecordCommand("task", "list", time.Now(), nil)
}

func TestRecordCommand_SwallowsSinkFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug")

	NewUsageRecorder(&memorySink{err: errors.New("disk full")}, true, logger).
		RecordCommand("task", "list", time.Now(), nil)
	if !strings.Contains(buf.String(), "disk full") {
		t.Errorf("expected failure to be logged at debug, got %q", buf.String())
	}

	buf.Reset()
	NewUsageRecorder(&memorySink{panics: true}, true, logger).
		RecordCommand("task", "list", time.Now(), nil)
	if !strings.Contains(buf.String(), "sink exploded") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		" WARN ":  log.WarnLevel,
		"error":   log.ErrorLevel,
		"":        log.InfoLevel,
		"verbose": log.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "key=value") || !strings.Contains(out, "cc") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestOpenLogFile(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenLogFile(dir, "viewer.log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.WriteString("line\n"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogsDirName, "viewer.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "line\n" {
		t.Errorf("unexpected log content %q", data)
	}
}
