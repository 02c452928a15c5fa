package observability

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// MetricSink stores usage metrics. core.AnalyticsService satisfies it.
type MetricSink interface {
	Record(m models.UsageMetric) (*models.UsageMetric, error)
}

// UsageRecorder records one metric per executed command. It is a side
// channel: it never returns an error and never panics into its caller.
type UsageRecorder struct {
	sink    MetricSink
	enabled bool
	logger  *log.Logger
}

// NewUsageRecorder creates a UsageRecorder. A nil sink or enabled=false makes
// every call a no-op.
func NewUsageRecorder(sink MetricSink, enabled bool, logger *log.Logger) *UsageRecorder {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &UsageRecorder{sink: sink, enabled: enabled && sink != nil, logger: logger}
}

// Enabled reports whether metrics are being recorded.
func (u *UsageRecorder) Enabled() bool {
	return u != nil && u.enabled
}

// RecordCommand stores the outcome of a command that started at start.
func (u *UsageRecorder) RecordCommand(command, action string, start time.Time, cmdErr error) {
	if !u.Enabled() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			u.logger.Debug("usage recording panicked", "panic", r)
		}
	}()

	m := models.UsageMetric{
		Command:         command,
		Action:          action,
		Success:         cmdErr == nil,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
	if cmdErr != nil {
		m.Error = cmdErr.Error()
	}
	if _, err := u.sink.Record(m); err != nil {
		u.logger.Debug("usage recording failed", "command", command, "err", err)
	}
}
