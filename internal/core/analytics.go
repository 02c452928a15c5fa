package core

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/valter-silva-au/critical-claude/internal/storage"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// AnalyticsCollection is the storage collection holding usage metrics.
const AnalyticsCollection = "analytics"

// DefaultMaxMetrics caps the analytics collection when no limit is configured.
const DefaultMaxMetrics = 1000

const recentErrorCount = 5

// AnalyticsService records command usage and summarizes it.
type AnalyticsService interface {
	Record(m models.UsageMetric) (*models.UsageMetric, error)
	Metrics() ([]models.UsageMetric, error)
	Stats() (*models.UsageStats, error)
	Export(format ExportFormat) ([]byte, error)
	Clear() (int, error)
}

type analyticsService struct {
	metrics    *storage.Collection[models.UsageMetric]
	maxMetrics int
	logger     *log.Logger
	now        func() time.Time
}

// NewAnalyticsService creates an AnalyticsService keeping at most maxMetrics
// entries; older ones are pruned first.
func NewAnalyticsService(engine storage.Engine, maxMetrics int, logger *log.Logger) AnalyticsService {
	if maxMetrics <= 0 {
		maxMetrics = DefaultMaxMetrics
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &analyticsService{
		metrics:    storage.NewCollection[models.UsageMetric](engine, AnalyticsCollection),
		maxMetrics: maxMetrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Record assigns an ID and timestamp when missing, stores the metric and
// prunes the collection back to its cap.
func (s *analyticsService) Record(m models.UsageMetric) (*models.UsageMetric, error) {
	if strings.TrimSpace(m.Command) == "" {
		return nil, fmt.Errorf("%w: metric command must not be empty", ErrValidation)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	if err := s.metrics.Put(m.ID, m); err != nil {
		return nil, fmt.Errorf("recording metric: %w", err)
	}
	if err := s.prune(); err != nil {
		return nil, fmt.Errorf("pruning metrics: %w", err)
	}
	return &m, nil
}

func (s *analyticsService) prune() error {
	all, err := s.Metrics()
	if err != nil {
		return err
	}
	excess := len(all) - s.maxMetrics
	for i := 0; i < excess; i++ {
		if _, err := s.metrics.Delete(all[i].ID); err != nil {
			return err
		}
	}
	if excess > 0 {
		s.logger.Debug("pruned usage metrics", "removed", excess)
	}
	return nil
}

// Metrics returns every stored metric, oldest first.
func (s *analyticsService) Metrics() ([]models.UsageMetric, error) {
	all, _, err := s.metrics.All()
	if err != nil {
		return nil, fmt.Errorf("loading metrics: %w", err)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].ID < all[j].ID
		}
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return all, nil
}

// Stats summarizes the stored metrics.
func (s *analyticsService) Stats() (*models.UsageStats, error) {
	all, err := s.Metrics()
	if err != nil {
		return nil, err
	}

	stats := &models.UsageStats{CommandCounts: make(map[string]int)}
	if len(all) == 0 {
		return stats, nil
	}

	var totalMs int64
	for _, m := range all {
		stats.TotalCommands++
		if m.Success {
			stats.Successful++
		} else {
			stats.Failed++
		}
		totalMs += m.ExecutionTimeMs
		stats.CommandCounts[m.Command]++
	}
	stats.SuccessRate = float64(stats.Successful) / float64(stats.TotalCommands) * 100
	stats.AvgExecutionMs = float64(totalMs) / float64(stats.TotalCommands)

	best := 0
	for cmd, n := range stats.CommandCounts {
		if n > best || (n == best && cmd < stats.MostUsedCommand) {
			best = n
			stats.MostUsedCommand = cmd
		}
	}

	for i := len(all) - 1; i >= 0 && len(stats.RecentErrors) < recentErrorCount; i-- {
		if !all[i].Success {
			stats.RecentErrors = append(stats.RecentErrors, all[i])
		}
	}

	first, last := all[0].Timestamp, all[len(all)-1].Timestamp
	stats.FirstRecorded = &first
	stats.LastRecorded = &last
	return stats, nil
}

// Export renders every metric as JSON or CSV.
func (s *analyticsService) Export(format ExportFormat) ([]byte, error) {
	all, err := s.Metrics()
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding metrics: %w", err)
		}
		return append(data, '\n'), nil
	case FormatCSV:
		var b strings.Builder
		row := func(fields ...string) {
			for i, f := range fields {
				if i > 0 {
					b.WriteString(",")
				}
				b.WriteString(quoteCSV(f))
			}
			b.WriteString("\n")
		}
		row("id", "command", "action", "success", "executionTime", "timestamp", "error")
		for _, m := range all {
			row(m.ID, m.Command, m.Action, strconv.FormatBool(m.Success),
				strconv.FormatInt(m.ExecutionTimeMs, 10), m.Timestamp.Format(time.RFC3339), m.Error)
		}
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("%w: metrics export supports json and csv, got %q", ErrValidation, format)
	}
}

// Clear deletes every metric and returns how many were removed.
func (s *analyticsService) Clear() (int, error) {
	s.metrics.Invalidate()
	all, _, err := s.metrics.All()
	if err != nil {
		return 0, fmt.Errorf("clearing metrics: %w", err)
	}
	removed := 0
	for _, m := range all {
		ok, err := s.metrics.Delete(m.ID)
		if err != nil {
			return removed, fmt.Errorf("clearing metrics: %w", err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
