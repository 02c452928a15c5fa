package core

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// ExportFormat names a task export/import encoding.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatCSV      ExportFormat = "csv"
	FormatMarkdown ExportFormat = "markdown"
)

// ParseExportFormat accepts json, csv, markdown and md.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q (json, csv, markdown)", ErrValidation, s)
	}
}

// ImportOptions controls ImportTasks.
type ImportOptions struct {
	// Overwrite replaces existing tasks that share an ID with an imported record.
	Overwrite bool
}

// ImportReport summarizes an import. Each record either lands in Imported or
// is counted in Skipped with a matching line in Errors.
type ImportReport struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
	IDs      []string `json:"ids,omitempty"`
}

func (r *ImportReport) skip(format string, args ...any) {
	r.Skipped++
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

var csvHeader = []string{
	"id", "title", "description", "status", "priority", "labels",
	"assignee", "estimatedHours", "draft", "createdAt", "updatedAt",
}

// ExportTasks renders the tasks selected by filter in the given format.
func (s *taskService) ExportTasks(format ExportFormat, filter TaskFilter) ([]byte, error) {
	tasks, err := s.ListTasks(filter)
	if err != nil {
		return nil, fmt.Errorf("exporting tasks: %w", err)
	}

	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(tasks, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding tasks as json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatCSV:
		return tasksToCSV(tasks), nil
	case FormatMarkdown:
		return tasksToMarkdown(tasks, s.now()), nil
	default:
		return nil, fmt.Errorf("exporting tasks: %w: unsupported format %q", ErrValidation, format)
	}
}

// quoteCSV wraps a field in double quotes, doubling embedded quotes.
func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatHours(h *float64) string {
	if h == nil {
		return ""
	}
	return strconv.FormatFloat(*h, 'f', -1, 64)
}

// tasksToCSV quotes every field; encoding/csv only quotes when needed.
func tasksToCSV(tasks []models.Task) []byte {
	var buf bytes.Buffer
	writeRow := func(fields []string) {
		quoted := make([]string, len(fields))
		for i, f := range fields {
			quoted[i] = quoteCSV(f)
		}
		buf.WriteString(strings.Join(quoted, ","))
		buf.WriteString("\n")
	}

	writeRow(csvHeader)
	for _, t := range tasks {
		writeRow([]string{
			t.ID,
			t.Title,
			t.Description,
			string(t.Status),
			string(t.Priority),
			strings.Join(t.Labels, ","),
			t.Assignee,
			formatHours(t.EstimatedHours),
			strconv.FormatBool(t.Draft),
			t.CreatedAt.Format(time.RFC3339),
			t.UpdatedAt.Format(time.RFC3339),
		})
	}
	return buf.Bytes()
}

func tasksToMarkdown(tasks []models.Task, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("# Task Export\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", now.Format(time.RFC3339))

	byStatus := make(map[models.Status][]models.Task)
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}

	b.WriteString("## Summary\n\n")
	b.WriteString("| Status | Count |\n|---|---|\n")
	for _, st := range models.AllStatuses {
		fmt.Fprintf(&b, "| %s %s | %d |\n", st.Icon(), st, len(byStatus[st]))
	}
	fmt.Fprintf(&b, "| **Total** | **%d** |\n", len(tasks))

	for _, st := range models.AllStatuses {
		group := byStatus[st]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s %s (%d)\n\n", st.Icon(), st, len(group))
		for _, t := range group {
			fmt.Fprintf(&b, "- **%s** %s %s", t.ID, t.Priority.Icon(), t.Title)
			if len(t.Labels) > 0 {
				fmt.Fprintf(&b, " `%s`", strings.Join(t.Labels, "` `"))
			}
			if t.Assignee != "" {
				fmt.Fprintf(&b, " @%s", t.Assignee)
			}
			if t.EstimatedHours != nil {
				fmt.Fprintf(&b, " (%sh)", formatHours(t.EstimatedHours))
			}
			b.WriteString("\n")
			if t.Description != "" {
				for _, line := range strings.Split(t.Description, "\n") {
					fmt.Fprintf(&b, "  > %s\n", line)
				}
			}
		}
	}
	return []byte(b.String())
}

// importRecord is the loose shape accepted on import. Enumerations are kept as
// strings so bad values are reported per record instead of failing the batch.
type importRecord struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	Labels         []string   `json:"labels"`
	Assignee       string     `json:"assignee"`
	EstimatedHours *float64   `json:"estimatedHours"`
	Draft          bool       `json:"draft"`
	CreatedAt      *time.Time `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

// ImportTasks reads task-like records and stores the valid ones.
func (s *taskService) ImportTasks(data []byte, format ExportFormat, opts ImportOptions) (*ImportReport, error) {
	var (
		records []importRecord
		report  = &ImportReport{}
	)

	switch format {
	case FormatJSON, "":
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("importing tasks: %w: expected a JSON array: %v", ErrValidation, err)
		}
		for i, raw := range raws {
			var rec importRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				report.skip("record %d: %v", i+1, err)
				continue
			}
			records = append(records, rec)
		}
	case FormatCSV:
		var err error
		records, err = parseCSVRecords(data, report)
		if err != nil {
			return nil, fmt.Errorf("importing tasks: %w", err)
		}
	default:
		return nil, fmt.Errorf("importing tasks: %w: unsupported format %q", ErrValidation, format)
	}

	for i, rec := range records {
		task, err := s.storeImported(rec, opts)
		if err != nil {
			label := rec.ID
			if label == "" {
				label = fmt.Sprintf("record %d", i+1)
			}
			report.skip("%s: %v", label, err)
			continue
		}
		report.Imported++
		report.IDs = append(report.IDs, task.ID)
	}

	s.logger.Debug("tasks imported", "imported", report.Imported, "skipped", report.Skipped)
	return report, nil
}

func (s *taskService) storeImported(rec importRecord, opts ImportOptions) (*models.Task, error) {
	in := CreateTaskInput{
		Title:          rec.Title,
		Description:    rec.Description,
		Labels:         rec.Labels,
		Assignee:       rec.Assignee,
		EstimatedHours: rec.EstimatedHours,
		Draft:          rec.Draft,
	}
	if rec.Status != "" {
		st, err := models.ParseStatus(rec.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		in.Status = st
	}
	if rec.Priority != "" {
		p, err := models.ParsePriority(rec.Priority)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		in.Priority = p
	}

	task, err := s.buildTask(in)
	if err != nil {
		return nil, err
	}
	if rec.CreatedAt != nil && !rec.CreatedAt.IsZero() {
		task.CreatedAt = rec.CreatedAt.UTC()
	}
	if rec.UpdatedAt != nil && !rec.UpdatedAt.IsZero() {
		task.UpdatedAt = rec.UpdatedAt.UTC()
	}

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id, err = s.nextFreeID()
		if err != nil {
			return nil, err
		}
	} else {
		existing, err := s.tasks.Get(id)
		if err != nil {
			return nil, err
		}
		if existing != nil && !opts.Overwrite {
			return nil, fmt.Errorf("task %s already exists (use overwrite to replace)", id)
		}
	}
	task.ID = id

	if err := s.tasks.Put(task.ID, task); err != nil {
		return nil, err
	}
	return &task, nil
}

// parseCSVRecords maps columns by header name, so column order and extra
// columns do not matter.
func parseCSVRecords(data []byte, report *ImportReport) ([]importRecord, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading csv header: %v", ErrValidation, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols["title"]; !ok {
		return nil, fmt.Errorf("%w: csv header has no title column", ErrValidation)
	}

	var records []importRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			report.skip("line %d: %v", line, err)
			continue
		}
		get := func(name string) string {
			i, ok := cols[strings.ToLower(name)]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		rec := importRecord{
			ID:          get("id"),
			Title:       get("title"),
			Description: get("description"),
			Status:      get("status"),
			Priority:    get("priority"),
			Assignee:    get("assignee"),
		}
		if labels := get("labels"); labels != "" {
			rec.Labels = strings.Split(labels, ",")
		}
		if h := get("estimatedHours"); h != "" {
			v, err := strconv.ParseFloat(h, 64)
			if err != nil {
				report.skip("line %d: invalid estimatedHours %q", line, h)
				continue
			}
			rec.EstimatedHours = &v
		}
		if d := get("draft"); d != "" {
			v, err := strconv.ParseBool(d)
			if err != nil {
				report.skip("line %d: invalid draft %q", line, d)
				continue
			}
			rec.Draft = v
		}
		if ts := get("createdAt"); ts != "" {
			if v, err := time.Parse(time.RFC3339, ts); err == nil {
				rec.CreatedAt = &v
			}
		}
		if ts := get("updatedAt"); ts != "" {
			if v, err := time.Parse(time.RFC3339, ts); err == nil {
				rec.UpdatedAt = &v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// BackupTasks writes every task, archived and drafts included, to a
// timestamped JSON file under backups/ and returns its path.
func (s *taskService) BackupTasks() (string, error) {
	data, err := s.ExportTasks(FormatJSON, TaskFilter{IncludeArchived: true, IncludeDrafts: true, SortBy: SortByCreated, Ascending: true})
	if err != nil {
		return "", fmt.Errorf("backing up tasks: %w", err)
	}

	dir := filepath.Join(s.dataDir, "backups")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	path := filepath.Join(dir, "tasks-"+s.now().Format("20060102T150405.000Z")+".json")

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalizing backup: %w", err)
	}
	s.logger.Debug("tasks backed up", "path", path)
	return path, nil
}
