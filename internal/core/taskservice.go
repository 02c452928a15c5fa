package core

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/valter-silva-au/critical-claude/internal/storage"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// TasksCollection is the storage collection holding tasks.
const TasksCollection = "tasks"

// CreateTaskInput carries the fields accepted when creating a task. Zero
// values select defaults.
type CreateTaskInput struct {
	Title          string
	Description    string
	Status         models.Status
	Priority       models.Priority
	Labels         []string
	Assignee       string
	EstimatedHours *float64
	Draft          bool
}

// TaskPatch lists the fields to change on an existing task. Nil pointers and
// a nil Labels slice leave the field untouched; an empty Labels slice clears it.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *models.Status
	Priority       *models.Priority
	Labels         []string
	Assignee       *string
	EstimatedHours *float64
	Draft          *bool
}

// SortKey selects the field ListTasks orders by.
type SortKey string

const (
	SortByCreated  SortKey = "created"
	SortByUpdated  SortKey = "updated"
	SortByPriority SortKey = "priority"
	SortByTitle    SortKey = "title"
	SortByStatus   SortKey = "status"
)

// ParseSortKey validates a sort key name.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortByCreated, SortByUpdated, SortByPriority, SortByTitle, SortByStatus:
		return k, nil
	case "":
		return SortByCreated, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key %q (created, updated, priority, title, status)", ErrValidation, s)
	}
}

// TaskFilter selects tasks for ListTasks. All specified criteria use AND
// logic: a task must match every one.
type TaskFilter struct {
	Statuses   []models.Status
	Priorities []models.Priority
	Assignee   string
	// Labels matches tasks carrying at least one of the given labels.
	Labels []string
	// Search is a case-insensitive substring matched against title and description.
	Search          string
	IncludeArchived bool
	IncludeDrafts   bool
	SortBy          SortKey
	Ascending       bool
	Limit           int
}

// TaskService defines task lifecycle operations on top of storage.
type TaskService interface {
	CreateTask(in CreateTaskInput) (*models.Task, error)
	GetTask(id string) (*models.Task, error)
	UpdateTask(id string, patch TaskPatch) (*models.Task, error)
	SaveTask(task models.Task) (*models.Task, error)
	DeleteTask(id string) error
	ArchiveTask(id string) (*models.Task, error)
	ToggleStatus(id string) (*models.Task, error)
	ListTasks(filter TaskFilter) ([]models.Task, error)
	ExportTasks(format ExportFormat, filter TaskFilter) ([]byte, error)
	ImportTasks(data []byte, format ExportFormat, opts ImportOptions) (*ImportReport, error)
	BackupTasks() (string, error)
	Reload()
}

// TaskServiceOptions configures NewTaskService.
type TaskServiceOptions struct {
	DefaultPriority models.Priority
	Logger          *log.Logger
}

type taskService struct {
	tasks           *storage.Collection[models.Task]
	dataDir         string
	idGen           TaskIDGenerator
	defaultPriority models.Priority
	logger          *log.Logger
	now             func() time.Time
}

// NewTaskService creates a TaskService persisting to the engine's tasks collection.
func NewTaskService(engine storage.Engine, idGen TaskIDGenerator, opts TaskServiceOptions) TaskService {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	prio := opts.DefaultPriority
	if !prio.Valid() {
		prio = models.PriorityMedium
	}
	return &taskService{
		tasks:           storage.NewCollection[models.Task](engine, TasksCollection),
		dataDir:         engine.Root(),
		idGen:           idGen,
		defaultPriority: prio,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// CreateTask validates the input, applies defaults, and persists a new task.
func (s *taskService) CreateTask(in CreateTaskInput) (*models.Task, error) {
	task, err := s.buildTask(in)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	id, err := s.nextFreeID()
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	task.ID = id

	if err := s.tasks.Put(task.ID, task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	s.logger.Debug("task created", "id", task.ID, "priority", task.Priority)
	return &task, nil
}

// buildTask turns input into a validated task without an ID.
func (s *taskService) buildTask(in CreateTaskInput) (models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Task{}, fmt.Errorf("%w: title must not be empty", ErrValidation)
	}

	status := in.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !status.Valid() {
		return models.Task{}, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}

	priority := in.Priority
	if priority == "" {
		priority = s.defaultPriority
	}
	if !priority.Valid() {
		return models.Task{}, fmt.Errorf("%w: invalid priority %q", ErrValidation, priority)
	}

	if in.EstimatedHours != nil && *in.EstimatedHours < 0 {
		return models.Task{}, fmt.Errorf("%w: estimated hours must not be negative", ErrValidation)
	}

	now := s.now()
	task := models.Task{
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Status:         status,
		Priority:       priority,
		Labels:         normalizeLabels(in.Labels),
		Assignee:       strings.TrimSpace(in.Assignee),
		EstimatedHours: in.EstimatedHours,
		Draft:          in.Draft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return task, nil
}

// nextFreeID generates IDs until one is not already taken, which can happen
// after an import carrying explicit IDs.
func (s *taskService) nextFreeID() (string, error) {
	for i := 0; i < 1000; i++ {
		id, err := s.idGen.GenerateTaskID()
		if err != nil {
			return "", err
		}
		existing, err := s.tasks.Get(id)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return id, nil
		}
	}
	return "", fmt.Errorf("no free task ID after 1000 attempts")
}

// GetTask returns the task or an ErrNotFound error.
func (s *taskService) GetTask(id string) (*models.Task, error) {
	task, err := s.tasks.Get(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", id, err)
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return task, nil
}

// UpdateTask merges patch into the stored task and refreshes UpdatedAt.
func (s *taskService) UpdateTask(id string, patch TaskPatch) (*models.Task, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("updating task %s: %w: title must not be empty", id, ErrValidation)
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, fmt.Errorf("updating task %s: %w: invalid status %q", id, ErrValidation, *patch.Status)
		}
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, fmt.Errorf("updating task %s: %w: invalid priority %q", id, ErrValidation, *patch.Priority)
		}
		task.Priority = *patch.Priority
	}
	if patch.Labels != nil {
		task.Labels = normalizeLabels(patch.Labels)
	}
	if patch.Assignee != nil {
		task.Assignee = strings.TrimSpace(*patch.Assignee)
	}
	if patch.EstimatedHours != nil {
		if *patch.EstimatedHours < 0 {
			return nil, fmt.Errorf("updating task %s: %w: estimated hours must not be negative", id, ErrValidation)
		}
		h := *patch.EstimatedHours
		task.EstimatedHours = &h
	}
	if patch.Draft != nil {
		task.Draft = *patch.Draft
	}

	task.UpdatedAt = s.now()
	if err := s.tasks.Put(task.ID, *task); err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}
	s.logger.Debug("task updated", "id", task.ID)
	return task, nil
}

// SaveTask validates and persists a whole task, as edited in the viewer.
func (s *taskService) SaveTask(task models.Task) (*models.Task, error) {
	if strings.TrimSpace(task.ID) == "" {
		return nil, fmt.Errorf("saving task: %w: id must not be empty", ErrValidation)
	}
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return nil, fmt.Errorf("saving task %s: %w: title must not be empty", task.ID, ErrValidation)
	}
	if !task.Status.Valid() {
		return nil, fmt.Errorf("saving task %s: %w: invalid status %q", task.ID, ErrValidation, task.Status)
	}
	if !task.Priority.Valid() {
		return nil, fmt.Errorf("saving task %s: %w: invalid priority %q", task.ID, ErrValidation, task.Priority)
	}
	task.Labels = normalizeLabels(task.Labels)
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.now()
	}
	task.UpdatedAt = s.now()

	if err := s.tasks.Put(task.ID, task); err != nil {
		return nil, fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return &task, nil
}

// DeleteTask physically removes a task.
func (s *taskService) DeleteTask(id string) error {
	removed, err := s.tasks.Delete(strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	if !removed {
		return fmt.Errorf("deleting task %s: %w", id, ErrNotFound)
	}
	s.logger.Debug("task deleted", "id", id)
	return nil
}

// ArchiveTask soft-deletes a task by setting its status to archived.
func (s *taskService) ArchiveTask(id string) (*models.Task, error) {
	archived := models.StatusArchived
	task, err := s.UpdateTask(id, TaskPatch{Status: &archived})
	if err != nil {
		return nil, fmt.Errorf("archiving task: %w", err)
	}
	return task, nil
}

// ToggleStatus advances the task one step through the status cycle.
func (s *taskService) ToggleStatus(id string) (*models.Task, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, fmt.Errorf("toggling status: %w", err)
	}
	next := task.Status.Next()
	return s.UpdateTask(id, TaskPatch{Status: &next})
}

// ListTasks loads every task, filters, sorts, and truncates to the limit.
func (s *taskService) ListTasks(filter TaskFilter) ([]models.Task, error) {
	all, skipped, err := s.tasks.All()
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	if skipped > 0 {
		s.logger.Warn("some task files could not be read", "skipped", skipped)
	}

	result := make([]models.Task, 0, len(all))
	for _, t := range all {
		if matchesTaskFilter(t, filter) {
			result = append(result, t)
		}
	}

	sortTasks(result, filter.SortBy, filter.Ascending)

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Reload drops cached tasks so the next read sees on-disk changes.
func (s *taskService) Reload() {
	s.tasks.Invalidate()
}

func matchesTaskFilter(t models.Task, f TaskFilter) bool {
	if len(f.Statuses) > 0 {
		if !containsStatus(f.Statuses, t.Status) {
			return false
		}
	} else if t.Status == models.StatusArchived && !f.IncludeArchived {
		return false
	}
	if t.Draft && !f.IncludeDrafts {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, t.Priority) {
		return false
	}
	if f.Assignee != "" && !strings.EqualFold(t.Assignee, f.Assignee) {
		return false
	}
	if len(f.Labels) > 0 && !hasAnyLabel(t, f.Labels) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}

func containsStatus(haystack []models.Status, needle models.Status) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsPriority(haystack []models.Priority, needle models.Priority) bool {
	for _, p := range haystack {
		if p == needle {
			return true
		}
	}
	return false
}

func hasAnyLabel(t models.Task, labels []string) bool {
	for _, l := range labels {
		if t.HasLabel(l) {
			return true
		}
	}
	return false
}

func statusRank(s models.Status) int {
	for i, st := range models.AllStatuses {
		if st == s {
			return i
		}
	}
	return len(models.AllStatuses)
}

// sortTasks orders tasks in place. Ties fall back to ID so output is stable.
func sortTasks(tasks []models.Task, key SortKey, ascending bool) {
	less := func(a, b models.Task) int {
		switch key {
		case SortByUpdated:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case SortByPriority:
			return b.Priority.Rank() - a.Priority.Rank()
		case SortByTitle:
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case SortByStatus:
			return statusRank(a.Status) - statusRank(b.Status)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		c := less(tasks[i], tasks[j])
		if c == 0 {
			return tasks[i].ID < tasks[j].ID
		}
		if ascending {
			return c < 0
		}
		return c > 0
	})
}

// normalizeLabels trims labels, drops empties and case-insensitive duplicates,
// and keeps the original order. The result is never nil.
func normalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if l == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}
