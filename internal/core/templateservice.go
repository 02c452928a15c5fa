package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/critical-claude/internal/storage"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// TemplatesCollection is the storage collection holding user templates.
const TemplatesCollection = "templates"

// TemplateService manages built-in and user task templates and applies them.
type TemplateService interface {
	ListTemplates() ([]models.Template, error)
	GetTemplate(idOrName string) (*models.Template, error)
	SaveTemplate(t models.Template) (*models.Template, error)
	DeleteTemplate(id string) error
	ImportTemplateFile(path string) (*models.Template, error)
	ApplyTemplate(idOrName string, vars map[string]string) ([]models.Task, error)
}

type templateService struct {
	templates *storage.Collection[models.Template]
	tasks     TaskService
	logger    *log.Logger
	now       func() time.Time
}

// NewTemplateService creates a TemplateService. Applied templates create
// their tasks through tasks.
func NewTemplateService(engine storage.Engine, tasks TaskService, logger *log.Logger) TemplateService {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &templateService{
		templates: storage.NewCollection[models.Template](engine, TemplatesCollection),
		tasks:     tasks,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListTemplates returns the built-ins followed by user templates sorted by name.
func (s *templateService) ListTemplates() ([]models.Template, error) {
	result := BuiltinTemplates()

	user, skipped, err := s.templates.All()
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	if skipped > 0 {
		s.logger.Warn("some template files could not be read", "skipped", skipped)
	}
	sort.Slice(user, func(i, j int) bool {
		return strings.ToLower(user[i].Name) < strings.ToLower(user[j].Name)
	})
	return append(result, user...), nil
}

// GetTemplate looks a template up by ID first and then by case-insensitive name.
func (s *templateService) GetTemplate(idOrName string) (*models.Template, error) {
	key := strings.TrimSpace(idOrName)
	if key == "" {
		return nil, fmt.Errorf("%w: template id must not be empty", ErrValidation)
	}
	if t, ok := builtinTemplate(key); ok {
		return &t, nil
	}
	if !strings.ContainsAny(key, `/\`) && key != ".." {
		t, err := s.templates.Get(key)
		if err != nil {
			return nil, fmt.Errorf("loading template %s: %w", key, err)
		}
		if t != nil {
			return t, nil
		}
	}

	all, err := s.ListTemplates()
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if strings.EqualFold(t.Name, key) {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("template %s: %w", key, ErrNotFound)
}

// SaveTemplate validates and persists a user template. IDs default to a slug
// of the name.
func (s *templateService) SaveTemplate(t models.Template) (*models.Template, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, fmt.Errorf("saving template: %w: name must not be empty", ErrValidation)
	}
	if len(t.Tasks) == 0 {
		return nil, fmt.Errorf("saving template %s: %w: at least one task is required", t.Name, ErrValidation)
	}
	for i, bp := range t.Tasks {
		if strings.TrimSpace(bp.Title) == "" {
			return nil, fmt.Errorf("saving template %s: %w: task %d has no title", t.Name, ErrValidation, i+1)
		}
		if bp.Priority != "" && !bp.Priority.Valid() {
			return nil, fmt.Errorf("saving template %s: %w: task %d has invalid priority %q", t.Name, ErrValidation, i+1, bp.Priority)
		}
	}

	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		t.ID = Slugify(t.Name)
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
	}
	if _, ok := builtinTemplate(t.ID); ok {
		return nil, fmt.Errorf("saving template %s: %w: built-in templates cannot be replaced", t.ID, ErrValidation)
	}

	now := s.now()
	existing, err := s.templates.Get(t.ID)
	if err != nil {
		return nil, fmt.Errorf("saving template %s: %w", t.ID, err)
	}
	if existing != nil && !existing.Metadata.CreatedAt.IsZero() {
		t.Metadata.CreatedAt = existing.Metadata.CreatedAt
	}
	if t.Metadata.CreatedAt.IsZero() {
		t.Metadata.CreatedAt = now
	}
	t.Metadata.UpdatedAt = now
	if t.Metadata.Version == "" {
		t.Metadata.Version = "1.0.0"
	}
	t.Builtin = false

	if err := s.templates.Put(t.ID, t); err != nil {
		return nil, fmt.Errorf("saving template %s: %w", t.ID, err)
	}
	s.logger.Debug("template saved", "id", t.ID)
	return &t, nil
}

// DeleteTemplate removes a user template. Built-ins cannot be deleted.
func (s *templateService) DeleteTemplate(id string) error {
	id = strings.TrimSpace(id)
	if _, ok := builtinTemplate(id); ok {
		return fmt.Errorf("deleting template %s: %w: built-in templates cannot be deleted", id, ErrValidation)
	}
	removed, err := s.templates.Delete(id)
	if err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	if !removed {
		return fmt.Errorf("deleting template %s: %w", id, ErrNotFound)
	}
	return nil
}

// ImportTemplateFile reads a template from a YAML or JSON file and saves it.
func (s *templateService) ImportTemplateFile(path string) (*models.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template file: %w", err)
	}

	var t models.Template
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", ErrValidation, path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", ErrValidation, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: template file must be .yaml, .yml or .json", ErrValidation)
	}
	return s.SaveTemplate(t)
}

// ApplyTemplate renders every blueprint with the template defaults overlaid
// by vars and creates one task per blueprint. On failure the tasks created so
// far are returned along with the error.
func (s *templateService) ApplyTemplate(idOrName string, vars map[string]string) ([]models.Task, error) {
	t, err := s.GetTemplate(idOrName)
	if err != nil {
		return nil, fmt.Errorf("applying template: %w", err)
	}

	merged := make(map[string]string, len(t.Variables)+len(vars))
	for k, v := range t.Variables {
		merged[k] = v
	}
	for k, v := range vars {
		merged[strings.TrimSpace(k)] = v
	}

	created := make([]models.Task, 0, len(t.Tasks))
	for i, bp := range t.Tasks {
		labels := make([]string, len(bp.Labels))
		for j, l := range bp.Labels {
			labels[j] = RenderPlaceholders(l, merged)
		}
		task, err := s.tasks.CreateTask(CreateTaskInput{
			Title:          RenderPlaceholders(bp.Title, merged),
			Description:    RenderPlaceholders(bp.Description, merged),
			Priority:       bp.Priority,
			Labels:         labels,
			EstimatedHours: bp.EstimatedHours,
		})
		if err != nil {
			return created, fmt.Errorf("applying template %s: task %d: %w", t.ID, i+1, err)
		}
		created = append(created, *task)
	}
	s.logger.Debug("template applied", "id", t.ID, "tasks", len(created))
	return created, nil
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// RenderPlaceholders replaces {{ name }} tokens with values from vars.
// Tokens without a value are left as written.
func RenderPlaceholders(text string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(tok string) string {
		name := placeholderPattern.FindStringSubmatch(tok)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return tok
	})
}

// Placeholders lists the distinct variable names used by a template's blueprints.
func Placeholders(t models.Template) []string {
	seen := make(map[string]bool)
	var names []string
	collect := func(s string) {
		for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	for _, bp := range t.Tasks {
		collect(bp.Title)
		collect(bp.Description)
		for _, l := range bp.Labels {
			collect(l)
		}
	}
	sort.Strings(names)
	return names
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses every run of other characters into a
// single hyphen, capped at 50 characters.
func Slugify(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > 50 {
		slug = strings.TrimRight(slug[:50], "-")
	}
	return slug
}
