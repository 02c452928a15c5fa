// Package viewer implements the interactive terminal task browser launched by
// `cc viewer`.
package viewer

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/valter-silva-au/critical-claude/internal/core"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// TaskSource is the subset of core.TaskService the viewer needs.
type TaskSource interface {
	ListTasks(filter core.TaskFilter) ([]models.Task, error)
	SaveTask(task models.Task) (*models.Task, error)
	ToggleStatus(id string) (*models.Task, error)
	Reload()
}

type mode int

const (
	modeBrowsing mode = iota
	modeDetails
	modeEditing
)

func (m mode) String() string {
	switch m {
	case modeDetails:
		return "details"
	case modeEditing:
		return "editing"
	default:
		return "browsing"
	}
}

type field int

const (
	fieldTitle field = iota
	fieldDescription
	fieldPriority
	fieldStatus
	fieldCount
)

var fieldNames = [fieldCount]string{"Title", "Description", "Priority", "Status"}

// filters is the cycle driven by the f key. The empty status means all
// non-archived tasks.
var filters = append([]models.Status{""}, models.AllStatuses...)

// tasksLoadedMsg carries the generation of the load that produced it. Only
// the latest load is applied, so a slow result for an earlier filter never
// replaces the rows of the current one.
type tasksLoadedMsg struct {
	gen   int
	tasks []models.Task
	err   error
}

type taskSavedMsg struct {
	task *models.Task
	err  error
}

type taskToggledMsg struct {
	task *models.Task
	err  error
}

// Options configures a Model.
type Options struct {
	Retry  core.RetryPolicy
	Logger *log.Logger
}

// Model is the bubbletea model for the task viewer.
type Model struct {
	source TaskSource
	retry  core.RetryPolicy
	logger *log.Logger

	keys  keyMap
	help  help.Model
	input textinput.Model

	tasks    []models.Task
	selected int
	filter   int
	loads    int
	mode     mode

	field    field
	draft    models.Task
	original models.Task
	saving   bool

	notice string
	err    error

	width  int
	height int
}

// New creates a viewer over source.
func New(source TaskSource, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	policy := opts.Retry
	if policy.Attempts < 1 {
		policy = core.DefaultRetryPolicy
	}

	ti := textinput.New()
	ti.Prompt = "› "
	ti.CharLimit = 500
	ti.Cursor.SetMode(cursor.CursorStatic)

	return Model{
		source: source,
		retry:  policy,
		logger: logger,
		keys:   defaultKeyMap(),
		help:   help.New(),
		input:  ti,
		width:  100,
		height: 30,
	}
}

func (m Model) Init() tea.Cmd {
	return m.fetchCmd(m.loads, false)
}

func (m Model) currentFilter() core.TaskFilter {
	f := core.TaskFilter{IncludeDrafts: true, SortBy: core.SortByPriority}
	if s := filters[m.filter]; s != "" {
		f.Statuses = []models.Status{s}
	}
	return f
}

// loadCmd starts a new load generation for the current filter.
func (m *Model) loadCmd() tea.Cmd {
	m.loads++
	return m.fetchCmd(m.loads, false)
}

// reloadCmd is loadCmd after dropping the source's cache.
func (m *Model) reloadCmd() tea.Cmd {
	m.loads++
	return m.fetchCmd(m.loads, true)
}

func (m Model) fetchCmd(gen int, reload bool) tea.Cmd {
	source, filter := m.source, m.currentFilter()
	return func() tea.Msg {
		if reload {
			source.Reload()
		}
		tasks, err := source.ListTasks(filter)
		return tasksLoadedMsg{gen: gen, tasks: tasks, err: err}
	}
}

func (m Model) saveCmd(task models.Task) tea.Cmd {
	source, policy, logger := m.source, m.retry, m.logger
	return func() tea.Msg {
		var saved *models.Task
		err := core.Retry(context.Background(), policy, func() error {
			var err error
			saved, err = source.SaveTask(task)
			return err
		}, func(attempt int, err error) {
			logger.Warn("save attempt failed", "id", task.ID, "attempt", attempt, "err", err)
		})
		return taskSavedMsg{task: saved, err: err}
	}
}

func (m Model) toggleCmd(id string) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		task, err := source.ToggleStatus(id)
		return taskToggledMsg{task: task, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(10, m.detailWidth()-6)
		return m, nil

	case tasksLoadedMsg:
		if msg.gen != m.loads {
			m.logger.Debug("dropping stale load", "gen", msg.gen, "current", m.loads)
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			m.logger.Error("loading tasks", "err", msg.err)
			return m, nil
		}
		m.tasks = msg.tasks
		m.clampSelection()
		m.logger.Debug("tasks loaded", "count", len(m.tasks), "filter", filters[m.filter])
		return m, nil

	case taskSavedMsg:
		m.saving = false
		if msg.err != nil {
			m.err = fmt.Errorf("save failed: %w", msg.err)
			m.logger.Error("saving task", "id", m.draft.ID, "err", msg.err)
			return m, nil
		}
		m.err = nil
		m.mode = modeBrowsing
		m.input.Blur()
		m.notice = "✅ saved " + msg.task.ID
		m.logger.Info("task saved", "id", msg.task.ID)
		cmd := m.loadCmd()
		return m, cmd

	case taskToggledMsg:
		m.saving = false
		if msg.err != nil {
			m.err = msg.err
			m.logger.Error("toggling task", "err", msg.err)
			return m, nil
		}
		m.err = nil
		m.notice = fmt.Sprintf("%s %s → %s", msg.task.Status.Icon(), msg.task.ID, msg.task.Status)
		cmd := m.loadCmd()
		return m, cmd

	case tea.KeyMsg:
		if m.saving {
			return m, nil
		}
		if m.mode == modeEditing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}

	if m.mode == modeEditing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Tab):
		if m.mode == modeBrowsing {
			m.mode = modeDetails
		} else {
			m.mode = modeBrowsing
		}

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.tasks)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Edit):
		task, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		return m.startEditing(task)

	case key.Matches(msg, m.keys.Filter):
		m.filter = (m.filter + 1) % len(filters)
		m.selected = 0
		m.notice = "filter: " + m.filterLabel()
		cmd := m.loadCmd()
		return m, cmd

	case key.Matches(msg, m.keys.Toggle):
		task, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		m.saving = true
		return m, m.toggleCmd(task.ID)

	case key.Matches(msg, m.keys.Reload):
		m.notice = "reloaded"
		cmd := m.reloadCmd()
		return m, cmd

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) startEditing(task models.Task) (tea.Model, tea.Cmd) {
	m.original = task.Clone()
	m.draft = task.Clone()
	m.field = fieldTitle
	m.mode = modeEditing
	m.err = nil
	m.notice = ""
	m.loadBuffer()
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Discard):
		m.draft = m.original.Clone()
		m.mode = modeBrowsing
		m.err = nil
		m.notice = "edit discarded"
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Commit):
		m.storeBuffer()
		priority, err := models.ParsePriority(string(m.draft.Priority))
		if err != nil {
			m.err = err
			m.focusField(fieldPriority)
			return m, nil
		}
		status, err := models.ParseStatus(string(m.draft.Status))
		if err != nil {
			m.err = err
			m.focusField(fieldStatus)
			return m, nil
		}
		m.draft.Priority = priority
		m.draft.Status = status
		m.err = nil
		m.saving = true
		return m, m.saveCmd(m.draft.Clone())

	case key.Matches(msg, m.keys.Next):
		m.storeBuffer()
		m.focusField((m.field + 1) % fieldCount)
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		m.storeBuffer()
		m.focusField((m.field + fieldCount - 1) % fieldCount)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) focusField(f field) {
	m.field = f
	m.loadBuffer()
}

// storeBuffer copies the edit buffer into the draft field it belongs to.
func (m *Model) storeBuffer() {
	v := m.input.Value()
	switch m.field {
	case fieldTitle:
		m.draft.Title = v
	case fieldDescription:
		m.draft.Description = v
	case fieldPriority:
		m.draft.Priority = models.Priority(v)
	case fieldStatus:
		m.draft.Status = models.Status(v)
	}
}

func (m *Model) loadBuffer() {
	m.input.SetValue(m.fieldValue(m.draft, m.field))
	m.input.CursorEnd()
}

func (m Model) fieldValue(t models.Task, f field) string {
	switch f {
	case fieldDescription:
		return t.Description
	case fieldPriority:
		return string(t.Priority)
	case fieldStatus:
		return string(t.Status)
	default:
		return t.Title
	}
}

func (m Model) selectedTask() (models.Task, bool) {
	if m.selected < 0 || m.selected >= len(m.tasks) {
		return models.Task{}, false
	}
	return m.tasks[m.selected], true
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.tasks) {
		m.selected = len(m.tasks) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m Model) filterLabel() string {
	if s := filters[m.filter]; s != "" {
		return string(s)
	}
	return "all"
}
