// Package mcp provides an MCP (Model Context Protocol) server that exposes
// Critical Claude tasks, templates and usage stats as tools for AI coding
// assistants.
package mcp

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/critical-claude/internal/core"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// Server wraps the cc services and exposes them as MCP tools.
type Server struct {
	server    *gomcp.Server
	tasks     core.TaskService
	templates core.TemplateService
	analytics core.AnalyticsService
	logger    *log.Logger
}

// NewServer creates a new MCP server over the given services. templates and
// analytics may be nil, in which case their tools report an error result.
func NewServer(tasks core.TaskService, templates core.TemplateService, analytics core.AnalyticsService, version string, logger *log.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Server{
		tasks:     tasks,
		templates: templates,
		analytics: analytics,
		logger:    logger,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "cc", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves over stdio, blocking until the client disconnects or the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"the task identifier, e.g. CC-00042"`
}

type taskOutput struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	Labels         []string `json:"labels"`
	Assignee       string   `json:"assignee,omitempty"`
	EstimatedHours float64  `json:"estimated_hours,omitempty"`
	Draft          bool     `json:"draft,omitempty"`
	Created        string   `json:"created"`
	Updated        string   `json:"updated"`
}

type listTasksInput struct {
	Status          string `json:"status,omitempty" jsonschema:"filter by status (todo, in_progress, done, blocked, archived)"`
	Priority        string `json:"priority,omitempty" jsonschema:"filter by priority (critical, high, medium, low)"`
	Label           string `json:"label,omitempty" jsonschema:"only tasks carrying this label"`
	Search          string `json:"search,omitempty" jsonschema:"case-insensitive text search over title and description"`
	IncludeArchived bool   `json:"include_archived,omitempty" jsonschema:"include archived tasks"`
	Sort            string `json:"sort,omitempty" jsonschema:"sort key (created, updated, priority, title, status). Defaults to created."`
	Limit           int    `json:"limit,omitempty" jsonschema:"maximum number of tasks to return"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type createTaskInput struct {
	Title       string   `json:"title" jsonschema:"the task title"`
	Description string   `json:"description,omitempty" jsonschema:"longer description of the work"`
	Priority    string   `json:"priority,omitempty" jsonschema:"critical, high, medium or low. Defaults to the configured priority."`
	Labels      []string `json:"labels,omitempty" jsonschema:"labels to attach"`
	Assignee    string   `json:"assignee,omitempty" jsonschema:"who owns the task"`
}

type updateTaskStatusInput struct {
	TaskID string `json:"task_id" jsonschema:"the task identifier, e.g. CC-00042"`
	Status string `json:"status" jsonschema:"the new status (todo, in_progress, done, blocked, archived)"`
}

type updateTaskStatusOutput struct {
	Message string     `json:"message"`
	Task    taskOutput `json:"task"`
}

type applyTemplateInput struct {
	Template  string            `json:"template" jsonschema:"template id or name, e.g. bug-fix"`
	Variables map[string]string `json:"variables,omitempty" jsonschema:"values for the template's {{placeholders}}"`
}

type getStatsInput struct{}

type statsOutput struct {
	TasksByStatus   map[string]int `json:"tasks_by_status"`
	TotalTasks      int            `json:"total_tasks"`
	TotalCommands   int            `json:"total_commands"`
	SuccessRate     float64        `json:"success_rate"`
	AvgExecutionMs  float64        `json:"avg_execution_ms"`
	MostUsedCommand string         `json:"most_used_command,omitempty"`
	CommandCounts   map[string]int `json:"command_counts"`
}

// --- Tool registration ---

// ToolInfo names one tool the server exposes.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tools lists the exposed tools in registration order.
var Tools = []ToolInfo{
	{"list_tasks", "List tasks with optional status, priority, label and text filters. Archived tasks are hidden unless requested."},
	{"get_task", "Get task details by ID."},
	{"create_task", "Create a new task. Returns the stored task including its generated ID."},
	{"update_task_status", "Set a task's status. Valid statuses: todo, in_progress, done, blocked, archived."},
	{"apply_template", "Create the tasks described by a template, substituting {{variables}}."},
	{"get_stats", "Get task counts by status and command usage statistics."},
}

func tool(name string) *gomcp.Tool {
	for _, t := range Tools {
		if t.Name == name {
			return &gomcp.Tool{Name: t.Name, Description: t.Description}
		}
	}
	panic(fmt.Sprintf("mcp: tool %q missing from Tools", name))
}

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, tool("list_tasks"), s.handleListTasks)
	gomcp.AddTool(s.server, tool("get_task"), s.handleGetTask)
	gomcp.AddTool(s.server, tool("create_task"), s.handleCreateTask)
	gomcp.AddTool(s.server, tool("update_task_status"), s.handleUpdateTaskStatus)
	gomcp.AddTool(s.server, tool("apply_template"), s.handleApplyTemplate)
	gomcp.AddTool(s.server, tool("get_stats"), s.handleGetStats)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	filter := core.TaskFilter{
		Search:          input.Search,
		IncludeArchived: input.IncludeArchived,
		Limit:           input.Limit,
	}
	if input.Status != "" {
		status, err := models.ParseStatus(input.Status)
		if err != nil {
			return errorResult(err.Error()), listTasksOutput{}, nil
		}
		filter.Statuses = []models.Status{status}
	}
	if input.Priority != "" {
		prio, err := models.ParsePriority(input.Priority)
		if err != nil {
			return errorResult(err.Error()), listTasksOutput{}, nil
		}
		filter.Priorities = []models.Priority{prio}
	}
	if input.Label != "" {
		filter.Labels = []string{input.Label}
	}
	sortKey, err := core.ParseSortKey(input.Sort)
	if err != nil {
		return errorResult(err.Error()), listTasksOutput{}, nil
	}
	filter.SortBy = sortKey

	tasks, err := s.tasks.ListTasks(filter)
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}

	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	task, err := s.tasks.GetTask(input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(*task), nil
}

func (s *Server) handleCreateTask(_ context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	in := core.CreateTaskInput{
		Title:       input.Title,
		Description: input.Description,
		Labels:      input.Labels,
		Assignee:    input.Assignee,
	}
	if input.Priority != "" {
		prio, err := models.ParsePriority(input.Priority)
		if err != nil {
			return errorResult(err.Error()), taskOutput{}, nil
		}
		in.Priority = prio
	}

	task, err := s.tasks.CreateTask(in)
	if err != nil {
		return errorResult(fmt.Sprintf("creating task: %s", err)), taskOutput{}, nil
	}
	s.logger.Info("task created over mcp", "id", task.ID)
	return nil, taskToOutput(*task), nil
}

func (s *Server) handleUpdateTaskStatus(_ context.Context, _ *gomcp.CallToolRequest, input updateTaskStatusInput) (*gomcp.CallToolResult, updateTaskStatusOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), updateTaskStatusOutput{}, nil
	}
	if input.Status == "" {
		return errorResult("status is required"), updateTaskStatusOutput{}, nil
	}

	status, err := models.ParseStatus(input.Status)
	if err != nil {
		return errorResult(err.Error()), updateTaskStatusOutput{}, nil
	}

	task, err := s.tasks.UpdateTask(input.TaskID, core.TaskPatch{Status: &status})
	if err != nil {
		return errorResult(fmt.Sprintf("updating task %s status: %s", input.TaskID, err)), updateTaskStatusOutput{}, nil
	}

	out := updateTaskStatusOutput{
		Message: fmt.Sprintf("task %s status updated to %s", task.ID, task.Status),
		Task:    taskToOutput(*task),
	}
	return nil, out, nil
}

func (s *Server) handleApplyTemplate(_ context.Context, _ *gomcp.CallToolRequest, input applyTemplateInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	if s.templates == nil {
		return errorResult("templates are not available"), listTasksOutput{}, nil
	}
	if input.Template == "" {
		return errorResult("template is required"), listTasksOutput{}, nil
	}

	created, err := s.templates.ApplyTemplate(input.Template, input.Variables)
	if err != nil {
		msg := fmt.Sprintf("applying template %s: %s", input.Template, err)
		if len(created) > 0 {
			msg += fmt.Sprintf(" (%d task(s) were created before the failure)", len(created))
		}
		return errorResult(msg), listTasksOutput{}, nil
	}

	out := listTasksOutput{
		Tasks: make([]taskOutput, len(created)),
		Count: len(created),
	}
	for i, t := range created {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleGetStats(_ context.Context, _ *gomcp.CallToolRequest, _ getStatsInput) (*gomcp.CallToolResult, statsOutput, error) {
	tasks, err := s.tasks.ListTasks(core.TaskFilter{IncludeArchived: true, IncludeDrafts: true})
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), emptyStatsOutput(), nil
	}

	out := emptyStatsOutput()
	out.TotalTasks = len(tasks)
	for _, t := range tasks {
		out.TasksByStatus[string(t.Status)]++
	}

	if s.analytics != nil {
		usage, err := s.analytics.Stats()
		if err != nil {
			return errorResult(fmt.Sprintf("computing usage stats: %s", err)), emptyStatsOutput(), nil
		}
		out.TotalCommands = usage.TotalCommands
		out.SuccessRate = usage.SuccessRate
		out.AvgExecutionMs = usage.AvgExecutionMs
		out.MostUsedCommand = usage.MostUsedCommand
		for k, v := range usage.CommandCounts {
			out.CommandCounts[k] = v
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Labels:      t.Labels,
		Assignee:    t.Assignee,
		Draft:       t.Draft,
		Created:     t.CreatedAt.Format(time.RFC3339),
		Updated:     t.UpdatedAt.Format(time.RFC3339),
	}
	if out.Labels == nil {
		out.Labels = []string{}
	}
	if t.EstimatedHours != nil {
		out.EstimatedHours = *t.EstimatedHours
	}
	return out
}

func emptyStatsOutput() statsOutput {
	return statsOutput{
		TasksByStatus: make(map[string]int),
		CommandCounts: make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
