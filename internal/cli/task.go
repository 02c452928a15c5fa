package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/critical-claude/internal/core"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"t"},
	Short:   "Manage tasks (create, list, view, update, archive, export)",
	Long: `Unified task management commands.

Create, inspect and update tasks, cycle their status, archive finished
work, and move tasks in and out of JSON, CSV and Markdown files.`,
}

// taskFieldFlags holds the flags shared by "task create" and "task update".
type taskFieldFlags struct {
	description string
	status      string
	priority    string
	labels      []string
	assignee    string
	hours       float64
	draft       bool
}

func (f *taskFieldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Task description")
	cmd.Flags().StringVarP(&f.status, "status", "s", "", "Status: todo, in_progress, done, blocked, archived")
	cmd.Flags().StringVarP(&f.priority, "priority", "p", "", "Priority: critical, high, medium, low")
	cmd.Flags().StringSliceVarP(&f.labels, "labels", "l", nil, "Comma-separated labels")
	cmd.Flags().StringVarP(&f.assignee, "assignee", "a", "", "Who owns the task")
	cmd.Flags().Float64VarP(&f.hours, "hours", "e", 0, "Estimated hours")
	cmd.Flags().BoolVar(&f.draft, "draft", false, "Mark the task as a draft")
	_ = cmd.RegisterFlagCompletionFunc("status", completeStatuses)
	_ = cmd.RegisterFlagCompletionFunc("priority", completePriorities)
}

// --- task create ---

var (
	taskCreateFlags       taskFieldFlags
	taskCreateInteractive bool
)

// runForm runs a huh form; tests replace it to avoid a terminal.
var runForm = func(f *huh.Form) error { return f.Run() }

var taskCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new task",
	Long: `Create a new task. The title can be given as an argument or entered
interactively with -i, which opens a form for title, description,
priority and labels.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}

		in := core.CreateTaskInput{
			Description: taskCreateFlags.description,
			Labels:      taskCreateFlags.labels,
			Assignee:    taskCreateFlags.assignee,
			Draft:       taskCreateFlags.draft,
		}
		if len(args) == 1 {
			in.Title = args[0]
		}
		if err := parseEnums(taskCreateFlags.status, taskCreateFlags.priority, &in.Status, &in.Priority); err != nil {
			return err
		}
		if cmd.Flags().Changed("hours") {
			h := taskCreateFlags.hours
			in.EstimatedHours = &h
		}

		if taskCreateInteractive {
			if err := promptTaskInput(&in); err != nil {
				return err
			}
		}

		task, err := TaskSvc.CreateTask(in)
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}

		if jsonOutput {
			return writeResult(cmd, task)
		}
		printSuccess(cmd, "Created task %s", task.ID)
		printTaskDetails(cmd.OutOrStdout(), *task)
		return nil
	},
}

func promptTaskInput(in *core.CreateTaskInput) error {
	priority := string(in.Priority)
	if priority == "" && Config != nil {
		priority = string(Config.Tasks.DefaultPriority)
	}
	if priority == "" {
		priority = string(models.PriorityMedium)
	}
	labels := strings.Join(in.Labels, ", ")

	priorities := make([]string, len(models.AllPriorities))
	for i, p := range models.AllPriorities {
		priorities[i] = string(p)
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Title").
			Value(&in.Title).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("title is required")
				}
				return nil
			}),
		huh.NewText().
			Title("Description").
			Value(&in.Description),
		huh.NewSelect[string]().
			Title("Priority").
			Options(huh.NewOptions(priorities...)...).
			Value(&priority),
		huh.NewInput().
			Title("Labels").
			Description("Comma separated").
			Value(&labels),
	))
	if err := runForm(form); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}

	in.Priority = models.Priority(priority)
	in.Labels = splitList(labels)
	return nil
}

// --- task list ---

var taskListFlags struct {
	statuses   []string
	priorities []string
	labels     []string
	assignee   string
	search     string
	archived   bool
	drafts     bool
	sort       string
	ascending  bool
	limit      int
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `List tasks matching every given filter. Archived tasks and drafts are
hidden unless --archived / --drafts is set or the status filter names them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}

		filter, err := buildTaskFilter()
		if err != nil {
			return err
		}
		tasks, err := TaskSvc.ListTasks(filter)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		if jsonOutput {
			return writeResult(cmd, tasks)
		}
		out := cmd.OutOrStdout()
		if len(tasks) == 0 {
			_, _ = fmt.Fprintln(out, "No tasks found.")
			return nil
		}
		for _, t := range tasks {
			_, _ = fmt.Fprintln(out, taskLine(t))
		}
		_, _ = fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("\n%d task(s)", len(tasks))))
		return nil
	},
}

func buildTaskFilter() (core.TaskFilter, error) {
	filter := core.TaskFilter{
		Labels:          taskListFlags.labels,
		Assignee:        taskListFlags.assignee,
		Search:          taskListFlags.search,
		IncludeArchived: taskListFlags.archived,
		IncludeDrafts:   taskListFlags.drafts,
		Ascending:       taskListFlags.ascending,
		Limit:           taskListFlags.limit,
	}
	for _, s := range taskListFlags.statuses {
		status, err := models.ParseStatus(s)
		if err != nil {
			return filter, fmt.Errorf("%w: %s", core.ErrValidation, err)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, p := range taskListFlags.priorities {
		prio, err := models.ParsePriority(p)
		if err != nil {
			return filter, fmt.Errorf("%w: %s", core.ErrValidation, err)
		}
		filter.Priorities = append(filter.Priorities, prio)
	}
	sortKey, err := core.ParseSortKey(taskListFlags.sort)
	if err != nil {
		return filter, err
	}
	filter.SortBy = sortKey
	return filter, nil
}

// --- task view ---

var taskViewCmd = &cobra.Command{
	Use:               "view <task-id>",
	Aliases:           []string{"show"},
	Short:             "Show a task",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}
		task, err := TaskSvc.GetTask(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeResult(cmd, task)
		}
		printTaskDetails(cmd.OutOrStdout(), *task)
		return nil
	},
}

// --- task update ---

var (
	taskUpdateFlags taskFieldFlags
	taskUpdateTitle string
)

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Update task fields",
	Long: `Update the fields given as flags; everything else is left unchanged.
Passing --labels "" clears the labels.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}

		var patch core.TaskPatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			patch.Title = &taskUpdateTitle
		}
		if flags.Changed("description") {
			patch.Description = &taskUpdateFlags.description
		}
		if flags.Changed("status") {
			status, err := models.ParseStatus(taskUpdateFlags.status)
			if err != nil {
				return fmt.Errorf("%w: %s", core.ErrValidation, err)
			}
			patch.Status = &status
		}
		if flags.Changed("priority") {
			prio, err := models.ParsePriority(taskUpdateFlags.priority)
			if err != nil {
				return fmt.Errorf("%w: %s", core.ErrValidation, err)
			}
			patch.Priority = &prio
		}
		if flags.Changed("labels") {
			patch.Labels = taskUpdateFlags.labels
			if patch.Labels == nil {
				patch.Labels = []string{}
			}
		}
		if flags.Changed("assignee") {
			patch.Assignee = &taskUpdateFlags.assignee
		}
		if flags.Changed("hours") {
			patch.EstimatedHours = &taskUpdateFlags.hours
		}
		if flags.Changed("draft") {
			patch.Draft = &taskUpdateFlags.draft
		}

		task, err := TaskSvc.UpdateTask(args[0], patch)
		if err != nil {
			return fmt.Errorf("updating task %s: %w", args[0], err)
		}
		if jsonOutput {
			return writeResult(cmd, task)
		}
		printSuccess(cmd, "Updated task %s", task.ID)
		printTaskDetails(cmd.OutOrStdout(), *task)
		return nil
	},
}

// --- task delete / archive / toggle ---

var taskDeleteCmd = &cobra.Command{
	Use:               "delete <task-id>",
	Aliases:           []string{"rm"},
	Short:             "Permanently delete a task",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}
		if err := TaskSvc.DeleteTask(args[0]); err != nil {
			return fmt.Errorf("deleting task %s: %w", args[0], err)
		}
		if jsonOutput {
			return writeResult(cmd, map[string]string{"deleted": args[0]})
		}
		printSuccess(cmd, "Deleted task %s", args[0])
		return nil
	},
}

var taskArchiveCmd = &cobra.Command{
	Use:               "archive <task-id>",
	Short:             "Archive a task",
	Long:              `Archive a task. Archived tasks are hidden from listings unless requested and can be restored by toggling or updating the status.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}
		task, err := TaskSvc.ArchiveTask(args[0])
		if err != nil {
			return fmt.Errorf("archiving task %s: %w", args[0], err)
		}
		if jsonOutput {
			return writeResult(cmd, task)
		}
		printSuccess(cmd, "Archived task %s", task.ID)
		return nil
	},
}

var taskToggleCmd = &cobra.Command{
	Use:               "toggle <task-id>",
	Short:             "Advance a task to its next status",
	Long:              `Advance a task through todo → in_progress → done → todo. Blocked tasks move to in_progress and archived tasks return to todo.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTaskIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}
		task, err := TaskSvc.ToggleStatus(args[0])
		if err != nil {
			return fmt.Errorf("toggling task %s: %w", args[0], err)
		}
		if jsonOutput {
			return writeResult(cmd, task)
		}
		printSuccess(cmd, "%s is now %s %s", task.ID, task.Status.Icon(), task.Status)
		return nil
	},
}

// --- task export / import / backup ---

var taskExportFlags struct {
	format string
	output string
}

var taskExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tasks as JSON, CSV or Markdown",
	Long: `Export tasks matching the list filters (--status, --label, --archived, ...)
to stdout or to --output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}
		format, err := core.ParseExportFormat(taskExportFlags.format)
		if err != nil {
			return err
		}
		filter, err := buildTaskFilter()
		if err != nil {
			return err
		}
		data, err := TaskSvc.ExportTasks(format, filter)
		if err != nil {
			return fmt.Errorf("exporting tasks: %w", err)
		}

		if taskExportFlags.output == "" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := writeOutputFile(taskExportFlags.output, data); err != nil {
			return err
		}
		printSuccess(cmd, "Exported tasks to %s", taskExportFlags.output)
		return nil
	},
}

var taskImportFlags struct {
	format    string
	overwrite bool
}

var taskImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import tasks from a JSON or CSV file",
	Long: `Import tasks from a JSON array or CSV file. The format is taken from the
file extension unless --format is given. Existing task IDs are skipped
unless --overwrite is set; invalid rows are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}

		formatName := taskImportFlags.format
		if formatName == "" {
			formatName = strings.TrimPrefix(strings.ToLower(filepath.Ext(args[0])), ".")
		}
		format, err := core.ParseExportFormat(formatName)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		report, err := TaskSvc.ImportTasks(data, format, core.ImportOptions{Overwrite: taskImportFlags.overwrite})
		if err != nil {
			return fmt.Errorf("importing %s: %w", args[0], err)
		}

		if jsonOutput {
			return writeResult(cmd, report)
		}
		printSuccess(cmd, "Imported %d task(s), skipped %d", report.Imported, report.Skipped)
		for _, e := range report.Errors {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("  - "+e))
		}
		return nil
	},
}

var taskBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a timestamped JSON backup of every task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}
		path, err := TaskSvc.BackupTasks()
		if err != nil {
			return fmt.Errorf("backing up tasks: %w", err)
		}
		if jsonOutput {
			return writeResult(cmd, map[string]string{"path": path})
		}
		printSuccess(cmd, "Backup written to %s", path)
		return nil
	},
}

// --- Helpers ---

func parseEnums(status, priority string, outStatus *models.Status, outPriority *models.Priority) error {
	if status != "" {
		s, err := models.ParseStatus(status)
		if err != nil {
			return fmt.Errorf("%w: %s", core.ErrValidation, err)
		}
		*outStatus = s
	}
	if priority != "" {
		p, err := models.ParsePriority(priority)
		if err != nil {
			return fmt.Errorf("%w: %s", core.ErrValidation, err)
		}
		*outPriority = p
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeOutputFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func taskLine(t models.Task) string {
	line := fmt.Sprintf("%s %s %-10s %s", t.Status.Icon(), t.Priority.Icon(), t.ID, t.Title)
	if len(t.Labels) > 0 {
		line += mutedStyle.Render(" [" + strings.Join(t.Labels, ", ") + "]")
	}
	if t.Draft {
		line += mutedStyle.Render(" (draft)")
	}
	return line
}

func printTaskDetails(w io.Writer, t models.Task) {
	_, _ = fmt.Fprintf(w, "%s  %s\n", headingStyle.Render(t.ID), t.Title)
	_, _ = fmt.Fprintf(w, "  Status:   %s %s\n", t.Status.Icon(), t.Status)
	_, _ = fmt.Fprintf(w, "  Priority: %s %s\n", t.Priority.Icon(), t.Priority)
	if len(t.Labels) > 0 {
		_, _ = fmt.Fprintf(w, "  Labels:   %s\n", strings.Join(t.Labels, ", "))
	}
	if t.Assignee != "" {
		_, _ = fmt.Fprintf(w, "  Assignee: %s\n", t.Assignee)
	}
	if t.EstimatedHours != nil {
		_, _ = fmt.Fprintf(w, "  Estimate: %gh\n", *t.EstimatedHours)
	}
	if t.Draft {
		_, _ = fmt.Fprintln(w, "  Draft:    yes")
	}
	_, _ = fmt.Fprintf(w, "  Created:  %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04"))
	_, _ = fmt.Fprintf(w, "  Updated:  %s\n", t.UpdatedAt.Local().Format("2006-01-02 15:04"))
	if t.Description != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", t.Description)
	}
}

// --- Completion ---

func completeStatuses(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, len(models.AllStatuses))
	for i, s := range models.AllStatuses {
		out[i] = string(s)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completePriorities(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, len(models.AllPriorities))
	for i, p := range models.AllPriorities {
		out[i] = string(p)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeTaskIDs(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if TaskSvc == nil || len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	tasks, err := TaskSvc.ListTasks(core.TaskFilter{IncludeArchived: true, IncludeDrafts: true})
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID + "\t" + t.Title
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func registerTaskFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&taskListFlags.statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().StringSliceVar(&taskListFlags.priorities, "priority", nil, "Filter by priority (repeatable)")
	cmd.Flags().StringSliceVar(&taskListFlags.labels, "label", nil, "Filter by label (any match)")
	cmd.Flags().StringVar(&taskListFlags.assignee, "assignee", "", "Filter by assignee")
	cmd.Flags().StringVar(&taskListFlags.search, "search", "", "Search title and description")
	cmd.Flags().BoolVar(&taskListFlags.archived, "archived", false, "Include archived tasks")
	cmd.Flags().BoolVar(&taskListFlags.drafts, "drafts", false, "Include draft tasks")
	cmd.Flags().StringVar(&taskListFlags.sort, "sort", "", "Sort by created, updated, priority, title or status")
	cmd.Flags().BoolVar(&taskListFlags.ascending, "asc", false, "Sort ascending")
	cmd.Flags().IntVar(&taskListFlags.limit, "limit", 0, "Maximum number of tasks")
	_ = cmd.RegisterFlagCompletionFunc("status", completeStatuses)
	_ = cmd.RegisterFlagCompletionFunc("priority", completePriorities)
}

func init() {
	taskCreateFlags.register(taskCreateCmd)
	taskCreateCmd.Flags().BoolVarP(&taskCreateInteractive, "interactive", "i", false, "Fill in the task with an interactive form")

	taskUpdateFlags.register(taskUpdateCmd)
	taskUpdateCmd.Flags().StringVarP(&taskUpdateTitle, "title", "t", "", "New title")

	registerTaskFilterFlags(taskListCmd)
	registerTaskFilterFlags(taskExportCmd)
	taskExportCmd.Flags().StringVarP(&taskExportFlags.format, "format", "f", "json", "Export format: json, csv, markdown")
	taskExportCmd.Flags().StringVarP(&taskExportFlags.output, "output", "o", "", "Write to this file instead of stdout")

	taskImportCmd.Flags().StringVarP(&taskImportFlags.format, "format", "f", "", "Input format: json or csv (default: from extension)")
	taskImportCmd.Flags().BoolVar(&taskImportFlags.overwrite, "overwrite", false, "Replace tasks whose IDs already exist")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskViewCmd, taskUpdateCmd, taskDeleteCmd,
		taskArchiveCmd, taskToggleCmd, taskExportCmd, taskImportCmd, taskBackupCmd)
	rootCmd.AddCommand(taskCmd)
}
