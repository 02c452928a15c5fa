package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/valter-silva-au/critical-claude/internal/integration"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// ErrAIDisabled is returned when AI features are turned off in config.
var ErrAIDisabled = errors.New("AI features are disabled (set ai.enabled: true)")

// GenerateOptions controls GenerateTasks.
type GenerateOptions struct {
	// DryRun returns the parsed tasks without storing them.
	DryRun bool
	// MaxTasks caps how many tasks are requested and kept; 0 means 10.
	MaxTasks int
	// Labels are added to every generated task.
	Labels []string
}

// GenerateResult holds the tasks produced by the agent and the elements that
// were rejected.
type GenerateResult struct {
	Tasks  []models.Task `json:"tasks"`
	Errors []string      `json:"errors,omitempty"`
}

// ResearchOptions controls Research.
type ResearchOptions struct {
	// CreateTasks stores the tasks the agent suggests.
	CreateTasks bool
}

// ResearchReport is the structured answer to a research query.
type ResearchReport struct {
	Query           string        `json:"query"`
	Summary         string        `json:"summary"`
	Findings        []string      `json:"findings"`
	Recommendations []string      `json:"recommendations"`
	SuggestedTasks  []models.Task `json:"suggestedTasks"`
	CreatedTasks    []models.Task `json:"createdTasks,omitempty"`
	Path            string        `json:"path"`
	GeneratedAt     time.Time     `json:"generatedAt"`
}

// ResearchService turns natural-language requests into tasks and reports by
// prompting the external coding agent.
type ResearchService interface {
	GenerateTasks(ctx context.Context, description string, opts GenerateOptions) (*GenerateResult, error)
	Research(ctx context.Context, query string, opts ResearchOptions) (*ResearchReport, error)
}

type researchService struct {
	runner  integration.AgentRunner
	tasks   TaskService
	dataDir string
	enabled bool
	logger  *log.Logger
	now     func() time.Time
}

// NewResearchService creates a ResearchService. A nil runner behaves as if AI
// were disabled.
func NewResearchService(runner integration.AgentRunner, tasks TaskService, dataDir string, enabled bool, logger *log.Logger) ResearchService {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &researchService{
		runner:  runner,
		tasks:   tasks,
		dataDir: dataDir,
		enabled: enabled && runner != nil,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// generatedTask is the element shape the agent is asked to produce.
type generatedTask struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       string   `json:"priority"`
	Labels         []string `json:"labels"`
	EstimatedHours *float64 `json:"estimatedHours"`
}

const taskSchemaHint = `{"title": string, "description": string, "priority": "critical"|"high"|"medium"|"low", "labels": [string], "estimatedHours": number}`

func (s *researchService) ask(ctx context.Context, prompt string) (string, error) {
	if !s.enabled {
		return "", ErrAIDisabled
	}
	start := time.Now()
	res, err := s.runner.Run(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("running coding agent: %w", err)
	}
	s.logger.Debug("agent finished", "duration", time.Since(start), "bytes", len(res.Stdout))
	return res.Stdout, nil
}

// GenerateTasks asks the agent to break description into tasks.
func (s *researchService) GenerateTasks(ctx context.Context, description string, opts GenerateOptions) (*GenerateResult, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: description must not be empty", ErrValidation)
	}
	limit := opts.MaxTasks
	if limit <= 0 {
		limit = 10
	}

	var prompt strings.Builder
	prompt.WriteString("Break the following work into at most ")
	fmt.Fprintf(&prompt, "%d concrete, independently completable tasks.\n\n", limit)
	prompt.WriteString("Work:\n")
	prompt.WriteString(description)
	prompt.WriteString("\n\nRespond with only a JSON array. Each element must be:\n")
	prompt.WriteString(taskSchemaHint)
	prompt.WriteString("\n")

	out, err := s.ask(ctx, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("generating tasks: %w", err)
	}

	raw, err := ExtractJSON(out, '[')
	if err != nil {
		return nil, fmt.Errorf("generating tasks: %w", err)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("generating tasks: %w: %v", ErrValidation, err)
	}

	result := &GenerateResult{}
	inputs := s.parseGenerated(elems, opts.Labels, limit, &result.Errors)
	for _, in := range inputs {
		if opts.DryRun {
			result.Tasks = append(result.Tasks, previewTask(in))
			continue
		}
		task, err := s.tasks.CreateTask(in)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", in.Title, err))
			continue
		}
		result.Tasks = append(result.Tasks, *task)
	}
	return result, nil
}

// parseGenerated validates agent elements, collecting a message for each
// rejected one.
func (s *researchService) parseGenerated(elems []json.RawMessage, extraLabels []string, limit int, errs *[]string) []CreateTaskInput {
	var inputs []CreateTaskInput
	for i, elem := range elems {
		if len(inputs) >= limit {
			*errs = append(*errs, fmt.Sprintf("dropped %d task(s) beyond the limit of %d", len(elems)-i, limit))
			break
		}
		var g generatedTask
		if err := json.Unmarshal(elem, &g); err != nil {
			*errs = append(*errs, fmt.Sprintf("element %d: %v", i+1, err))
			continue
		}
		if strings.TrimSpace(g.Title) == "" {
			*errs = append(*errs, fmt.Sprintf("element %d: missing title", i+1))
			continue
		}
		in := CreateTaskInput{
			Title:          g.Title,
			Description:    g.Description,
			Labels:         append(append([]string{}, g.Labels...), extraLabels...),
			EstimatedHours: g.EstimatedHours,
		}
		if g.Priority != "" {
			p, err := models.ParsePriority(g.Priority)
			if err != nil {
				*errs = append(*errs, fmt.Sprintf("element %d: %v", i+1, err))
				continue
			}
			in.Priority = p
		}
		if in.EstimatedHours != nil && *in.EstimatedHours < 0 {
			in.EstimatedHours = nil
		}
		inputs = append(inputs, in)
	}
	return inputs
}

func previewTask(in CreateTaskInput) models.Task {
	p := in.Priority
	if p == "" {
		p = models.PriorityMedium
	}
	return models.Task{
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		Status:         models.StatusTodo,
		Priority:       p,
		Labels:         normalizeLabels(in.Labels),
		EstimatedHours: in.EstimatedHours,
	}
}

type researchAnswer struct {
	Summary         string          `json:"summary"`
	Findings        []string        `json:"findings"`
	Recommendations []string        `json:"recommendations"`
	Tasks           json.RawMessage `json:"tasks"`
}

// Research asks the agent about query, writes a Markdown report under
// research/ and optionally stores the suggested tasks.
func (s *researchService) Research(ctx context.Context, query string, opts ResearchOptions) (*ResearchReport, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: research query must not be empty", ErrValidation)
	}

	var prompt strings.Builder
	prompt.WriteString("Research the following topic for a software team and answer with only a JSON object.\n\n")
	prompt.WriteString("Topic:\n")
	prompt.WriteString(query)
	prompt.WriteString("\n\nShape:\n")
	prompt.WriteString(`{"summary": string, "findings": [string], "recommendations": [string], "tasks": [` + taskSchemaHint + `]}`)
	prompt.WriteString("\n")

	out, err := s.ask(ctx, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("researching: %w", err)
	}

	report := &ResearchReport{Query: query, GeneratedAt: s.now()}
	var answer researchAnswer
	raw, err := ExtractJSON(out, '{')
	if err == nil {
		err = json.Unmarshal(raw, &answer)
	}
	if err != nil {
		// Free-form answers are kept verbatim as the summary.
		s.logger.Debug("agent answer was not JSON, keeping raw text", "err", err)
		answer = researchAnswer{Summary: strings.TrimSpace(out)}
	}
	report.Summary = strings.TrimSpace(answer.Summary)
	report.Findings = answer.Findings
	report.Recommendations = answer.Recommendations

	var discarded []string
	if len(answer.Tasks) > 0 {
		var elems []json.RawMessage
		if err := json.Unmarshal(answer.Tasks, &elems); err == nil {
			for _, in := range s.parseGenerated(elems, []string{"research"}, 20, &discarded) {
				report.SuggestedTasks = append(report.SuggestedTasks, previewTask(in))
			}
		}
	}
	for _, d := range discarded {
		s.logger.Debug("discarded suggested task", "reason", d)
	}

	if opts.CreateTasks {
		for _, suggested := range report.SuggestedTasks {
			task, err := s.tasks.CreateTask(CreateTaskInput{
				Title:          suggested.Title,
				Description:    suggested.Description,
				Priority:       suggested.Priority,
				Labels:         suggested.Labels,
				EstimatedHours: suggested.EstimatedHours,
			})
			if err != nil {
				return report, fmt.Errorf("creating suggested task %q: %w", suggested.Title, err)
			}
			report.CreatedTasks = append(report.CreatedTasks, *task)
		}
	}

	path, err := s.writeReport(report)
	if err != nil {
		return report, err
	}
	report.Path = path
	return report, nil
}

func (s *researchService) writeReport(r *ResearchReport) (string, error) {
	dir := filepath.Join(s.dataDir, "research")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating research directory: %w", err)
	}
	slug := Slugify(r.Query)
	if slug == "" {
		slug = "research"
	}
	path := filepath.Join(dir, slug+"-"+r.GeneratedAt.Format("20060102-150405")+".md")

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(RenderResearchMarkdown(r)), 0o600); err != nil {
		return "", fmt.Errorf("writing research report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalizing research report: %w", err)
	}
	return path, nil
}

// RenderResearchMarkdown formats a report as Markdown.
func RenderResearchMarkdown(r *ResearchReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research: %s\n\n", r.Query)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Summary\n\n")
	if r.Summary == "" {
		b.WriteString("_No summary provided._\n")
	} else {
		b.WriteString(r.Summary + "\n")
	}

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n## %s\n\n", title)
		for _, item := range items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	writeList("Findings", r.Findings)
	writeList("Recommendations", r.Recommendations)

	if len(r.SuggestedTasks) > 0 {
		b.WriteString("\n## Suggested Tasks\n\n")
		for _, t := range r.SuggestedTasks {
			fmt.Fprintf(&b, "- [ ] %s %s", t.Priority.Icon(), t.Title)
			if t.EstimatedHours != nil {
				fmt.Fprintf(&b, " (%sh)", formatHours(t.EstimatedHours))
			}
			b.WriteString("\n")
		}
	}
	if len(r.CreatedTasks) > 0 {
		b.WriteString("\n## Created Tasks\n\n")
		for _, t := range r.CreatedTasks {
			fmt.Fprintf(&b, "- %s %s\n", t.ID, t.Title)
		}
	}
	return b.String()
}

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

// maxJSONStarts bounds how many opening brackets ExtractJSON tries per
// candidate, keeping bracket-heavy output that never parses linear.
const maxJSONStarts = 32

// ExtractJSON returns the first JSON value starting with open ('[' or '{')
// found in agent output, preferring fenced code blocks over bare text.
func ExtractJSON(out string, open byte) ([]byte, error) {
	var candidates []string
	for _, m := range fencePattern.FindAllStringSubmatch(out, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, out)

	for _, c := range candidates {
		tries := 0
		for i := 0; i < len(c) && tries < maxJSONStarts; i++ {
			if c[i] != open {
				continue
			}
			tries++
			var raw json.RawMessage
			if err := json.NewDecoder(strings.NewReader(c[i:])).Decode(&raw); err == nil {
				return raw, nil
			}
		}
	}
	kind := "array"
	if open == '{' {
		kind = "object"
	}
	return nil, fmt.Errorf("%w: no JSON %s found in agent output", ErrValidation, kind)
}
