package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valter-silva-au/critical-claude/internal/storage"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

func newTestTemplateService(t *testing.T) (TemplateService, *taskService) {
	t.Helper()
	tasks, root := newTestTaskService(t)
	return NewTemplateService(storage.NewFileStorage(root, nil), tasks, nil), tasks
}

func TestBuiltinTemplates(t *testing.T) {
	builtins := BuiltinTemplates()
	names := make([]string, len(builtins))
	for i, b := range builtins {
		names[i] = b.ID
		assert.True(t, b.Builtin)
		assert.NotEmpty(t, b.Tasks)
	}
	assert.Equal(t, []string{"bug-fix", "feature-development", "code-review", "sprint-planning"}, names)

	builtins[0].Tasks[0].Title = "mutated"
	assert.NotEqual(t, "mutated", BuiltinTemplates()[0].Tasks[0].Title)
}

func TestApplyTemplate_BugFix(t *testing.T) {
	svc, tasks := newTestTemplateService(t)
	bugFix, err := svc.GetTemplate("bug-fix")
	require.NoError(t, err)

	created, err := svc.ApplyTemplate("bug-fix", map[string]string{
		"bug_description":    "login fails on Safari",
		"affected_component": "auth",
	})
	require.NoError(t, err)
	require.Len(t, created, len(bugFix.Tasks))

	assert.Equal(t, "Reproduce: login fails on Safari", created[0].Title)
	assert.Equal(t, "Write down exact steps that trigger login fails on Safari in auth.", created[0].Description)
	assert.Equal(t, []string{"bug", "auth"}, created[0].Labels)
	assert.Equal(t, "Fix login fails on Safari in auth", created[2].Title)
	assert.Equal(t, models.PriorityHigh, created[0].Priority)

	for _, task := range created {
		assert.NotContains(t, task.Title, "{{")
		assert.NotContains(t, task.Description, "{{")
	}

	listed, err := tasks.ListTasks(TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, listed, len(bugFix.Tasks))
}

func TestApplyTemplate_DefaultsAndUnknownTokens(t *testing.T) {
	svc, _ := newTestTemplateService(t)
	_, err := svc.SaveTemplate(models.Template{
		Name:      "Release",
		Variables: map[string]string{"version": "v0"},
		Tasks: []models.TaskBlueprint{
			{Title: "Tag {{ version }} for {{ channel }}"},
		},
	})
	require.NoError(t, err)

	created, err := svc.ApplyTemplate("release", nil)
	require.NoError(t, err)
	assert.Equal(t, "Tag v0 for {{ channel }}", created[0].Title)

	created, err = svc.ApplyTemplate("Release", map[string]string{"version": "v1.2", "channel": "stable"})
	require.NoError(t, err)
	assert.Equal(t, "Tag v1.2 for stable", created[0].Title)
}

func TestApplyTemplate_NotFound(t *testing.T) {
	svc, _ := newTestTemplateService(t)
	_, err := svc.ApplyTemplate("no-such-template", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyTemplate_PartialFailureReturnsCreated(t *testing.T) {
	svc, _ := newTestTemplateService(t)
	_, err := svc.SaveTemplate(models.Template{
		Name: "Half",
		Tasks: []models.TaskBlueprint{
			{Title: "first"},
			{Title: "{{empty}}"},
			{Title: "third"},
		},
	})
	require.NoError(t, err)

	created, err := svc.ApplyTemplate("half", map[string]string{"empty": " "})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	require.Len(t, created, 1)
	assert.Equal(t, "first", created[0].Title)
}

func TestSaveTemplate_Validation(t *testing.T) {
	svc, _ := newTestTemplateService(t)

	_, err := svc.SaveTemplate(models.Template{Name: "", Tasks: []models.TaskBlueprint{{Title: "x"}}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SaveTemplate(models.Template{Name: "Empty"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SaveTemplate(models.Template{Name: "Bad", Tasks: []models.TaskBlueprint{{Title: "x", Priority: "p1"}}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.SaveTemplate(models.Template{ID: "bug-fix", Name: "Override", Tasks: []models.TaskBlueprint{{Title: "x"}}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSaveTemplate_KeepsCreatedAt(t *testing.T) {
	svc, _ := newTestTemplateService(t)
	tpl := models.Template{Name: "Weekly Review", Tasks: []models.TaskBlueprint{{Title: "review"}}}

	first, err := svc.SaveTemplate(tpl)
	require.NoError(t, err)
	assert.Equal(t, "weekly-review", first.ID)
	assert.Equal(t, "1.0.0", first.Metadata.Version)

	second, err := svc.SaveTemplate(*first)
	require.NoError(t, err)
	assert.Equal(t, first.Metadata.CreatedAt, second.Metadata.CreatedAt)
}

func TestListAndDeleteTemplates(t *testing.T) {
	svc, _ := newTestTemplateService(t)
	_, err := svc.SaveTemplate(models.Template{Name: "Zeta", Tasks: []models.TaskBlueprint{{Title: "z"}}})
	require.NoError(t, err)
	_, err = svc.SaveTemplate(models.Template{Name: "alpha", Tasks: []models.TaskBlueprint{{Title: "a"}}})
	require.NoError(t, err)

	all, err := svc.ListTemplates()
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "alpha", all[4].Name)
	assert.Equal(t, "Zeta", all[5].Name)

	assert.ErrorIs(t, svc.DeleteTemplate("bug-fix"), ErrValidation)
	require.NoError(t, svc.DeleteTemplate("zeta"))
	assert.ErrorIs(t, svc.DeleteTemplate("zeta"), ErrNotFound)
}

func TestImportTemplateFile(t *testing.T) {
	svc, _ := newTestTemplateService(t)
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "onboarding.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(strings.Join([]string{
		"name: Onboarding",
		"variables:",
		"  person: new hire",
		"tasks:",
		"  - title: Create accounts for {{person}}",
		"    priority: high",
		"    estimated_hours: 1.5",
		"  - title: Pair with {{person}}",
	}, "\n")), 0o644))

	tpl, err := svc.ImportTemplateFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "onboarding", tpl.ID)
	require.Len(t, tpl.Tasks, 2)
	require.NotNil(t, tpl.Tasks[0].EstimatedHours)
	assert.Equal(t, 1.5, *tpl.Tasks[0].EstimatedHours)

	jsonPath := filepath.Join(dir, "t.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"id":"json-one","name":"JSON One","tasks":[{"title":"go"}]}`), 0o644))
	tpl, err = svc.ImportTemplateFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "json-one", tpl.ID)

	txtPath := filepath.Join(dir, "t.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o644))
	_, err = svc.ImportTemplateFile(txtPath)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders(models.Template{Tasks: []models.TaskBlueprint{
		{Title: "{{b}} and {{ a }}", Labels: []string{"{{c}}"}},
		{Description: "{{a}}"},
	}})
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("  Hello, World!  "))
	assert.Equal(t, "", Slugify("!!!"))
	assert.LessOrEqual(t, len(Slugify(strings.Repeat("ab ", 40))), 50)
}
