package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valter-silva-au/critical-claude/internal/core"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

func TestTemplateList(t *testing.T) {
	setupCLI(t)

	stdout, _, err := runCLI(t, "template", "list")
	require.NoError(t, err)
	for _, id := range []string{"bug-fix", "feature-development", "code-review", "sprint-planning"} {
		assert.Contains(t, stdout, id)
	}
	assert.Contains(t, stdout, "(built-in, 4 tasks)")
}

func TestTemplateView_ShowsVariables(t *testing.T) {
	setupCLI(t)

	stdout, _, err := runCLI(t, "template", "view", "bug-fix")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Variables:")
	assert.Contains(t, stdout, "bug_description")
	assert.Contains(t, stdout, "the affected component")
	assert.Contains(t, stdout, "1. Reproduce: {{bug_description}}")

	_, _, err = runCLI(t, "template", "view", "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTemplateApply_WithVars(t *testing.T) {
	setupCLI(t)

	stdout, _, err := runCLI(t, "template", "apply", "bug-fix",
		"--var", "bug_description=login fails",
		"--var", "affected_component=auth")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✅ Created 4 task(s) from bug-fix")
	assert.Contains(t, stdout, "Reproduce: login fails")

	tasks, err := TaskSvc.ListTasks(core.TaskFilter{Labels: []string{"auth"}})
	require.NoError(t, err)
	assert.NotEmpty(t, tasks)
	for _, task := range tasks {
		assert.NotContains(t, task.Title, "{{")
	}
}

func TestTemplateApply_DefaultsAndBadVar(t *testing.T) {
	setupCLI(t)

	stdout, _, err := runCLI(t, "template", "apply", "bug-fix")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Reproduce: the reported bug")

	_, _, err = runCLI(t, "template", "apply", "bug-fix", "--var", "no-equals-sign")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, _, err = runCLI(t, "template", "apply", "missing-template")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTemplateImportAndDelete(t *testing.T) {
	setupCLI(t)
	path := filepath.Join(t.TempDir(), "release.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Release Checklist
description: Ship version {{version}}
variables:
  version: "1.0"
tasks:
  - title: Tag {{version}}
    priority: high
  - title: Announce {{version}}
`), 0o600))

	stdout, _, err := runCLI(t, "template", "import", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✅ Saved template release-checklist (2 tasks)")

	stdout, _, err = runCLI(t, "template", "apply", "release-checklist", "--var", "version=2.3")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Tag 2.3")

	_, _, err = runCLI(t, "template", "delete", "release-checklist")
	require.NoError(t, err)
	_, _, err = runCLI(t, "template", "view", "release-checklist")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, _, err = runCLI(t, "template", "delete", "bug-fix")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestTemplateApply_JSON(t *testing.T) {
	setupCLI(t)

	stdout, _, err := runCLI(t, "template", "apply", "code-review", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"success": true`)

	tasks, err := TaskSvc.ListTasks(core.TaskFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, tasks)
	assert.Equal(t, models.StatusTodo, tasks[0].Status)
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"a=1", " b =x=y", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y", "empty": ""}, vars)

	_, err = parseVars([]string{"=value"})
	assert.ErrorIs(t, err, core.ErrValidation)
}
