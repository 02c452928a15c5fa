package core

import "github.com/valter-silva-au/critical-claude/pkg/models"

func hours(h float64) *float64 { return &h }

// builtinTemplates is built on every call so callers can never mutate the
// shared definitions.
func builtinTemplates() []models.Template {
	meta := models.TemplateMetadata{Author: "critical-claude", Version: "1.0.0"}
	return []models.Template{
		{
			ID:          "bug-fix",
			Name:        "Bug Fix",
			Description: "Reproduce, fix and verify a defect",
			Variables: map[string]string{
				"bug_description":    "the reported bug",
				"affected_component": "the affected component",
			},
			Tasks: []models.TaskBlueprint{
				{
					Title:          "Reproduce: {{bug_description}}",
					Description:    "Write down exact steps that trigger {{bug_description}} in {{affected_component}}.",
					Priority:       models.PriorityHigh,
					Labels:         []string{"bug", "{{affected_component}}"},
					EstimatedHours: hours(1),
				},
				{
					Title:          "Find root cause of {{bug_description}}",
					Description:    "Trace the failure through {{affected_component}} and record the cause.",
					Priority:       models.PriorityHigh,
					Labels:         []string{"bug", "investigation"},
					EstimatedHours: hours(2),
				},
				{
					Title:          "Fix {{bug_description}} in {{affected_component}}",
					Priority:       models.PriorityHigh,
					Labels:         []string{"bug", "{{affected_component}}"},
					EstimatedHours: hours(3),
				},
				{
					Title:          "Add regression test for {{affected_component}}",
					Description:    "Cover the scenario from the reproduction steps so {{bug_description}} cannot return.",
					Priority:       models.PriorityMedium,
					Labels:         []string{"bug", "testing"},
					EstimatedHours: hours(1),
				},
			},
			Metadata: withTags(meta, "bug", "maintenance"),
			Builtin:  true,
		},
		{
			ID:          "feature-development",
			Name:        "Feature Development",
			Description: "Design, build, test and document a feature",
			Variables: map[string]string{
				"feature_name": "the feature",
			},
			Tasks: []models.TaskBlueprint{
				{
					Title:          "Write design notes for {{feature_name}}",
					Description:    "Capture scope, interfaces and open questions for {{feature_name}}.",
					Priority:       models.PriorityHigh,
					Labels:         []string{"feature", "design"},
					EstimatedHours: hours(2),
				},
				{
					Title:          "Implement {{feature_name}}",
					Priority:       models.PriorityHigh,
					Labels:         []string{"feature"},
					EstimatedHours: hours(8),
				},
				{
					Title:          "Write tests for {{feature_name}}",
					Priority:       models.PriorityMedium,
					Labels:         []string{"feature", "testing"},
					EstimatedHours: hours(3),
				},
				{
					Title:          "Document {{feature_name}}",
					Priority:       models.PriorityLow,
					Labels:         []string{"feature", "docs"},
					EstimatedHours: hours(1),
				},
			},
			Metadata: withTags(meta, "feature"),
			Builtin:  true,
		},
		{
			ID:          "code-review",
			Name:        "Code Review",
			Description: "Review a change set end to end",
			Variables: map[string]string{
				"pr_reference": "the change",
			},
			Tasks: []models.TaskBlueprint{
				{
					Title:          "Read through {{pr_reference}}",
					Description:    "Understand intent and scope before commenting.",
					Priority:       models.PriorityMedium,
					Labels:         []string{"review"},
					EstimatedHours: hours(0.5),
				},
				{
					Title:          "Check tests and edge cases in {{pr_reference}}",
					Priority:       models.PriorityMedium,
					Labels:         []string{"review", "testing"},
					EstimatedHours: hours(1),
				},
				{
					Title:          "Leave review feedback on {{pr_reference}}",
					Priority:       models.PriorityMedium,
					Labels:         []string{"review"},
					EstimatedHours: hours(0.5),
				},
			},
			Metadata: withTags(meta, "review"),
			Builtin:  true,
		},
		{
			ID:          "sprint-planning",
			Name:        "Sprint Planning",
			Description: "Prepare and run a sprint planning session",
			Variables: map[string]string{
				"sprint_name": "the next sprint",
			},
			Tasks: []models.TaskBlueprint{
				{
					Title:          "Groom backlog for {{sprint_name}}",
					Priority:       models.PriorityHigh,
					Labels:         []string{"planning"},
					EstimatedHours: hours(1),
				},
				{
					Title:          "Estimate candidate tasks for {{sprint_name}}",
					Priority:       models.PriorityMedium,
					Labels:         []string{"planning"},
					EstimatedHours: hours(1),
				},
				{
					Title:          "Agree on goals for {{sprint_name}}",
					Priority:       models.PriorityHigh,
					Labels:         []string{"planning"},
					EstimatedHours: hours(0.5),
				},
				{
					Title:          "Schedule retrospective for {{sprint_name}}",
					Priority:       models.PriorityLow,
					Labels:         []string{"planning", "retro"},
					EstimatedHours: hours(0.25),
				},
			},
			Metadata: withTags(meta, "planning", "agile"),
			Builtin:  true,
		},
	}
}

func withTags(m models.TemplateMetadata, tags ...string) models.TemplateMetadata {
	m.Tags = tags
	return m
}

// BuiltinTemplates returns fresh copies of the built-in templates.
func BuiltinTemplates() []models.Template {
	return builtinTemplates()
}

func builtinTemplate(id string) (models.Template, bool) {
	for _, t := range builtinTemplates() {
		if t.ID == id {
			return t, true
		}
	}
	return models.Template{}, false
}
