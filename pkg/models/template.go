package models

import "time"

// TaskBlueprint describes one task a template produces. Text fields may
// contain {{variable}} placeholders.
type TaskBlueprint struct {
	Title          string   `json:"title" yaml:"title"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	Priority       Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
	Labels         []string `json:"labels,omitempty" yaml:"labels,omitempty"`
	EstimatedHours *float64 `json:"estimatedHours,omitempty" yaml:"estimated_hours,omitempty"`
}

// TemplateMetadata carries authorship and versioning details.
type TemplateMetadata struct {
	Author    string    `json:"author,omitempty" yaml:"author,omitempty"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// Template is a reusable set of task blueprints with default variable values.
type Template struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks       []TaskBlueprint   `json:"tasks" yaml:"tasks"`
	Variables   map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Metadata    TemplateMetadata  `json:"metadata" yaml:"metadata"`
	Builtin     bool              `json:"builtin,omitempty" yaml:"-"`
}
