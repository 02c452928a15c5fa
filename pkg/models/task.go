package models

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the current lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
	StatusArchived   Status = "archived"
)

// AllStatuses lists every Status in display order.
var AllStatuses = []Status{
	StatusTodo,
	StatusInProgress,
	StatusDone,
	StatusBlocked,
	StatusArchived,
}

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// AllPriorities lists every Priority from most to least urgent.
var AllPriorities = []Priority{
	PriorityCritical,
	PriorityHigh,
	PriorityMedium,
	PriorityLow,
}

// statusInfo is the exhaustive lookup table for Status. Every member of
// AllStatuses must have an entry; statusTableComplete is checked by tests.
var statusInfo = map[Status]struct {
	icon  string
	color string
	next  Status
}{
	StatusTodo:       {icon: "○", color: "245", next: StatusInProgress},
	StatusInProgress: {icon: "◐", color: "226", next: StatusDone},
	StatusDone:       {icon: "●", color: "46", next: StatusTodo},
	StatusBlocked:    {icon: "⊘", color: "196", next: StatusInProgress},
	StatusArchived:   {icon: "▣", color: "240", next: StatusTodo},
}

var priorityInfo = map[Priority]struct {
	icon string
	rank int
}{
	PriorityCritical: {icon: "🔥", rank: 0},
	PriorityHigh:     {icon: "🔴", rank: 1},
	PriorityMedium:   {icon: "🟡", rank: 2},
	PriorityLow:      {icon: "🟢", rank: 3},
}

// ParseStatus converts s into a Status, rejecting values outside the enumeration.
// Hyphens are accepted in place of underscores ("in-progress").
func ParseStatus(s string) (Status, error) {
	normalized := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if _, ok := statusInfo[normalized]; !ok {
		return "", fmt.Errorf("invalid status %q: must be one of %s", s, joinStatuses(AllStatuses))
	}
	return normalized, nil
}

// ParsePriority converts s into a Priority, rejecting values outside the enumeration.
func ParsePriority(s string) (Priority, error) {
	normalized := Priority(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := priorityInfo[normalized]; !ok {
		return "", fmt.Errorf("invalid priority %q: must be one of critical, high, medium, low", s)
	}
	return normalized, nil
}

// Valid reports whether s is a member of the enumeration.
func (s Status) Valid() bool {
	_, ok := statusInfo[s]
	return ok
}

// Next returns the status reached by one toggle. This is the single
// transition table used by every surface that cycles status.
func (s Status) Next() Status {
	if info, ok := statusInfo[s]; ok {
		return info.next
	}
	return StatusTodo
}

// Icon returns a one-character marker for terminal output.
func (s Status) Icon() string {
	return statusInfo[s].icon
}

// Color returns the ANSI 256 color code used for this status.
func (s Status) Color() string {
	return statusInfo[s].color
}

func (s Status) String() string { return string(s) }

// Valid reports whether p is a member of the enumeration.
func (p Priority) Valid() bool {
	_, ok := priorityInfo[p]
	return ok
}

// Rank orders priorities, 0 being the most urgent.
func (p Priority) Rank() int {
	if info, ok := priorityInfo[p]; ok {
		return info.rank
	}
	return len(priorityInfo)
}

// Icon returns the emoji marker for this priority.
func (p Priority) Icon() string {
	return priorityInfo[p].icon
}

func (p Priority) String() string { return string(p) }

func joinStatuses(ss []Status) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// Task is a single unit of tracked work, persisted as one JSON file in the
// tasks collection.
type Task struct {
	ID             string    `json:"id" yaml:"id"`
	Title          string    `json:"title" yaml:"title"`
	Description    string    `json:"description" yaml:"description"`
	Status         Status    `json:"status" yaml:"status"`
	Priority       Priority  `json:"priority" yaml:"priority"`
	Labels         []string  `json:"labels" yaml:"labels"`
	Assignee       string    `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	EstimatedHours *float64  `json:"estimatedHours,omitempty" yaml:"estimated_hours,omitempty"`
	Draft          bool      `json:"draft,omitempty" yaml:"draft,omitempty"`
	CreatedAt      time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	if t.Labels != nil {
		c.Labels = append([]string(nil), t.Labels...)
	}
	if t.EstimatedHours != nil {
		h := *t.EstimatedHours
		c.EstimatedHours = &h
	}
	return c
}

// HasLabel reports whether the task carries the given label (case-insensitive).
func (t Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}
