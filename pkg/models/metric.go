package models

import "time"

// UsageMetric records one CLI command execution.
type UsageMetric struct {
	ID              string    `json:"id"`
	Command         string    `json:"command"`
	Action          string    `json:"action,omitempty"`
	Success         bool      `json:"success"`
	ExecutionTimeMs int64     `json:"executionTime"`
	Timestamp       time.Time `json:"timestamp"`
	Error           string    `json:"error,omitempty"`
}

// UsageStats summarizes the recorded usage metrics.
type UsageStats struct {
	TotalCommands   int            `json:"totalCommands"`
	Successful      int            `json:"successful"`
	Failed          int            `json:"failed"`
	SuccessRate     float64        `json:"successRate"`
	AvgExecutionMs  float64        `json:"avgExecutionMs"`
	CommandCounts   map[string]int `json:"commandCounts"`
	MostUsedCommand string         `json:"mostUsedCommand,omitempty"`
	RecentErrors    []UsageMetric  `json:"recentErrors,omitempty"`
	FirstRecorded   *time.Time     `json:"firstRecorded,omitempty"`
	LastRecorded    *time.Time     `json:"lastRecorded,omitempty"`
}
