package models

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestStatusTableCovered(t *testing.T) {
	for _, s := range AllStatuses {
		if _, ok := statusInfo[s]; !ok {
			t.Errorf("status %q has no entry in statusInfo", s)
		}
		if s.Icon() == "" {
			t.Errorf("status %q has no icon", s)
		}
		if s.Color() == "" {
			t.Errorf("status %q has no color", s)
		}
		if !s.Next().Valid() {
			t.Errorf("status %q transitions to invalid status %q", s, s.Next())
		}
	}
	if len(statusInfo) != len(AllStatuses) {
		t.Errorf("statusInfo has %d entries, AllStatuses has %d", len(statusInfo), len(AllStatuses))
	}
}

func TestPriorityTableCovered(t *testing.T) {
	seen := make(map[int]bool)
	for _, p := range AllPriorities {
		if _, ok := priorityInfo[p]; !ok {
			t.Errorf("priority %q has no entry in priorityInfo", p)
		}
		if seen[p.Rank()] {
			t.Errorf("priority %q shares rank %d", p, p.Rank())
		}
		seen[p.Rank()] = true
	}
	if len(priorityInfo) != len(AllPriorities) {
		t.Errorf("priorityInfo has %d entries, AllPriorities has %d", len(priorityInfo), len(AllPriorities))
	}
}

func TestStatusNext(t *testing.T) {
	tests := []struct {
		from Status
		want Status
	}{
		{StatusTodo, StatusInProgress},
		{StatusInProgress, StatusDone},
		{StatusDone, StatusTodo},
		{StatusBlocked, StatusInProgress},
		{StatusArchived, StatusTodo},
	}
	for _, tt := range tests {
		if got := tt.from.Next(); got != tt.want {
			t.Errorf("%s.Next() = %s, want %s", tt.from, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"todo", StatusTodo, false},
		{"IN_PROGRESS", StatusInProgress, false},
		{"in-progress", StatusInProgress, false},
		{" done ", StatusDone, false},
		{"review", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	if p, err := ParsePriority("High"); err != nil || p != PriorityHigh {
		t.Errorf("ParsePriority(High) = %q, %v", p, err)
	}
	if _, err := ParsePriority("P0"); err == nil {
		t.Error("expected error for P0")
	}
}

func TestTaskClone_Independent(t *testing.T) {
	h := 2.5
	orig := Task{Title: "a", Labels: []string{"x"}, EstimatedHours: &h}
	c := orig.Clone()
	c.Labels[0] = "y"
	*c.EstimatedHours = 9
	if orig.Labels[0] != "x" {
		t.Error("clone shares labels slice")
	}
	if *orig.EstimatedHours != 2.5 {
		t.Error("clone shares estimated hours pointer")
	}
}

func TestResultOf(t *testing.T) {
	ok := ResultOf(3, nil)
	if !ok.Success || ok.Data != 3 || ok.Error != "" {
		t.Errorf("unexpected success result: %+v", ok)
	}
	failed := ResultOf(0, errors.New("boom"))
	if failed.Success || failed.Error != "boom" {
		t.Errorf("unexpected failure result: %+v", failed)
	}
}

// Toggling any status three times from todo returns to todo, and every
// status reaches todo within three toggles.
func TestStatusCycleProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.SampledFrom(AllStatuses).Draw(t, "start")
		s := start
		reachedTodo := s == StatusTodo
		for i := 0; i < 3; i++ {
			s = s.Next()
			if s == StatusTodo {
				reachedTodo = true
			}
		}
		if start == StatusTodo && s != StatusTodo {
			t.Fatalf("three toggles from todo ended at %s", s)
		}
		if !reachedTodo {
			t.Fatalf("status %s never reached todo within three toggles", start)
		}
	})
}
