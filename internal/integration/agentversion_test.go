package integration

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestParseAgentVersion(t *testing.T) {
	tests := []struct {
		in   string
		want AgentVersion
	}{
		{"1.0.43 (Claude Code)\n", AgentVersion{1, 0, 43}},
		{"v2.1.50", AgentVersion{2, 1, 50}},
		{"ollama version is 0.5.7", AgentVersion{0, 5, 7}},
		{"tool 3.2.1-beta", AgentVersion{3, 2, 1}},
		{"release 4.5.6.", AgentVersion{4, 5, 6}},
	}
	for _, tt := range tests {
		got, err := ParseAgentVersion(tt.in)
		if err != nil {
			t.Errorf("ParseAgentVersion(%q) error: %v", tt.in, err)
			continue
		}
		if *got != tt.want {
			t.Errorf("ParseAgentVersion(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseAgentVersion_Invalid(t *testing.T) {
	for _, in := range []string{"", "no version here", "1.2", "1.2.3.4"} {
		if v, err := ParseAgentVersion(in); err == nil {
			t.Errorf("ParseAgentVersion(%q) = %s, want error", in, v)
		}
	}
}

func TestAgentVersionCompare(t *testing.T) {
	a := AgentVersion{1, 2, 3}
	cases := map[AgentVersion]int{
		{1, 2, 3}: 0,
		{1, 2, 4}: -1,
		{1, 3, 0}: -1,
		{2, 0, 0}: -1,
		{1, 2, 2}: 1,
		{0, 9, 9}: 1,
	}
	for other, want := range cases {
		if got := a.Compare(other); got != want {
			t.Errorf("%s.Compare(%s) = %d, want %d", a, other, got, want)
		}
	}
}

// Compare is antisymmetric and agrees with the rendered version.
func TestAgentVersionProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		gen := func(label string) AgentVersion {
			return AgentVersion{
				Major: rapid.IntRange(0, 50).Draw(rt, label+"Major"),
				Minor: rapid.IntRange(0, 50).Draw(rt, label+"Minor"),
				Patch: rapid.IntRange(0, 200).Draw(rt, label+"Patch"),
			}
		}
		a, b := gen("a"), gen("b")
		if a.Compare(b) != -b.Compare(a) {
			rt.Fatalf("Compare not antisymmetric for %s and %s", a, b)
		}
		parsed, err := ParseAgentVersion("agent " + a.String() + " (build)")
		if err != nil || *parsed != a {
			rt.Fatalf("round trip of %s gave %v, %v", a, parsed, err)
		}
	})
}

type stubRunner struct {
	command  string
	availErr error
}

func (s stubRunner) Run(context.Context, string) (*AgentResult, error) { return nil, nil }
func (s stubRunner) Available() error                                 { return s.availErr }
func (s stubRunner) Command() (string, []string)                      { return s.command, nil }

func TestDetectAgentVersion(t *testing.T) {
	orig := runVersionCommand
	defer func() { runVersionCommand = orig }()

	var probed string
	runVersionCommand = func(_ context.Context, command string) (string, error) {
		probed = command
		return "1.0.43 (Claude Code)", nil
	}

	v, err := DetectAgentVersion(context.Background(), stubRunner{command: "claude"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probed != "claude" || v.String() != "1.0.43" {
		t.Errorf("probed %q, got %s", probed, v)
	}

	runVersionCommand = func(context.Context, string) (string, error) { return "", errors.New("exit status 1") }
	if _, err := DetectAgentVersion(context.Background(), stubRunner{command: "claude"}); err == nil {
		t.Error("expected command failure to be returned")
	}

	if _, err := DetectAgentVersion(context.Background(), stubRunner{availErr: ErrAgentUnavailable}); !errors.Is(err, ErrAgentUnavailable) {
		t.Errorf("expected ErrAgentUnavailable, got %v", err)
	}
}
