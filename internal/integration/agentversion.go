package integration

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// AgentVersion is the semantic version reported by an agent CLI.
type AgentVersion struct {
	Major int
	Minor int
	Patch int
}

func (v AgentVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v AgentVersion) Compare(other AgentVersion) int {
	for _, d := range [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		switch {
		case d[0] < d[1]:
			return -1
		case d[0] > d[1]:
			return 1
		}
	}
	return 0
}

// versionPattern finds the first MAJOR.MINOR.PATCH in free-form output such
// as "1.0.43 (Claude Code)" or "ollama version is v0.5.7". A fourth
// component is not allowed.
var versionPattern = regexp.MustCompile(`(?:^|[^\d.])v?(\d+)\.(\d+)\.(\d+)(?:[^\d.]|\.?$)`)

// ParseAgentVersion extracts the version from the output of "<agent> --version".
func ParseAgentVersion(output string) (*AgentVersion, error) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("no MAJOR.MINOR.PATCH version in %q", output)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return &AgentVersion{Major: major, Minor: minor, Patch: patch}, nil
}

// versionProbeTimeout bounds "<agent> --version".
const versionProbeTimeout = 10 * time.Second

// runVersionCommand is replaced in tests.
var runVersionCommand = func(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, command, "--version").CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("running %s --version: %w", command, err)
	}
	return string(out), nil
}

// DetectAgentVersion asks the runner's resolved command for its version.
func DetectAgentVersion(ctx context.Context, runner AgentRunner) (*AgentVersion, error) {
	if err := runner.Available(); err != nil {
		return nil, err
	}
	command, _ := runner.Command()

	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := runVersionCommand(ctx, command)
	if err != nil {
		return nil, fmt.Errorf("detecting %s version: %w", command, err)
	}
	v, err := ParseAgentVersion(out)
	if err != nil {
		return nil, fmt.Errorf("detecting %s version: %w", command, err)
	}
	return v, nil
}
