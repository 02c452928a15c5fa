package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// DefaultAgentTimeout bounds an agent run when no timeout is configured.
const DefaultAgentTimeout = 2 * time.Minute

// ErrAgentUnavailable is returned when the agent binary cannot be found.
var ErrAgentUnavailable = errors.New("coding agent CLI not available")

// AgentConfig holds the parameters needed to run the external coding agent.
type AgentConfig struct {
	// Command is the agent binary or the name of an alias.
	Command string
	Args    []string
	Timeout time.Duration
	Aliases []models.AgentAlias
	// Env is added to the inherited environment of every run.
	Env     map[string]string
	WorkDir string
}

// AgentResult captures the outcome of one agent invocation.
type AgentResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// AgentExitError reports a run that finished with a non-zero exit code.
type AgentExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *AgentExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// AgentRunner runs prompts through an external coding-agent CLI.
type AgentRunner interface {
	// Run sends prompt on stdin and returns the captured output.
	Run(ctx context.Context, prompt string) (*AgentResult, error)
	// Available reports whether the resolved command can be found on PATH.
	Available() error
	// Command returns the resolved command and the full argument list.
	Command() (string, []string)
}

type agentRunner struct {
	cfg AgentConfig
}

// NewAgentRunner creates an AgentRunner for cfg.
func NewAgentRunner(cfg AgentConfig) AgentRunner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAgentTimeout
	}
	return &agentRunner{cfg: cfg}
}

// ResolveAlias scans aliases for a matching name. If found, it returns the
// expanded command and default args; otherwise it returns name unchanged.
func ResolveAlias(name string, aliases []models.AgentAlias) (string, []string, bool) {
	for _, a := range aliases {
		if a.Name == name {
			return a.Command, a.DefaultArgs, true
		}
	}
	return name, nil, false
}

// ListAliases returns formatted strings describing each configured alias.
func ListAliases(aliases []models.AgentAlias) []string {
	result := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if len(a.DefaultArgs) > 0 {
			result = append(result, fmt.Sprintf("%s -> %s [%s]", a.Name, a.Command, strings.Join(a.DefaultArgs, " ")))
		} else {
			result = append(result, fmt.Sprintf("%s -> %s", a.Name, a.Command))
		}
	}
	return result
}

// BuildEnv appends extra variables, in key order, to base.
func BuildEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, len(base), len(base)+len(keys))
	copy(env, base)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func (r *agentRunner) Command() (string, []string) {
	command, defaultArgs, _ := ResolveAlias(r.cfg.Command, r.cfg.Aliases)
	args := make([]string, 0, len(defaultArgs)+len(r.cfg.Args))
	args = append(args, defaultArgs...)
	args = append(args, r.cfg.Args...)
	return command, args
}

func (r *agentRunner) Available() error {
	command, _ := r.Command()
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("%w: no command configured (set ai.command)", ErrAgentUnavailable)
	}
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAgentUnavailable, command, err)
	}
	return nil
}

// Run executes the agent with the prompt on stdin under the configured timeout.
// A non-zero exit returns the result together with an *AgentExitError.
func (r *agentRunner) Run(ctx context.Context, prompt string) (*AgentResult, error) {
	if err := r.Available(); err != nil {
		return nil, err
	}
	command, args := r.Command()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = BuildEnv(os.Environ(), r.cfg.Env)
	cmd.Dir = r.cfg.WorkDir
	cmd.Stdin = strings.NewReader(prompt)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	// Children of the agent may hold the pipes open after it is killed.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	result := &AgentResult{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return result, fmt.Errorf("running %s: timed out after %s: %w", command, r.cfg.Timeout, ctxErr)
		}
		return result, fmt.Errorf("running %s: %w", command, ctxErr)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &AgentExitError{
				Command:  command,
				ExitCode: result.ExitCode,
				Stderr:   strings.TrimSpace(result.Stderr),
			}
		}
		return result, fmt.Errorf("executing %s: %w", command, err)
	}
	return result, nil
}
