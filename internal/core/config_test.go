package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// --- Helper ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// --- Load tests ---

func TestLoad_Defaults_WhenNoFile(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	cfg, err := cm.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Tasks.IDPrefix != "CC" {
		t.Errorf("IDPrefix = %q, want %q", cfg.Tasks.IDPrefix, "CC")
	}
	if cfg.Tasks.IDPadWidth != 5 {
		t.Errorf("IDPadWidth = %d, want 5", cfg.Tasks.IDPadWidth)
	}
	if cfg.Tasks.DefaultPriority != models.PriorityMedium {
		t.Errorf("DefaultPriority = %q, want medium", cfg.Tasks.DefaultPriority)
	}
	if !cfg.Analytics.Enabled || cfg.Analytics.MaxMetrics != 1000 {
		t.Errorf("unexpected analytics defaults: %+v", cfg.Analytics)
	}
	if cfg.Viewer.SaveRetries != 3 || cfg.Viewer.RetryDelay != 200*time.Millisecond {
		t.Errorf("unexpected viewer defaults: %+v", cfg.Viewer)
	}
	if cfg.AI.Command != "claude" || len(cfg.AI.Args) != 1 || cfg.AI.Args[0] != "-p" {
		t.Errorf("unexpected ai defaults: %+v", cfg.AI)
	}
	if cfg.AI.Timeout != 2*time.Minute {
		t.Errorf("AI.Timeout = %s, want 2m", cfg.AI.Timeout)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if err := cm.Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, `
tasks:
  id_prefix: TK
  id_pad_width: 3
  default_priority: HIGH
analytics:
  enabled: false
viewer:
  retry_delay: 50ms
ai:
  command: my-agent
  timeout: 30s
  aliases:
    - name: fast
      command: claude
      default_args: ["--model", "haiku"]
log:
  level: debug
`)

	cfg, err := NewConfigurationManager(dir).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Tasks.IDPrefix != "TK" || cfg.Tasks.IDPadWidth != 3 {
		t.Errorf("unexpected tasks config: %+v", cfg.Tasks)
	}
	if cfg.Tasks.DefaultPriority != models.PriorityHigh {
		t.Errorf("DefaultPriority = %q, want high (lowercased)", cfg.Tasks.DefaultPriority)
	}
	if cfg.Analytics.Enabled {
		t.Error("analytics should be disabled")
	}
	if cfg.Analytics.MaxMetrics != 1000 {
		t.Errorf("missing key should fall back to default, got %d", cfg.Analytics.MaxMetrics)
	}
	if cfg.Viewer.RetryDelay != 50*time.Millisecond {
		t.Errorf("RetryDelay = %s, want 50ms", cfg.Viewer.RetryDelay)
	}
	if cfg.AI.Command != "my-agent" || cfg.AI.Timeout != 30*time.Second {
		t.Errorf("unexpected ai config: %+v", cfg.AI)
	}
	if len(cfg.AI.Aliases) != 1 {
		t.Fatalf("expected 1 alias, got %d", len(cfg.AI.Aliases))
	}
	alias := cfg.AI.Aliases[0]
	if alias.Name != "fast" || alias.Command != "claude" || len(alias.DefaultArgs) != 2 {
		t.Errorf("unexpected alias: %+v", alias)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "log:\n  level: warn\n")
	t.Setenv("CC_LOG_LEVEL", "debug")
	t.Setenv("CC_ANALYTICS_MAX_METRICS", "42")

	cfg, err := NewConfigurationManager(dir).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("env should override file, got %q", cfg.Log.Level)
	}
	if cfg.Analytics.MaxMetrics != 42 {
		t.Errorf("MaxMetrics = %d, want 42", cfg.Analytics.MaxMetrics)
	}
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "tasks: [unclosed\n")

	if _, err := NewConfigurationManager(dir).Load(); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

// --- Validate tests ---

func TestValidate_CollectsAllProblems(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	cfg := DefaultConfig()
	cfg.Tasks.IDPrefix = "cc-1"
	cfg.Tasks.IDPadWidth = 11
	cfg.Tasks.DefaultPriority = "urgent"
	cfg.Viewer.SaveRetries = 0
	cfg.AI.Command = ""
	cfg.AI.Aliases = []models.AgentAlias{{Name: "a", Command: "x"}, {Name: "a", Command: "y"}, {Name: "b"}}
	cfg.Log.Level = "loud"

	err := cm.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	var verr *ConfigValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ConfigValidationError, got %T", err)
	}
	if len(verr.Problems) != 8 {
		t.Errorf("expected 8 problems, got %d:\n%s", len(verr.Problems), err)
	}
	for _, key := range []string{"tasks.id_prefix", "tasks.id_pad_width", "tasks.default_priority", "viewer.save_retries", "ai.command", "log.level"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s:\n%s", key, err)
		}
	}
}

func TestValidate_AIDisabledSkipsAgentChecks(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	cfg := DefaultConfig()
	cfg.AI.Enabled = false
	cfg.AI.Command = ""
	cfg.AI.Timeout = 0
	if err := cm.Validate(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_NilConfig(t *testing.T) {
	if err := NewConfigurationManager(t.TempDir()).Validate(nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

// --- Generate tests ---

func TestGenerate_WritesLoadableDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".critical-claude")
	cm := NewConfigurationManager(dir)

	path, err := cm.Generate(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(dir, ConfigFileName) {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Critical Claude configuration.") {
		t.Errorf("missing header:\n%s", data)
	}
	if !strings.Contains(string(data), "retry_delay: 200ms") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	cfg, err := cm.Load()
	if err != nil {
		t.Fatalf("loading generated config: %v", err)
	}
	if cfg.Viewer.RetryDelay != 200*time.Millisecond || cfg.AI.Timeout != 2*time.Minute {
		t.Errorf("round trip lost durations: %+v %+v", cfg.Viewer, cfg.AI)
	}
}

func TestGenerate_RefusesOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ConfigFileName, "log:\n  level: error\n")
	cm := NewConfigurationManager(dir)

	if _, err := cm.Generate(false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected refusal, got %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if !strings.Contains(string(data), "level: error") {
		t.Error("existing config must be untouched")
	}

	if _, err := cm.Generate(true); err != nil {
		t.Fatalf("force should overwrite: %v", err)
	}
	cfg, err := cm.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected regenerated defaults, got %q", cfg.Log.Level)
	}
}

func TestRender(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())
	data, err := cm.Render(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"id_prefix: CC", "default_priority: medium", "command: claude", "timeout: 2m0s"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("rendered config missing %q:\n%s", want, data)
		}
	}
}
