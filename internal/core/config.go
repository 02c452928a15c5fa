// Package core contains the business logic for Critical Claude, including
// task management, templates, usage analytics, AI-assisted research and
// configuration.
package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// ConfigFileName is the config file inside the data directory.
const ConfigFileName = "config.yaml"

// validPrefixPattern matches uppercase alphanumeric prefixes between 1 and 10 characters.
var validPrefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// ConfigValidationError lists every problem found in a configuration.
// It matches ErrValidation with errors.Is.
type ConfigValidationError struct {
	Problems []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(e.Problems, "\n  - ")
}

func (e *ConfigValidationError) Unwrap() error { return ErrValidation }

// ConfigurationManager defines the interface for loading, validating and
// generating the configuration stored in .critical-claude/config.yaml.
type ConfigurationManager interface {
	Load() (*models.Config, error)
	Validate(cfg *models.Config) error
	Generate(force bool) (string, error)
	Render(cfg *models.Config) ([]byte, error)
	Path() string
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files and CC_* environment overrides.
type viperConfigManager struct {
	dataDir string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// config.yaml from dataDir.
func NewConfigurationManager(dataDir string) ConfigurationManager {
	return &viperConfigManager{dataDir: dataDir}
}

// DefaultConfig returns a Config populated with the built-in defaults.
func DefaultConfig() *models.Config {
	return &models.Config{
		Tasks: models.TasksConfig{
			IDPrefix:        "CC",
			IDPadWidth:      5,
			DefaultPriority: models.PriorityMedium,
		},
		Analytics: models.AnalyticsConfig{
			Enabled:    true,
			MaxMetrics: DefaultMaxMetrics,
		},
		Viewer: models.ViewerConfig{
			SaveRetries: DefaultSaveRetries,
			RetryDelay:  DefaultRetryPolicy.Delay,
		},
		AI: models.AIConfig{
			Enabled: true,
			Command: "claude",
			Args:    []string{"-p"},
			Timeout: 2 * time.Minute,
		},
		Log: models.LogConfig{Level: "info"},
	}
}

func (cm *viperConfigManager) Path() string {
	return filepath.Join(cm.dataDir, ConfigFileName)
}

// Load reads config.yaml, applies CC_* environment overrides and fills
// missing keys with defaults. A missing file is not an error.
func (cm *viperConfigManager) Load() (*models.Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.dataDir)
	v.SetEnvPrefix("CC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults make every key known to Viper so env overrides reach Unmarshal.
	v.SetDefault("tasks.id_prefix", def.Tasks.IDPrefix)
	v.SetDefault("tasks.id_pad_width", def.Tasks.IDPadWidth)
	v.SetDefault("tasks.default_priority", string(def.Tasks.DefaultPriority))
	v.SetDefault("analytics.enabled", def.Analytics.Enabled)
	v.SetDefault("analytics.max_metrics", def.Analytics.MaxMetrics)
	v.SetDefault("viewer.save_retries", def.Viewer.SaveRetries)
	v.SetDefault("viewer.retry_delay", def.Viewer.RetryDelay)
	v.SetDefault("ai.enabled", def.AI.Enabled)
	v.SetDefault("ai.command", def.AI.Command)
	v.SetDefault("ai.args", def.AI.Args)
	v.SetDefault("ai.timeout", def.AI.Timeout)
	v.SetDefault("ai.aliases", []map[string]any{})
	v.SetDefault("log.level", def.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", cm.Path(), err)
		}
	}

	cfg := &models.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", cm.Path(), err)
	}
	cfg.Tasks.DefaultPriority = models.Priority(strings.ToLower(string(cfg.Tasks.DefaultPriority)))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (cm *viperConfigManager) Validate(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", ErrValidation)
	}

	var errs []string

	if !validPrefixPattern.MatchString(cfg.Tasks.IDPrefix) {
		errs = append(errs, fmt.Sprintf("tasks.id_prefix %q is invalid, must match [A-Z0-9]{1,10}", cfg.Tasks.IDPrefix))
	}
	if cfg.Tasks.IDPadWidth < 0 || cfg.Tasks.IDPadWidth > 10 {
		errs = append(errs, fmt.Sprintf("tasks.id_pad_width %d is invalid, must be between 0 and 10", cfg.Tasks.IDPadWidth))
	}
	if !cfg.Tasks.DefaultPriority.Valid() {
		errs = append(errs, fmt.Sprintf("tasks.default_priority %q is invalid, must be one of: critical, high, medium, low", cfg.Tasks.DefaultPriority))
	}
	if cfg.Analytics.MaxMetrics < 1 {
		errs = append(errs, fmt.Sprintf("analytics.max_metrics must be positive, got %d", cfg.Analytics.MaxMetrics))
	}
	if cfg.Viewer.SaveRetries < 1 || cfg.Viewer.SaveRetries > 10 {
		errs = append(errs, fmt.Sprintf("viewer.save_retries %d is invalid, must be between 1 and 10", cfg.Viewer.SaveRetries))
	}
	if cfg.Viewer.RetryDelay < 0 {
		errs = append(errs, fmt.Sprintf("viewer.retry_delay must not be negative, got %s", cfg.Viewer.RetryDelay))
	}
	if cfg.AI.Enabled {
		if strings.TrimSpace(cfg.AI.Command) == "" {
			errs = append(errs, "ai.command must not be empty when ai.enabled is true")
		}
		if cfg.AI.Timeout <= 0 {
			errs = append(errs, fmt.Sprintf("ai.timeout must be positive, got %s", cfg.AI.Timeout))
		}
	}
	seen := make(map[string]bool)
	for i, a := range cfg.AI.Aliases {
		if a.Name == "" || a.Command == "" {
			errs = append(errs, fmt.Sprintf("ai.aliases[%d] needs both name and command", i))
			continue
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Sprintf("ai.aliases[%d] duplicates alias %q", i, a.Name))
		}
		seen[a.Name] = true
	}
	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.Log.Level))
	}

	if len(errs) > 0 {
		return &ConfigValidationError{Problems: errs}
	}
	return nil
}

// Render encodes cfg as YAML.
func (cm *viperConfigManager) Render(cfg *models.Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

const configHeader = "# Critical Claude configuration.\n# Every key can be overridden with a CC_ environment variable, e.g. CC_LOG_LEVEL=debug.\n\n"

// Generate writes the default configuration to config.yaml. An existing file
// is only replaced when force is set.
func (cm *viperConfigManager) Generate(force bool) (string, error) {
	path := cm.Path()
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%w: %s already exists (use --force to overwrite)", ErrValidation, path)
	}

	data, err := cm.Render(DefaultConfig())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cm.dataDir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append([]byte(configHeader), data...), 0o600); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalizing config: %w", err)
	}
	return path, nil
}
