package models

import "time"

// AgentAlias maps a short alias name to a full agent command with optional default arguments.
type AgentAlias struct {
	Name        string   `yaml:"name" mapstructure:"name"`
	Command     string   `yaml:"command" mapstructure:"command"`
	DefaultArgs []string `yaml:"default_args,omitempty" mapstructure:"default_args"`
}

// TasksConfig holds task creation settings.
type TasksConfig struct {
	IDPrefix        string   `yaml:"id_prefix" mapstructure:"id_prefix"`
	IDPadWidth      int      `yaml:"id_pad_width" mapstructure:"id_pad_width"`
	DefaultPriority Priority `yaml:"default_priority" mapstructure:"default_priority"`
}

// AnalyticsConfig controls usage metric recording.
type AnalyticsConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	MaxMetrics int  `yaml:"max_metrics" mapstructure:"max_metrics"`
}

// ViewerConfig controls the terminal viewer's save behavior.
type ViewerConfig struct {
	SaveRetries int           `yaml:"save_retries" mapstructure:"save_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
}

// AIConfig configures the external coding-agent CLI used for task generation
// and research.
type AIConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Command string        `yaml:"command" mapstructure:"command"`
	Args    []string      `yaml:"args,omitempty" mapstructure:"args"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Aliases []AgentAlias  `yaml:"aliases,omitempty" mapstructure:"aliases"`
}

// LogConfig controls logger verbosity.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Config holds the settings read from .critical-claude/config.yaml via Viper.
type Config struct {
	Tasks     TasksConfig     `yaml:"tasks" mapstructure:"tasks"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Viewer    ViewerConfig    `yaml:"viewer" mapstructure:"viewer"`
	AI        AIConfig        `yaml:"ai" mapstructure:"ai"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}
