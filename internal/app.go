// Package internal provides the App struct that wires all components of
// Critical Claude together and initializes the CLI layer.
package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/valter-silva-au/critical-claude/internal/cli"
	"github.com/valter-silva-au/critical-claude/internal/core"
	"github.com/valter-silva-au/critical-claude/internal/integration"
	"github.com/valter-silva-au/critical-claude/internal/observability"
	"github.com/valter-silva-au/critical-claude/internal/storage"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// App holds all service dependencies for Critical Claude.
type App struct {
	BasePath string
	DataDir  string
	Config   *models.Config
	Logger   *log.Logger

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Storage layer
	Storage storage.Engine

	// Core services
	IDGen     core.TaskIDGenerator
	Tasks     core.TaskService
	Templates core.TemplateService
	Analytics core.AnalyticsService
	Research  core.ResearchService

	// Integration services
	Agent integration.AgentRunner

	// Observability
	Recorder *observability.UsageRecorder
}

// NewApp creates and wires all components. basePath is the directory that
// holds (or will hold) the .critical-claude data directory.
func NewApp(basePath string) (*App, error) {
	return newApp(basePath, os.Stderr)
}

func newApp(basePath string, logOut io.Writer) (*App, error) {
	if basePath == "" {
		return nil, fmt.Errorf("resolving data directory: base path is empty")
	}
	app := &App{
		BasePath: basePath,
		DataDir:  storage.DataDir(basePath),
	}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(app.DataDir)
	cfg, cfgErr := app.ConfigMgr.Load()
	if cfgErr == nil {
		cfgErr = app.ConfigMgr.Validate(cfg)
	}
	if cfgErr != nil {
		// Fall back to defaults so "cc config --validate" can still report the problem.
		cfg = core.DefaultConfig()
	}
	app.Config = cfg

	app.Logger = observability.NewLogger(logOut, cfg.Log.Level)
	if cfgErr != nil {
		app.Logger.Warn("using default configuration", "path", app.ConfigMgr.Path(), "err", cfgErr)
	}

	// --- Storage layer ---
	app.Storage = storage.NewFileStorage(app.DataDir, app.Logger)

	// --- Core services ---
	app.IDGen = core.NewTaskIDGenerator(app.DataDir, cfg.Tasks.IDPrefix, cfg.Tasks.IDPadWidth)
	app.Tasks = core.NewTaskService(app.Storage, app.IDGen, core.TaskServiceOptions{
		DefaultPriority: cfg.Tasks.DefaultPriority,
		Logger:          app.Logger,
	})
	app.Templates = core.NewTemplateService(app.Storage, app.Tasks, app.Logger)
	app.Analytics = core.NewAnalyticsService(app.Storage, cfg.Analytics.MaxMetrics, app.Logger)

	// --- Integration services ---
	app.Agent = integration.NewAgentRunner(agentConfig(cfg.AI, "", basePath))
	app.Research = core.NewResearchService(app.Agent, app.Tasks, app.DataDir, cfg.AI.Enabled, app.Logger)

	// --- Observability ---
	app.Recorder = observability.NewUsageRecorder(app.Analytics, cfg.Analytics.Enabled, app.Logger)

	// --- Wire CLI package-level variables ---
	cli.BasePath = app.BasePath
	cli.DataDir = app.DataDir
	cli.Config = app.Config
	cli.Logger = app.Logger
	cli.ConfigMgr = app.ConfigMgr
	cli.TaskSvc = app.Tasks
	cli.TemplateSvc = app.Templates
	cli.AnalyticsSvc = app.Analytics
	cli.ResearchSvc = app.Research
	cli.Recorder = app.Recorder
	cli.ResearchFor = app.ResearchFor

	return app, nil
}

// ResearchFor returns a ResearchService that drives the named agent alias.
// An empty alias returns the default service.
func (a *App) ResearchFor(alias string) (core.ResearchService, error) {
	if alias == "" {
		return a.Research, nil
	}
	if _, _, ok := integration.ResolveAlias(alias, a.Config.AI.Aliases); !ok {
		return nil, fmt.Errorf("%w: unknown agent alias %q (see cc ai aliases)", core.ErrValidation, alias)
	}
	runner := integration.NewAgentRunner(agentConfig(a.Config.AI, alias, a.BasePath))
	return core.NewResearchService(runner, a.Tasks, a.DataDir, a.Config.AI.Enabled, a.Logger), nil
}

// agentConfig converts the ai section of the configuration. A non-empty alias
// replaces ai.command and ai.args with the alias definition.
func agentConfig(ai models.AIConfig, alias, workDir string) integration.AgentConfig {
	cfg := integration.AgentConfig{
		Command: ai.Command,
		Args:    ai.Args,
		Timeout: ai.Timeout,
		Aliases: ai.Aliases,
		WorkDir: workDir,
	}
	if alias != "" {
		cfg.Command = alias
		cfg.Args = nil
	}
	return cfg
}

// ResolveBasePath determines the directory holding .critical-claude. It
// checks the CC_HOME env var, then walks up from the current directory, and
// falls back to the user's home directory.
func ResolveBasePath() string {
	if home := os.Getenv("CC_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err == nil {
		for {
			if info, err := os.Stat(filepath.Join(dir, storage.DataDirName)); err == nil && info.IsDir() {
				return dir
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	if dir, err := os.Getwd(); err == nil {
		return dir
	}
	return "."
}
