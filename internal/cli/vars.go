package cli

import (
	"github.com/charmbracelet/log"

	"github.com/valter-silva-au/critical-claude/internal/core"
	"github.com/valter-silva-au/critical-claude/internal/observability"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	TaskSvc      core.TaskService
	TemplateSvc  core.TemplateService
	AnalyticsSvc core.AnalyticsService
	ResearchSvc  core.ResearchService
	ConfigMgr    core.ConfigurationManager
	Recorder     *observability.UsageRecorder
	Logger       *log.Logger
)

// Environment resolved at startup.
var (
	BasePath string
	DataDir  string
	Config   *models.Config
)

// ResearchFor returns a ResearchService driving the named agent alias. It is
// set in app.go; an empty alias selects the configured ai.command.
var ResearchFor func(alias string) (core.ResearchService, error)
