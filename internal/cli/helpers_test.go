package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valter-silva-au/critical-claude/internal/core"
	"github.com/valter-silva-au/critical-claude/internal/observability"
	"github.com/valter-silva-au/critical-claude/internal/storage"
	"github.com/valter-silva-au/critical-claude/pkg/models"
)

// setupCLI wires real services over a temporary data directory and restores
// the package-level variables when the test ends.
func setupCLI(t *testing.T) string {
	t.Helper()

	origTask, origTmpl, origAnalytics, origResearch := TaskSvc, TemplateSvc, AnalyticsSvc, ResearchSvc
	origCfgMgr, origCfg, origRecorder, origLogger := ConfigMgr, Config, Recorder, Logger
	origBase, origData, origResearchFor := BasePath, DataDir, ResearchFor
	t.Cleanup(func() {
		TaskSvc, TemplateSvc, AnalyticsSvc, ResearchSvc = origTask, origTmpl, origAnalytics, origResearch
		ConfigMgr, Config, Recorder, Logger = origCfgMgr, origCfg, origRecorder, origLogger
		BasePath, DataDir, ResearchFor = origBase, origData, origResearchFor
		resetFlags(rootCmd)
	})

	base := t.TempDir()
	root := filepath.Join(base, storage.DataDirName)
	engine := storage.NewFileStorage(root, nil)

	BasePath = base
	DataDir = root
	Config = core.DefaultConfig()
	ConfigMgr = core.NewConfigurationManager(root)
	TaskSvc = core.NewTaskService(engine, core.NewTaskIDGenerator(root, "CC", 5), core.TaskServiceOptions{})
	TemplateSvc = core.NewTemplateService(engine, TaskSvc, nil)
	AnalyticsSvc = core.NewAnalyticsService(engine, 100, nil)
	ResearchSvc = nil
	ResearchFor = nil
	Recorder = observability.NewUsageRecorder(AnalyticsSvc, true, nil)
	Logger = nil
	return root
}

// runCLI executes the root command with args and captures its output.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag to its default so values from one run do
// not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func mustCreate(t *testing.T, title string, status models.Status, prio models.Priority, labels ...string) models.Task {
	t.Helper()
	task, err := TaskSvc.CreateTask(core.CreateTaskInput{Title: title, Status: status, Priority: prio, Labels: labels})
	if err != nil {
		t.Fatalf("creating %q: %v", title, err)
	}
	return *task
}
