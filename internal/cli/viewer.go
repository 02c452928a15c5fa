package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/critical-claude/internal/core"
	"github.com/valter-silva-au/critical-claude/internal/observability"
	"github.com/valter-silva-au/critical-claude/internal/viewer"
)

// runViewer starts the interactive viewer; tests replace it.
var runViewer = viewer.Run

var viewerCmd = &cobra.Command{
	Use:     "viewer",
	Aliases: []string{"ui", "tui"},
	Short:   "Browse and edit tasks in a full-screen terminal viewer",
	Long: `Open the interactive task viewer.

  ↑/↓ or k/j   move          tab        toggle details pane
  enter        edit task      space/s    advance status
  f            cycle filter   r          reload from disk
  q            quit

While editing, ↑/↓ and tab/shift+tab move between title, description,
priority and status; enter saves and esc discards. Logs go to
.critical-claude/logs/viewer.log.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}

		level := "info"
		policy := core.DefaultRetryPolicy
		if Config != nil {
			level = Config.Log.Level
			policy = core.SaveRetryPolicy(Config.Viewer.SaveRetries, Config.Viewer.RetryDelay)
		}

		logFile, err := observability.OpenLogFile(DataDir, "viewer.log")
		if err != nil {
			return fmt.Errorf("opening viewer log: %w", err)
		}
		defer func() { _ = logFile.Close() }()
		logger := observability.NewLogger(logFile, level)
		logger.Info("viewer started", "attempts", policy.Attempts, "delay", policy.Delay)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := runViewer(ctx, TaskSvc, viewer.Options{Retry: policy, Logger: logger}); err != nil {
			return err
		}
		logger.Info("viewer closed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(viewerCmd)
}
