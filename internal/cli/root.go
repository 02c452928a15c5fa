package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// jsonOutput is the persistent --json flag.
var jsonOutput bool

// activeCmd is the command being run, kept so a panic can still be
// attributed in analytics.
var activeCmd *cobra.Command

var rootCmd = &cobra.Command{
	Use:   "cc",
	Short: "Critical Claude - task tracking for AI-assisted development",
	Long: `Critical Claude (cc) is a local-first task tracker for developers working
with AI coding assistants.

Tasks, templates and usage analytics are stored as JSON files under
.critical-claude/ in the nearest project directory (or $CC_HOME). Use the
interactive viewer for keyboard-driven triage, templates to stamp out
common workflows, and the ai/research commands to draft tasks with your
coding agent.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		activeCmd = cmd
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return writeJSON(cmd, map[string]string{"version": appVersion, "commit": appCommit, "date": appDate})
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "cc %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Failures, including panics raised by a
// command, are printed to stderr with a ❌ marker and returned. Every run is
// recorded as a usage metric when analytics are enabled.
func Execute() (err error) {
	start := time.Now()
	var executed *cobra.Command
	activeCmd = nil

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
			executed = activeCmd
			if Logger != nil {
				Logger.Error("command panicked", "panic", r)
			}
		}
		if err != nil {
			reportError(err)
		}
		command, action := usageKey(executed)
		if command != "" {
			Recorder.RecordCommand(command, action, start, err)
		}
	}()

	executed, err = rootCmd.ExecuteC()
	return err
}

func reportError(err error) {
	if jsonOutput {
		_ = writeJSONTo(rootCmd.OutOrStdout(), failedResult(err))
		return
	}
	_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), failure(err.Error()))
}

// usageKey maps an executed command to the (command, action) pair recorded
// in analytics, e.g. "cc task create" becomes ("task", "create").
func usageKey(cmd *cobra.Command) (string, string) {
	if cmd == nil || cmd == rootCmd {
		return "", ""
	}
	parts := strings.Fields(cmd.CommandPath())
	if len(parts) < 2 {
		return "", ""
	}
	switch parts[1] {
	case "completion", "__complete", "help":
		return "", ""
	}
	return parts[1], strings.Join(parts[2:], " ")
}
