package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/critical-claude/internal/core"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Inspect local command usage statistics",
	Long: `Every cc command records its name, outcome and duration locally in
.critical-claude/analytics/ (disable with analytics.enabled: false).
Nothing is sent anywhere.`,
}

var analyticsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recorded command usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AnalyticsSvc == nil {
			return notInitialized("analytics service")
		}
		stats, err := AnalyticsSvc.Stats()
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeResult(cmd, stats)
		}

		out := cmd.OutOrStdout()
		if stats.TotalCommands == 0 {
			_, _ = fmt.Fprintln(out, "No usage recorded yet.")
			return nil
		}
		_, _ = fmt.Fprintln(out, headingStyle.Render("Usage"))
		_, _ = fmt.Fprintf(out, "  Commands:     %d (%d ok, %d failed)\n", stats.TotalCommands, stats.Successful, stats.Failed)
		_, _ = fmt.Fprintf(out, "  Success rate: %.1f%%\n", stats.SuccessRate)
		_, _ = fmt.Fprintf(out, "  Avg duration: %.0fms\n", stats.AvgExecutionMs)
		if stats.MostUsedCommand != "" {
			_, _ = fmt.Fprintf(out, "  Most used:    %s\n", stats.MostUsedCommand)
		}
		if stats.FirstRecorded != nil && stats.LastRecorded != nil {
			_, _ = fmt.Fprintf(out, "  Period:       %s → %s\n",
				stats.FirstRecorded.Local().Format("2006-01-02 15:04"), stats.LastRecorded.Local().Format("2006-01-02 15:04"))
		}

		names := make([]string, 0, len(stats.CommandCounts))
		for name := range stats.CommandCounts {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			ci, cj := stats.CommandCounts[names[i]], stats.CommandCounts[names[j]]
			if ci != cj {
				return ci > cj
			}
			return names[i] < names[j]
		})
		_, _ = fmt.Fprintln(out, "\n"+headingStyle.Render("By command"))
		for _, name := range names {
			_, _ = fmt.Fprintf(out, "  %-14s %d\n", name, stats.CommandCounts[name])
		}

		if len(stats.RecentErrors) > 0 {
			_, _ = fmt.Fprintln(out, "\n"+headingStyle.Render("Recent errors"))
			for _, m := range stats.RecentErrors {
				_, _ = fmt.Fprintf(out, "  %s %s %s: %s\n", m.Timestamp.Local().Format("01-02 15:04"), m.Command, m.Action, m.Error)
			}
		}
		return nil
	},
}

var analyticsExportFlags struct {
	format string
	output string
}

var analyticsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded metrics as JSON or CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AnalyticsSvc == nil {
			return notInitialized("analytics service")
		}
		format, err := core.ParseExportFormat(analyticsExportFlags.format)
		if err != nil {
			return err
		}
		data, err := AnalyticsSvc.Export(format)
		if err != nil {
			return err
		}
		if analyticsExportFlags.output == "" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := writeOutputFile(analyticsExportFlags.output, data); err != nil {
			return err
		}
		printSuccess(cmd, "Exported metrics to %s", analyticsExportFlags.output)
		return nil
	},
}

var analyticsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AnalyticsSvc == nil {
			return notInitialized("analytics service")
		}
		n, err := AnalyticsSvc.Clear()
		if err != nil {
			return fmt.Errorf("clearing analytics: %w", err)
		}
		if jsonOutput {
			return writeResult(cmd, map[string]int{"removed": n})
		}
		printSuccess(cmd, "Removed %d metric(s)", n)
		return nil
	},
}

func init() {
	analyticsExportCmd.Flags().StringVarP(&analyticsExportFlags.format, "format", "f", "json", "Export format: json or csv")
	analyticsExportCmd.Flags().StringVarP(&analyticsExportFlags.output, "output", "o", "", "Write to this file instead of stdout")

	analyticsCmd.AddCommand(analyticsStatsCmd, analyticsExportCmd, analyticsClearCmd)
	rootCmd.AddCommand(analyticsCmd)
}
