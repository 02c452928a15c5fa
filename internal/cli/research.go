package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/critical-claude/internal/core"
)

var researchCreateTasks bool

var researchCmd = &cobra.Command{
	Use:   "research <question>",
	Short: "Research a question with your coding agent",
	Long: `Ask the coding agent to research a question. The answer is saved as a
Markdown report under .critical-claude/research/; with --create-tasks the
follow-up tasks it suggests are stored too (labelled "research").`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := researchService()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		report, err := svc.Research(ctx, strings.Join(args, " "), core.ResearchOptions{CreateTasks: researchCreateTasks})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeResult(cmd, report)
		}

		out := cmd.OutOrStdout()
		printSuccess(cmd, "Report saved to %s", report.Path)
		_, _ = fmt.Fprintf(out, "\n%s\n", report.Summary)
		if len(report.Recommendations) > 0 {
			_, _ = fmt.Fprintln(out, "\n"+headingStyle.Render("Recommendations"))
			for _, r := range report.Recommendations {
				_, _ = fmt.Fprintf(out, "  - %s\n", r)
			}
		}
		if len(report.CreatedTasks) > 0 {
			_, _ = fmt.Fprintln(out, "\n"+headingStyle.Render("Created tasks"))
			for _, t := range report.CreatedTasks {
				_, _ = fmt.Fprintln(out, "  "+taskLine(t))
			}
		} else if len(report.SuggestedTasks) > 0 {
			_, _ = fmt.Fprintf(out, "\n%d suggested task(s); rerun with --create-tasks to store them.\n", len(report.SuggestedTasks))
		}
		return nil
	},
}

func init() {
	researchCmd.Flags().BoolVar(&researchCreateTasks, "create-tasks", false, "Store the suggested follow-up tasks")
	researchCmd.Flags().StringVar(&agentAlias, "agent", "", "Agent alias from ai.aliases")
	rootCmd.AddCommand(researchCmd)
}
