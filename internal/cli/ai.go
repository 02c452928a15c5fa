package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/critical-claude/internal/core"
	"github.com/valter-silva-au/critical-claude/internal/integration"
)

// agentAlias is the persistent --agent flag shared by ai and research.
var agentAlias string

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Draft tasks with your coding agent",
	Long: `Commands that prompt the configured coding agent (ai.command, default
"claude -p"). Use --agent to pick one of the aliases defined under
ai.aliases in config.yaml.`,
}

var aiGenerateFlags struct {
	dryRun bool
	max    int
	labels []string
}

var aiGenerateCmd = &cobra.Command{
	Use:   "generate <description>",
	Short: "Break a description of work into tasks",
	Long: `Ask the coding agent to break the description into concrete tasks and
store them. Elements the agent gets wrong (missing title, unknown
priority) are reported and skipped. Use --dry-run to preview.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := researchService()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res, err := svc.GenerateTasks(ctx, strings.Join(args, " "), core.GenerateOptions{
			DryRun:   aiGenerateFlags.dryRun,
			MaxTasks: aiGenerateFlags.max,
			Labels:   aiGenerateFlags.labels,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeResult(cmd, res)
		}

		out := cmd.OutOrStdout()
		if aiGenerateFlags.dryRun {
			_, _ = fmt.Fprintf(out, "Would create %d task(s):\n", len(res.Tasks))
		} else {
			printSuccess(cmd, "Created %d task(s)", len(res.Tasks))
		}
		for _, t := range res.Tasks {
			id := t.ID
			if id == "" {
				id = "-"
			}
			_, _ = fmt.Fprintf(out, "  %s %-10s %s\n", t.Priority.Icon(), id, t.Title)
		}
		for _, e := range res.Errors {
			_, _ = fmt.Fprintln(out, mutedStyle.Render("  skipped: "+e))
		}
		return nil
	},
}

var aiAliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "List configured agent aliases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil {
			return notInitialized("configuration")
		}
		aliases := Config.AI.Aliases
		if jsonOutput {
			return writeResult(cmd, aliases)
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "%s -> %s [%s]\n", headingStyle.Render("(default)"), Config.AI.Command, strings.Join(Config.AI.Args, " "))
		for _, line := range integration.ListAliases(aliases) {
			_, _ = fmt.Fprintln(out, line)
		}
		return nil
	},
}

// detectVersion probes an agent CLI; tests replace it.
var detectVersion = integration.DetectAgentVersion

type agentStatus struct {
	Name      string   `json:"name"`
	Command   string   `json:"command"`
	Args      []string `json:"args,omitempty"`
	Available bool     `json:"available"`
	Version   string   `json:"version,omitempty"`
	Error     string   `json:"error,omitempty"`
}

var aiStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the configured agents are installed",
	Long: `Resolve the default agent and every alias, check that each command is on
PATH and report the version it prints for --version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Config == nil {
			return notInitialized("configuration")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		probe := func(name string, cfg integration.AgentConfig) agentStatus {
			runner := integration.NewAgentRunner(cfg)
			command, cmdArgs := runner.Command()
			st := agentStatus{Name: name, Command: command, Args: cmdArgs}
			v, err := detectVersion(ctx, runner)
			if err != nil {
				st.Available = runner.Available() == nil
				st.Error = err.Error()
				return st
			}
			st.Available = true
			st.Version = v.String()
			return st
		}

		statuses := []agentStatus{probe("(default)", integration.AgentConfig{
			Command: Config.AI.Command,
			Args:    Config.AI.Args,
			Aliases: Config.AI.Aliases,
		})}
		for _, a := range Config.AI.Aliases {
			statuses = append(statuses, probe(a.Name, integration.AgentConfig{Command: a.Name, Aliases: Config.AI.Aliases}))
		}

		if jsonOutput {
			return writeResult(cmd, statuses)
		}
		out := cmd.OutOrStdout()
		if !Config.AI.Enabled {
			_, _ = fmt.Fprintln(out, mutedStyle.Render("AI features are disabled (ai.enabled: false)"))
		}
		for _, st := range statuses {
			line := fmt.Sprintf("%s -> %s", st.Name, strings.TrimSpace(st.Command+" "+strings.Join(st.Args, " ")))
			if st.Error != "" {
				_, _ = fmt.Fprintln(out, failure(line+": "+st.Error))
				continue
			}
			_, _ = fmt.Fprintln(out, success(line+" ("+st.Version+")"))
		}
		return nil
	},
}

// researchService picks the service for the --agent alias.
func researchService() (core.ResearchService, error) {
	if agentAlias != "" {
		if ResearchFor == nil {
			return nil, notInitialized("agent aliases")
		}
		return ResearchFor(agentAlias)
	}
	if ResearchSvc == nil {
		return nil, notInitialized("research service")
	}
	return ResearchSvc, nil
}

func init() {
	aiCmd.PersistentFlags().StringVar(&agentAlias, "agent", "", "Agent alias from ai.aliases")
	aiGenerateCmd.Flags().BoolVar(&aiGenerateFlags.dryRun, "dry-run", false, "Show the tasks without storing them")
	aiGenerateCmd.Flags().IntVar(&aiGenerateFlags.max, "max", 10, "Maximum number of tasks")
	aiGenerateCmd.Flags().StringSliceVarP(&aiGenerateFlags.labels, "labels", "l", nil, "Labels added to every generated task")

	aiCmd.AddCommand(aiGenerateCmd, aiAliasesCmd, aiStatusCmd)
	rootCmd.AddCommand(aiCmd)
}
