package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/critical-claude/internal/core"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tpl"},
	Short:   "Manage and apply task templates",
	Long: `Templates describe a set of tasks with {{placeholders}}. Applying a
template creates one task per entry, substituting --var values over the
template defaults. Built-in templates: bug-fix, feature-development,
code-review, sprint-planning.`,
}

var templateListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List built-in and user templates",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TemplateSvc == nil {
			return notInitialized("template service")
		}
		templates, err := TemplateSvc.ListTemplates()
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeResult(cmd, templates)
		}

		out := cmd.OutOrStdout()
		for _, t := range templates {
			kind := "user"
			if t.Builtin {
				kind = "built-in"
			}
			_, _ = fmt.Fprintf(out, "%-22s %s %s\n", headingStyle.Render(t.ID), t.Name,
				mutedStyle.Render(fmt.Sprintf("(%s, %d tasks)", kind, len(t.Tasks))))
			if t.Description != "" {
				_, _ = fmt.Fprintf(out, "  %s\n", t.Description)
			}
		}
		return nil
	},
}

var templateViewCmd = &cobra.Command{
	Use:               "view <template>",
	Aliases:           []string{"show"},
	Short:             "Show a template's tasks and variables",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTemplateIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TemplateSvc == nil {
			return notInitialized("template service")
		}
		t, err := TemplateSvc.GetTemplate(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeResult(cmd, t)
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "%s  %s\n", headingStyle.Render(t.ID), t.Name)
		if t.Description != "" {
			_, _ = fmt.Fprintf(out, "%s\n", t.Description)
		}
		if vars := core.Placeholders(*t); len(vars) > 0 {
			_, _ = fmt.Fprintln(out, "\nVariables:")
			for _, v := range vars {
				def := t.Variables[v]
				if def == "" {
					def = mutedStyle.Render("(no default)")
				}
				_, _ = fmt.Fprintf(out, "  %-20s %s\n", v, def)
			}
		}
		_, _ = fmt.Fprintln(out, "\nTasks:")
		for i, bp := range t.Tasks {
			line := fmt.Sprintf("  %d. %s", i+1, bp.Title)
			if bp.Priority != "" {
				line += " " + bp.Priority.Icon()
			}
			if len(bp.Labels) > 0 {
				line += mutedStyle.Render(" [" + strings.Join(bp.Labels, ", ") + "]")
			}
			_, _ = fmt.Fprintln(out, line)
		}
		return nil
	},
}

var templateApplyVars []string

var templateApplyCmd = &cobra.Command{
	Use:   "apply <template>",
	Short: "Create tasks from a template",
	Long: `Create one task per template entry. Values given with --var key=value
replace {{key}} placeholders; unknown placeholders are left as-is.

  cc template apply bug-fix --var bug_description="login fails" --var affected_component=auth`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTemplateIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TemplateSvc == nil {
			return notInitialized("template service")
		}
		vars, err := parseVars(templateApplyVars)
		if err != nil {
			return err
		}

		created, err := TemplateSvc.ApplyTemplate(args[0], vars)
		if err != nil {
			if len(created) > 0 && !jsonOutput {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d task(s) were created before the failure:\n", len(created))
				for _, t := range created {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "  "+taskLine(t))
				}
			}
			return fmt.Errorf("applying template %s: %w", args[0], err)
		}

		if jsonOutput {
			return writeResult(cmd, created)
		}
		printSuccess(cmd, "Created %d task(s) from %s", len(created), args[0])
		for _, t := range created {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "  "+taskLine(t))
		}
		return nil
	},
}

var templateImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Save a template from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if TemplateSvc == nil {
			return notInitialized("template service")
		}
		t, err := TemplateSvc.ImportTemplateFile(args[0])
		if err != nil {
			return fmt.Errorf("importing template: %w", err)
		}
		if jsonOutput {
			return writeResult(cmd, t)
		}
		printSuccess(cmd, "Saved template %s (%d tasks)", t.ID, len(t.Tasks))
		return nil
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:               "delete <template>",
	Aliases:           []string{"rm"},
	Short:             "Delete a user template",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTemplateIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TemplateSvc == nil {
			return notInitialized("template service")
		}
		if err := TemplateSvc.DeleteTemplate(args[0]); err != nil {
			return err
		}
		if jsonOutput {
			return writeResult(cmd, map[string]string{"deleted": args[0]})
		}
		printSuccess(cmd, "Deleted template %s", args[0])
		return nil
	},
}

// parseVars turns key=value pairs into a map. Values may contain '='.
func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: --var %q must be key=value", core.ErrValidation, p)
		}
		vars[k] = v
	}
	return vars, nil
}

func completeTemplateIDs(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if TemplateSvc == nil || len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	templates, err := TemplateSvc.ListTemplates()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = t.ID + "\t" + t.Name
	}
	sort.Strings(out)
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	templateApplyCmd.Flags().StringArrayVar(&templateApplyVars, "var", nil, "Placeholder value as key=value (repeatable)")

	templateCmd.AddCommand(templateListCmd, templateViewCmd, templateApplyCmd, templateImportCmd, templateDeleteCmd)
	rootCmd.AddCommand(templateCmd)
}
