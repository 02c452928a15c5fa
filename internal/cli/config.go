package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configFlags struct {
	generate bool
	validate bool
	show     bool
	force    bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate, validate or show the configuration",
	Long: `Manage .critical-claude/config.yaml.

  cc config --generate [--force]   write the default configuration
  cc config --validate             report every problem in the current file
  cc config --show                 print the effective configuration

Every key can be overridden with a CC_ environment variable, for example
CC_LOG_LEVEL=debug or CC_TASKS_ID_PREFIX=OPS.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ConfigMgr == nil {
			return notInitialized("configuration manager")
		}
		out := cmd.OutOrStdout()

		switch {
		case configFlags.generate:
			path, err := ConfigMgr.Generate(configFlags.force)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeResult(cmd, map[string]string{"path": path})
			}
			printSuccess(cmd, "Wrote default configuration to %s", path)
			return nil

		case configFlags.validate:
			cfg, err := ConfigMgr.Load()
			if err != nil {
				return err
			}
			if err := ConfigMgr.Validate(cfg); err != nil {
				return err
			}
			if jsonOutput {
				return writeResult(cmd, map[string]string{"path": ConfigMgr.Path()})
			}
			printSuccess(cmd, "Configuration is valid (%s)", ConfigMgr.Path())
			return nil

		case configFlags.show:
			cfg, err := ConfigMgr.Load()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeResult(cmd, cfg)
			}
			data, err := ConfigMgr.Render(cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "# %s\n", ConfigMgr.Path())
			_, err = out.Write(data)
			return err
		}

		_, _ = fmt.Fprintf(out, "Config file: %s\n\n", ConfigMgr.Path())
		return cmd.Help()
	},
}

func init() {
	configCmd.Flags().BoolVar(&configFlags.generate, "generate", false, "Write the default configuration")
	configCmd.Flags().BoolVar(&configFlags.validate, "validate", false, "Validate the current configuration")
	configCmd.Flags().BoolVar(&configFlags.show, "show", false, "Print the effective configuration")
	configCmd.Flags().BoolVar(&configFlags.force, "force", false, "Overwrite an existing file with --generate")
	configCmd.MarkFlagsMutuallyExclusive("generate", "validate", "show")

	rootCmd.AddCommand(configCmd)
}
