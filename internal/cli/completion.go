package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// completionShell describes how to print and install completions for one shell.
type completionShell struct {
	// loadHint is the one-liner that loads completions into the current session.
	loadHint string
	generate func(w io.Writer) error
	// target returns the install path under home; nil means no automatic install.
	target func(home string) string
	// installNotes are printed after a successful install.
	installNotes func(path string) []string
}

var completionShells = map[string]completionShell{
	"bash": {
		loadHint: `eval "$(cc completion bash)"`,
		generate: func(w io.Writer) error { return rootCmd.GenBashCompletionV2(w, true) },
		target: func(home string) string {
			// bash-completion >= 2.0 picks up user-local completions without root.
			return filepath.Join(home, ".local", "share", "bash-completion", "completions", "cc")
		},
		installNotes: func(path string) []string {
			return []string{"Restart your shell or run: source " + path}
		},
	},
	"zsh": {
		loadHint: `eval "$(cc completion zsh)"`,
		generate: func(w io.Writer) error { return rootCmd.GenZshCompletion(w) },
		target: func(home string) string {
			return filepath.Join(home, ".local", "share", "zsh", "site-functions", "_cc")
		},
		installNotes: func(path string) []string {
			return []string{
				"Make sure the directory is on your fpath, e.g. in ~/.zshrc:",
				fmt.Sprintf("  fpath=(%s $fpath)", filepath.Dir(path)),
				"  autoload -Uz compinit && compinit",
			}
		},
	},
	"fish": {
		loadHint: "cc completion fish | source",
		generate: func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
		target: func(home string) string {
			return filepath.Join(home, ".config", "fish", "completions", "cc.fish")
		},
		installNotes: func(string) []string {
			return []string{"New fish sessions load it automatically."}
		},
	},
	"powershell": {
		loadHint: "cc completion powershell | Out-String | Invoke-Expression",
		generate: func(w io.Writer) error { return rootCmd.GenPowerShellCompletionWithDesc(w) },
	},
}

func supportedShells() []string {
	names := make([]string, 0, len(completionShells))
	for name := range completionShells {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var completionInstall bool

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Print or install shell completions for cc",
	Long: `Print the cc completion script for a shell, or install it with --install.

  eval "$(cc completion bash)"     load into the current bash session
  cc completion zsh --install      write _cc into ~/.local/share/zsh/site-functions
  cc completion fish --install     write cc.fish into ~/.config/fish/completions

PowerShell scripts can only be printed; add them to your profile yourself.`,
	ValidArgs: supportedShells(),
	Args:      cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		shell, ok := completionShells[args[0]]
		if !ok {
			return fmt.Errorf("unsupported shell %q (choose one of: %s)", args[0], strings.Join(supportedShells(), ", "))
		}
		if completionInstall {
			return installCompletion(cmd.OutOrStdout(), args[0], shell)
		}
		// The hint goes to stderr so eval "$(cc completion bash)" only sees the script.
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# load now: %s\n", shell.loadHint)
		return shell.generate(cmd.OutOrStdout())
	},
}

func init() {
	completionCmd.Flags().BoolVar(&completionInstall, "install", false, "Write the script into your user completion directory")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}

func installCompletion(w io.Writer, name string, shell completionShell) error {
	if shell.target == nil {
		return fmt.Errorf("--install is not supported for %s; run 'cc completion %s' and add the output to your profile", name, name)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("locating home directory: %w", err)
	}

	path := shell.target(home)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating completion directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	genErr := shell.generate(f)
	if closeErr := f.Close(); genErr == nil && closeErr != nil {
		genErr = fmt.Errorf("closing %s: %w", path, closeErr)
	}
	if genErr != nil {
		return genErr
	}

	_, _ = fmt.Fprintln(w, success(fmt.Sprintf("Installed %s completions to %s", name, path)))
	if shell.installNotes != nil {
		for _, line := range shell.installNotes(path) {
			_, _ = fmt.Fprintln(w, line)
		}
	}
	return nil
}
