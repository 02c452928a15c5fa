package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/critical-claude/pkg/models"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func success(msg string) string { return successStyle.Render("✅ " + msg) }

func failure(msg string) string { return failureStyle.Render("❌ " + msg) }

// printSuccess writes a ✅ line, or nothing in --json mode.
func printSuccess(cmd *cobra.Command, format string, args ...any) {
	if jsonOutput {
		return
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), success(fmt.Sprintf(format, args...)))
}

// writeResult prints data wrapped in a successful models.Result.
func writeResult[T any](cmd *cobra.Command, data T) error {
	return writeJSON(cmd, models.ResultOf(data, nil))
}

func writeJSON(cmd *cobra.Command, v any) error {
	return writeJSONTo(cmd.OutOrStdout(), v)
}

func writeJSONTo(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func failedResult(err error) models.Result[any] {
	return models.ResultOf[any](nil, err)
}

func notInitialized(name string) error {
	return fmt.Errorf("%s not initialized", name)
}
