package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	ccmcp "github.com/valter-silva-au/critical-claude/internal/mcp"
	"github.com/valter-silva-au/critical-claude/internal/observability"
)

// serveMCP runs the server until the client hangs up; tests replace it.
var serveMCP = func(ctx context.Context, srv *ccmcp.Server) error { return srv.Run(ctx) }

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose tasks to AI assistants over the Model Context Protocol",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdin/stdout",
	Long: `Run the cc MCP server over stdio. Point your assistant's MCP
configuration at "cc mcp serve". Stdout carries the protocol, so logs go to
.critical-claude/logs/mcp.log. See "cc mcp tools" for what is exposed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if TaskSvc == nil {
			return notInitialized("task service")
		}

		logFile, err := observability.OpenLogFile(DataDir, "mcp.log")
		if err != nil {
			return fmt.Errorf("opening mcp log: %w", err)
		}
		defer func() { _ = logFile.Close() }()
		level := "info"
		if Config != nil {
			level = Config.Log.Level
		}
		logger := observability.NewLogger(logFile, level)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		logger.Info("mcp server starting", "version", appVersion, "tools", len(ccmcp.Tools))
		err = serveMCP(ctx, ccmcp.NewServer(TaskSvc, TemplateSvc, AnalyticsSvc, appVersion, logger))
		if err != nil && ctx.Err() == nil {
			logger.Error("mcp server failed", "err", err)
			return fmt.Errorf("running MCP server: %w", err)
		}
		logger.Info("mcp server stopped")
		return nil
	},
}

var mcpToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools cc mcp serve exposes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return writeResult(cmd, ccmcp.Tools)
		}
		out := cmd.OutOrStdout()
		for _, t := range ccmcp.Tools {
			_, _ = fmt.Fprintf(out, "%-20s %s\n", t.Name, t.Description)
		}
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd, mcpToolsCmd)
	rootCmd.AddCommand(mcpCmd)
}
