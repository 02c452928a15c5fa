// Command cc is the Critical Claude task tracker.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	app "github.com/valter-silva-au/critical-claude/internal"
	"github.com/valter-silva-au/critical-claude/internal/cli"
)

// Release builds set these through -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(app.ResolveBasePath(), os.Stderr))
}

// run wires the app over basePath and executes the command line, returning
// the process exit code.
func run(basePath string, stderr io.Writer) int {
	cli.SetVersionInfo(buildVersion(version, debug.ReadBuildInfo), commit, date)

	if _, err := app.NewApp(basePath); err != nil {
		_, _ = fmt.Fprintf(stderr, "❌ initializing cc: %v\n", err)
		return 1
	}
	// Failures are already printed by Execute.
	if cli.Execute() != nil {
		return 1
	}
	return 0
}

// buildVersion falls back to the module version recorded by "go install"
// when no release version was stamped in.
func buildVersion(stamped string, info func() (*debug.BuildInfo, bool)) string {
	if stamped != "dev" {
		return stamped
	}
	if bi, ok := info(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return stamped
}
