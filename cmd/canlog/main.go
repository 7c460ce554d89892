// Package main provides the canlog CLI entrypoint.
//
// Only `convert` and `merge` write files; every other command is read-only.
//
// Usage:
//
//	canlog <command> [subcommand] [options]
//
// Exit codes for `convert`:
//   - 0: success (every input produced rows)
//   - 1: partial (some inputs failed or produced no rows)
//   - 2: no output, or an invalid configuration
//   - 3: outputs written but persistence failed
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/canlog/cli/cmd"
	"github.com/justapithecus/canlog/runtime"
	"github.com/justapithecus/canlog/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "canlog",
		Usage:          "Decode CAN bus logs into time-aligned CSV tables",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ConvertCommand(),
			cmd.MergeCommand(),
			cmd.InspectCommand(),
			cmd.StatsCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler has already exited for every error it sees.
		os.Exit(runtime.ExitNoOutput)
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(reportExit(os.Stderr, err))
}

// reportExit prints err to w when it carries a message and returns the
// process exit code. Errors without an exit code mean no output was written.
func reportExit(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			_, _ = fmt.Fprintln(w, msg)
		}
		return code
	}

	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return runtime.ExitNoOutput
}
