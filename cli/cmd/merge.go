package cmd

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/canlog/csvio"
	"github.com/justapithecus/canlog/merge"
	"github.com/justapithecus/canlog/runtime"
)

// MergeCommand returns the merge command. It merges CSV tables already on
// disk, such as per-file outputs of earlier convert runs.
func MergeCommand() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Merge decoded CSV tables into one time-ordered table",
		ArgsUsage: "<csv>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output-dir", Usage: "Directory for the merged CSV", Value: "."},
			&cli.StringFlag{Name: "name", Usage: "Base name of the merged CSV", Value: runtime.MergedBase},
			&cli.StringFlag{Name: "time-column", Usage: "Name of the time column (default: \"Time\" or \"Time (s)\", else the first column)"},
			&cli.IntFlag{Name: "row-limit", Usage: "Max data rows per CSV chunk (0 = unlimited)", Value: merge.DefaultRowLimit},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress the result summary"},
		},
		Action: mergeAction,
	}
}

func mergeAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one CSV file required", 2)
	}
	if c.Int("row-limit") < 0 {
		return cli.Exit("row-limit must be >= 0", 2)
	}

	var opts []merge.Option
	if name := c.String("time-column"); name != "" {
		opts = append(opts, merge.WithTimeColumn(name))
	}
	written, err := csvio.MergeFiles(c.String("output-dir"), c.String("name"), c.Args().Slice(), c.Int("row-limit"), opts...)
	if err != nil {
		return err
	}
	if !c.Bool("quiet") {
		printWritten(c.App.Writer, written)
	}
	return nil
}

func printWritten(w io.Writer, written []csvio.Written) {
	for _, out := range written {
		_, _ = fmt.Fprintf(w, "%s (%d rows, %d bytes)\n", out.Path, out.Rows, out.Bytes)
	}
}
