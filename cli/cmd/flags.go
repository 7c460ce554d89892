// Package cmd provides CLI commands for the canlog binary.
package cmd

import "github.com/urfave/cli/v2"

// FormatFlag selects output format for read-only commands.
var FormatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Usage:   "Output format: json, table, yaml (default: table on a terminal, else json)",
}

// ReadOnlyFlags returns the shared flags of commands that only print.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag}
}
