package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/canlog/catalog"
	"github.com/justapithecus/canlog/cli/config"
	"github.com/justapithecus/canlog/cli/render"
	"github.com/justapithecus/canlog/session"
	"github.com/justapithecus/canlog/types"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect never decodes rows; it only reads catalogs and log headers.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a catalog or log file headers",
		Subcommands: []*cli.Command{
			inspectCatalogCommand(),
			inspectFilesCommand(),
		},
	}
}

// MessageView is one catalog message as printed by inspect catalog.
type MessageView struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Length  int      `json:"length" yaml:"length"`
	Sender  string   `json:"sender,omitempty" yaml:"sender,omitempty"`
	Signals []string `json:"signals" yaml:"signals"`
}

func inspectCatalogCommand() *cli.Command {
	return &cli.Command{
		Name:      "catalog",
		Usage:     "List the messages and signals of a DBC or spreadsheet catalog",
		ArgsUsage: "<path>",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "id-mask", Usage: "Mask applied to message ids (e.g. 0x1FFFFFFF)"},
		),
		Action: inspectCatalogAction,
	}
}

func inspectCatalogAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("catalog path required", 2)
	}

	var opts []catalog.Option
	if s := c.String("id-mask"); s != "" {
		mask, err := config.ParseIDMask(s)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
		opts = append(opts, catalog.WithIDMask(mask))
	}

	db, err := catalog.Load(c.Args().First(), opts...)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(messageViews(db.Messages()))
}

func messageViews(msgs []catalog.MessageInfo) []MessageView {
	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[i] = MessageView{
			ID:      fmt.Sprintf("0x%X", m.ID),
			Name:    m.Name,
			Length:  m.Length,
			Sender:  m.Sender,
			Signals: m.Signals,
		}
	}
	return out
}

// FileHeaderView is one scanned log file as printed by inspect files.
type FileHeaderView struct {
	Path      string    `json:"path" yaml:"path"`
	Format    string    `json:"format" yaml:"format"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	Start     time.Time `json:"start,omitzero" yaml:"start,omitempty"`
	StartText string    `json:"start_text,omitempty" yaml:"start_text,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

func inspectFilesCommand() *cli.Command {
	return &cli.Command{
		Name:      "files",
		Usage:     "Show the session start and version of each log file, in session order",
		ArgsUsage: "<path>...",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "log-format", Usage: "Log format: busmaster, trc, measure or auto", Value: "auto"},
		),
		Action: inspectFilesAction,
	}
}

func inspectFilesAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("at least one log file required", 2)
	}
	format, err := types.ParseFormat(c.String("log-format"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	infos, err := session.New(nil, session.WithFormat(format)).Scan(c.Context, c.Args().Slice())
	if err != nil {
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(fileHeaderViews(infos))
}

func fileHeaderViews(infos []session.FileInfo) []FileHeaderView {
	out := make([]FileHeaderView, len(infos))
	for i, info := range infos {
		v := FileHeaderView{
			Path:      info.Path,
			Format:    string(info.Format),
			Version:   info.Version,
			StartText: info.StartText,
		}
		if info.HasStart {
			v.Start = info.Start
		}
		if info.Err != nil {
			v.Error = info.Err.Error()
		}
		out[i] = v
	}
	return out
}
