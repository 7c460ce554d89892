package cmd

import (
	"context"
	"fmt"
	"time"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/canlog/cli/render"
	"github.com/justapithecus/canlog/lode"
)

// statsTimeout bounds one storage query.
const statsTimeout = 30 * time.Second

// StatsCommand returns the stats command. It reads the latest run summary
// persisted by convert.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show the persisted summary of the latest matching conversion run",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{Name: "storage-dataset", Usage: "Lode dataset ID", Value: lode.DefaultDataset},
			&cli.StringFlag{Name: "storage-backend", Usage: "Storage backend: fs or s3", Value: "fs"},
			&cli.StringFlag{Name: "storage-path", Usage: "Storage path (fs: directory, s3: bucket/prefix)", Required: true},
			&cli.StringFlag{Name: "storage-region", Usage: "AWS region for S3 backend"},
			&cli.StringFlag{Name: "storage-endpoint", Usage: "Custom S3 endpoint (MinIO, R2)"},
			&cli.BoolFlag{Name: "storage-s3-path-style", Usage: "Use path-style S3 addressing"},
			&cli.StringFlag{Name: "run-id", Usage: "Read the summary of a specific run ID"},
			&cli.StringFlag{Name: "source", Usage: "Filter by source partition"},
		),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, statsTimeout)
	defer cancel()

	ds, err := buildReadDataset(ctx, c.String("storage-dataset"), c.String("storage-backend"), c.String("storage-path"), lode.S3Config{
		Region:       c.String("storage-region"),
		Endpoint:     c.String("storage-endpoint"),
		UsePathStyle: c.Bool("storage-s3-path-style"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage reader: %w", err)
	}

	record, err := lode.QueryLatestSummary(ctx, ds, c.String("run-id"), c.String("source"))
	if err != nil {
		return fmt.Errorf("failed to read summary from Lode: %w", err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(record)
}

// buildReadDataset creates a Lode Dataset for reading. s3 carries the
// connection options; bucket and prefix come from path.
func buildReadDataset(ctx context.Context, dataset, backend, path string, s3 lode.S3Config) (lodelibrary.Dataset, error) {
	switch backend {
	case "", "fs":
		return lode.NewReadDatasetFS(dataset, path)
	case "s3":
		s3.Bucket, s3.Prefix = lode.ParseS3Path(path)
		return lode.NewReadDatasetS3(ctx, dataset, s3)
	default:
		return nil, fmt.Errorf("unsupported storage-backend: %s (must be fs or s3)", backend)
	}
}
