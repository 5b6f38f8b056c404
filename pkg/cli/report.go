package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/chorus/pkg/adapter"
	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/usecase/reporter"
	"github.com/m-mizutani/chorus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func reportCommand() *cli.Command {
	var (
		cfg          config
		scope        string
		sortByTime   bool
		groupByActor bool
		bucket       string
		key          string
	)

	flags := []cli.Flag{
		scopeFlag(&scope),
		&cli.BoolFlag{
			Name:        "sort-by-time",
			Aliases:     []string{"t"},
			Usage:       "Order records from oldest to newest",
			Destination: &sortByTime,
		},
		&cli.BoolFlag{
			Name:        "group-by-actor",
			Aliases:     []string{"g"},
			Usage:       "Group records under a heading per speaker",
			Destination: &groupByActor,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket to upload the report to",
			Sources:     cli.EnvVars("CHORUS_REPORT_BUCKET"),
			Destination: &bucket,
		},
		&cli.StringFlag{
			Name:        "key",
			Usage:       "Object key of the uploaded report (default: reports/<kind>/<id>.txt)",
			Destination: &key,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "report",
		Usage: "Render every memory of a scope with its speaker and time",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			s, err := model.ParseScope(scope)
			if err != nil {
				return err
			}

			uc, closer, err := cfg.newMemory(ctx)
			if err != nil {
				return err
			}
			defer closer()

			records, err := uc.ListAll(ctx, s)
			if err != nil {
				return goerr.Wrap(err, "failed to list memories")
			}

			text := reporter.Render(records, reporter.Options{
				SortByTime:   sortByTime,
				GroupByActor: groupByActor,
			})
			fmt.Fprintln(c.Root().Writer, text)

			if bucket == "" {
				return nil
			}

			storage, err := cfg.newStorage(ctx, bucket)
			if err != nil {
				return err
			}
			if key == "" {
				key = fmt.Sprintf("reports/%s/%s.txt", s.Kind, s.ID)
			}
			if err := adapter.Upload(ctx, storage, key, []byte(text+"\n")); err != nil {
				return goerr.Wrap(err, "failed to upload report", goerr.V("bucket", bucket))
			}

			logging.From(ctx).Info("report uploaded", "bucket", bucket, "key", key)
			return nil
		},
	}
}
