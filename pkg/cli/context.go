package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/usecase/assembler"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func contextCommand() *cli.Command {
	var (
		cfg          config
		scope        string
		query        string
		limit        int64
		excludeRoles []string
	)

	flags := []cli.Flag{
		scopeFlag(&scope),
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Text used to find relevant memories",
			Destination: &query,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of memories to include",
			Value:       10,
			Sources:     cli.EnvVars("CHORUS_CONTEXT_LIMIT"),
			Destination: &limit,
		},
		&cli.StringSliceFlag{
			Name:        "exclude-role",
			Usage:       "Role to leave out of the context (repeatable)",
			Destination: &excludeRoles,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "context",
		Usage: "Assemble an attributed context block for a query",
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

			result, err := uc.AssembleContext(ctx, assembler.Input{
				Query:        query,
				Scope:        s,
				Limit:        int(limit),
				ExcludeRoles: toRoles(excludeRoles),
			})
			if err != nil {
				return goerr.Wrap(err, "failed to assemble context")
			}

			if result.Text != "" {
				fmt.Fprintln(c.Root().Writer, result.Text)
			}
			return nil
		},
	}
}

func toRoles(values []string) []model.Role {
	roles := make([]model.Role, 0, len(values))
	for _, v := range values {
		roles = append(roles, model.Role(v))
	}
	return roles
}
