package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func addCommand() *cli.Command {
	var (
		cfg   config
		scope string
		actor string
		role  string
	)

	flags := []cli.Flag{
		scopeFlag(&scope),
		&cli.StringFlag{
			Name:        "actor",
			Aliases:     []string{"a"},
			Usage:       "Who said it",
			Sources:     cli.EnvVars("CHORUS_ACTOR"),
			Destination: &actor,
		},
		&cli.StringFlag{
			Name:        "role",
			Aliases:     []string{"r"},
			Usage:       "Role of the speaker (user, assistant, system)",
			Value:       string(model.RoleUser),
			Destination: &role,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "add",
		Usage:     "Store an attributed memory",
		ArgsUsage: "<content>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			content := strings.Join(c.Args().Slice(), " ")
			if content == "" {
				return goerr.New("content is required")
			}

			s, err := model.ParseScope(scope)
			if err != nil {
				return err
			}

			uc, closer, err := cfg.newMemory(ctx)
			if err != nil {
				return err
			}
			defer closer()

			record, err := uc.Append(ctx, &model.Draft{
				Content: content,
				ActorID: actor,
				Role:    model.Role(role),
				Scope:   s,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to add memory")
			}

			fmt.Fprintf(c.Root().Writer, "Stored %s (%s by %s at %s)\n",
				record.ID, record.Scope, record.Actor(), record.CreatedAt)
			cfg.warnEphemeral(ctx, c.Root().Writer)
			return nil
		},
	}
}
