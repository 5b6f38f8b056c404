package cli

import (
	"context"

	"github.com/m-mizutani/chorus/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run an MCP server over stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			uc, closer, err := cfg.newMemory(ctx)
			if err != nil {
				return err
			}
			defer closer()

			return mcp.New(uc).Serve(ctx)
		},
	}
}
