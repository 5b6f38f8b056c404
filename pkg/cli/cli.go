package cli

import (
	"context"
	"io"

	"github.com/m-mizutani/chorus/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

// Option is a functional option for Run
type Option func(*cli.Command)

// WithWriter redirects command output, which goes to stdout by default
func WithWriter(w io.Writer) Option {
	return func(cmd *cli.Command) {
		cmd.Writer = w
	}
}

func Run(ctx context.Context, argv []string, opts ...Option) *Error {
	cmd := &cli.Command{
		Name:  "chorus",
		Usage: "Attributed shared memory for multi-speaker agent sessions",
		Commands: []*cli.Command{
			addCommand(),
			contextCommand(),
			reportCommand(),
			chatCommand(),
			serveCommand(),
		},
	}

	for _, opt := range opts {
		opt(cmd)
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.From(ctx).Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// scopeFlag is shared by every command that works on one scope
func scopeFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "scope",
		Aliases:     []string{"s"},
		Usage:       "Memory scope as kind:id (user, agent or run)",
		Sources:     cli.EnvVars("CHORUS_SCOPE"),
		Destination: dst,
		Required:    true,
	}
}
