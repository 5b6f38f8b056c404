package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/chorus/pkg/usecase/chat"
	"github.com/m-mizutani/chorus/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg          config
		scope        string
		userID       string
		agentID      string
		limit        int64
		excludeRoles []string
	)

	flags := []cli.Flag{
		scopeFlag(&scope),
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "Speaker ID recorded for your messages",
			Sources:     cli.EnvVars("CHORUS_USER", "USER"),
			Destination: &userID,
		},
		&cli.StringFlag{
			Name:        "agent",
			Usage:       "Speaker ID recorded for the agent replies",
			Value:       "chorus",
			Sources:     cli.EnvVars("CHORUS_AGENT"),
			Destination: &agentID,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of memories given to the model per turn",
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
		Name:  "chat",
		Usage: "Talk with an agent that remembers who said what",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			s, err := model.ParseScope(scope)
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			uc, closer, err := cfg.newMemory(ctx)
			if err != nil {
				return err
			}
			defer closer()

			session, err := chat.New(chat.NewInput{
				Memory:       uc,
				Gemini:       gemini,
				Scope:        s,
				UserID:       userID,
				AgentID:      agentID,
				ContextLimit: int(limit),
				ExcludeRoles: toRoles(excludeRoles),
			})
			if err != nil {
				return goerr.Wrap(err, "failed to create chat session")
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdout:          c.Root().Writer,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintf(w, "Chat session started in %s. Type 'exit' to quit.\n", s)
			cfg.warnEphemeral(ctx, w)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "exit" {
					break
				}
				if message == "" {
					continue
				}

				spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				spin.Suffix = " thinking..."
				spin.Start()
				reply, err := session.Send(ctx, message)
				spin.Stop()

				if err != nil {
					logging.From(ctx).Error("failed to send message", "error", err)
					fmt.Fprintln(w, "(failed to get a reply, see log)")
					continue
				}

				fmt.Fprintf(w, "%s\n\n", reply.Text)
			}

			fmt.Fprintf(w, "\nChat session completed\n")
			return nil
		},
	}
}
