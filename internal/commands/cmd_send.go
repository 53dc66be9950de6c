package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

type SendCmd struct {
	flags *Flags

	// flags
	req   requestFlags
	delay time.Duration
}

// NewSendCmd creates a new send command
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// Register adds the send command to the application
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Submit a notification",
		UsageText: "notifyd send --user <id> --type <type> [--channel <name>...] [--template <id> --var k=v...]",
		Description: `Submits one notification and prints its job id. A running notifyd picks it
up from Postgres. Types with a grouping rule in the policy file join a group
window instead of being queued directly.

Examples:
  notifyd send -u u42 -t welcome --template welcome --var name=Ann
  notifyd send -u u42 -t alert -p critical -c email --to email=ops@example.com --subject "Disk full"
  notifyd send -u u42 -t reminder --delay 1h --body "Stand-up in an hour"`,
		Flags: append(cmd.req.cliFlags(),
			&cli.DurationFlag{
				Name:        "delay",
				Usage:       "deliver no earlier than this long from now (delayed sends are never grouped)",
				Destination: &cmd.delay,
			},
		),
		Action: cmd.run,
	})

	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	req, err := cmd.req.request()
	if err != nil {
		return err
	}
	if cmd.delay < 0 {
		return fmt.Errorf("%w: --delay must not be negative", ErrInvalidFlag)
	}
	if cmd.delay > 0 {
		req.NotBefore = time.Now().Add(cmd.delay)
	}

	app, err := cmd.flags.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := app.Orchestrator.Submit(ctx, req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	_, err = fmt.Fprintln(c.Root().Writer, id)
	return err
}
