package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type ReplayCmd struct {
	flags *Flags
}

// NewReplayCmd creates a new replay command
func NewReplayCmd(flags *Flags) *ReplayCmd {
	return &ReplayCmd{flags: flags}
}

// Register adds the replay command to the application
func (cmd *ReplayCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "replay",
		Usage:     "Requeue dead notifications",
		UsageText: "notifyd replay <job-id> [<job-id>...]",
		Description: `Puts dead jobs back on the queue with their attempt count reset. Channels
that already succeeded are not delivered again. Each id is replayed
independently; the command fails if any replay failed.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *ReplayCmd) run(ctx context.Context, c *cli.Command) error {
	ids := c.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: job id", ErrMissingArgument)
	}

	app, err := cmd.flags.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	out := c.Root().Writer
	failed := 0
	for _, id := range ids {
		job, err := app.Orchestrator.ReplayDeadLetter(ctx, id)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "%s\tfailed: %v\n", id, err)
			continue
		}
		state := "requeued"
		if job != nil {
			state = string(job.State)
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", id, state)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d replays failed", failed, len(ids))
	}
	return nil
}
