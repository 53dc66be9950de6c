package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/dmitrymomot/notifykit/internal/service"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

type RunCmd struct {
	flags *Flags

	// flags
	migrate bool
}

// NewRunCmd creates a new run command
func NewRunCmd(flags *Flags) *RunCmd {
	return &RunCmd{flags: flags}
}

// Register adds the run command to the application
func (cmd *RunCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run workers, scheduler and grouping sweeper",
		UsageText: "notifyd run [--migrate]",
		Description: `Starts the dispatcher pool, lease reaper, scheduler ticker and group window
sweeper. When Kafka is configured the command topic is consumed into
submissions; when Redis is configured rate limits are shared and idle workers
are woken across processes.

Without PG_CONN_URL everything is kept in memory and lost on exit.
SIGINT or SIGTERM stops the process after in-flight jobs are acknowledged.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "migrate",
				Usage:       "apply database migrations before starting",
				Sources:     cli.EnvVars("NOTIFYD_AUTO_MIGRATE"),
				Destination: &cmd.migrate,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RunCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.flags.Config == nil {
		return ErrNotLoaded
	}
	log := cmd.flags.Logger.With(logger.Component("notifyd"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := service.New(ctx, *cmd.flags.Config, cmd.flags.Policy, cmd.flags.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("failed to close backends", logger.Error(err))
		}
	}()

	if app.Durable() {
		if cmd.migrate {
			if err := pg.Migrate(ctx, app.Postgres(), cmd.flags.Config.Postgres, log); err != nil {
				return err
			}
		}
	} else {
		log.WarnContext(ctx, "PG_CONN_URL is not set, jobs are kept in memory and lost on exit")
	}

	return app.Run(ctx)
}
