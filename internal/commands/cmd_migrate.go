package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/dmitrymomot/notifykit/pkg/pg"
)

type MigrateCmd struct {
	flags *Flags

	// flags
	statusOnly bool
}

// NewMigrateCmd creates a new migrate command
func NewMigrateCmd(flags *Flags) *MigrateCmd {
	return &MigrateCmd{flags: flags}
}

// Register adds the migrate command to the application
func (cmd *MigrateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "migrate",
		Usage:     "Apply database migrations",
		UsageText: "notifyd migrate [--status]",
		Description: `Applies the embedded Postgres migrations that create the job, schedule,
group window and dead letter tables. Safe to run repeatedly.

Use --status to print the current schema version without migrating.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "status",
				Usage:       "only print the schema version",
				Destination: &cmd.statusOnly,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *MigrateCmd) run(ctx context.Context, c *cli.Command) error {
	if err := cmd.flags.requirePostgres(); err != nil {
		return err
	}
	cfg := cmd.flags.Config.Postgres

	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if !cmd.statusOnly {
		if err := pg.Migrate(ctx, pool, cfg, cmd.flags.Logger); err != nil {
			return err
		}
	}

	version, err := pg.SchemaVersion(ctx, pool, cfg, cmd.flags.Logger)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Root().Writer, "schema version %d\n", version)
	return err
}
