package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/urfave/cli/v3"

	"github.com/dmitrymomot/notifykit/internal/commands"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "notifyd",
		Usage:     "Prioritized, scheduled and grouped notification delivery",
		UsageText: "notifyd [global options] command [command options]",
		Description: `notifyd accepts notification requests, queues them by priority, and delivers
them through email, webhook, in-app inbox and push channels with retries,
rate limits, digests and dead letters.

Configuration comes from the environment (and .env files); operational policy
such as rate limits, grouping rules, holidays and templates comes from a YAML
policy file.

Run 'notifyd migrate' once, then 'notifyd run' on every worker node.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "env-file",
				Usage:       ".env files to read before the environment (repeatable)",
				Sources:     cli.EnvVars("NOTIFYD_ENV_FILE"),
				Destination: &flags.EnvFiles,
			},
			&cli.StringFlag{
				Name:        "policy",
				Usage:       "path to the YAML policy file",
				Sources:     cli.EnvVars("NOTIFYKIT_POLICY_FILE"),
				Destination: &flags.PolicyFile,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := flags.Load(os.Stderr); err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			logger.SetAsDefault(flags.Logger)
			return ctx, nil
		},
	}

	app = commands.NewMigrateCmd(flags).Register(app)
	app = commands.NewRunCmd(flags).Register(app)
	app = commands.NewSendCmd(flags).Register(app)
	app = commands.NewScheduleCmd(flags).Register(app)
	app = commands.NewStatusCmd(flags).Register(app)
	app = commands.NewReplayCmd(flags).Register(app)
	app = commands.NewStatsCmd(flags).Register(app)

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
