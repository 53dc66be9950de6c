package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

type ScheduleCmd struct {
	flags *Flags

	// add flags
	req            requestFlags
	scheduleID     string
	cron           string
	at             string
	timezone       string
	skipWeekends   bool
	skipHolidays   bool
	region         string
	maxOccurrences int
}

// NewScheduleCmd creates a new schedule command
func NewScheduleCmd(flags *Flags) *ScheduleCmd {
	return &ScheduleCmd{flags: flags}
}

// Register adds the schedule command to the application
func (cmd *ScheduleCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "schedule",
		Usage: "Manage recurring and timezone-aware notifications",
		Commands: []*cli.Command{
			cmd.addCmd(),
			cmd.cancelCmd(),
		},
	})

	return app
}

func (cmd *ScheduleCmd) addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Register a schedule",
		UsageText: "notifyd schedule add (--cron <expr> | --at <time>) [--tz <zone>] --user <id> --type <type> ...",
		Description: `Registers a schedule and prints its id. Exactly one of --cron and --at is
required. Cron expressions have five fields and are evaluated in --tz.
--at accepts RFC 3339 or "2006-01-02 15:04" local to --tz.

Examples:
  notifyd schedule add --cron "0 9 * * 1-5" --tz America/New_York -u u42 -t standup --body "Stand-up"
  notifyd schedule add --at "2026-12-24 18:00" --tz Europe/Berlin --skip-holidays --region de -u u42 -t greeting --template xmas`,
		Flags: append(cmd.req.cliFlags(),
			&cli.StringFlag{
				Name:        "schedule-id",
				Usage:       "schedule id (default: random)",
				Destination: &cmd.scheduleID,
			},
			&cli.StringFlag{
				Name:        "cron",
				Usage:       "five-field cron expression",
				Destination: &cmd.cron,
			},
			&cli.StringFlag{
				Name:        "at",
				Usage:       "one-shot fire time",
				Destination: &cmd.at,
			},
			&cli.StringFlag{
				Name:        "tz",
				Usage:       "IANA timezone",
				Value:       "UTC",
				Destination: &cmd.timezone,
			},
			&cli.BoolFlag{
				Name:        "skip-weekends",
				Destination: &cmd.skipWeekends,
			},
			&cli.BoolFlag{
				Name:        "skip-holidays",
				Destination: &cmd.skipHolidays,
			},
			&cli.StringFlag{
				Name:        "region",
				Usage:       "holiday region from the policy file",
				Destination: &cmd.region,
			},
			&cli.IntFlag{
				Name:        "max",
				Usage:       "stop after this many occurrences (default: unlimited)",
				Destination: &cmd.maxOccurrences,
			},
		),
		Action: cmd.runAdd,
	}
}

func (cmd *ScheduleCmd) cancelCmd() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Retire a schedule",
		UsageText: "notifyd schedule cancel <schedule-id>",
		Action:    cmd.runCancel,
	}
}

func (cmd *ScheduleCmd) input() (notify.ScheduleInput, error) {
	in := notify.ScheduleInput{
		ID:             cmd.scheduleID,
		CronExpression: cmd.cron,
		Timezone:       cmd.timezone,
		SkipWeekends:   cmd.skipWeekends,
		SkipHolidays:   cmd.skipHolidays,
		HolidayRegion:  cmd.region,
	}
	if (cmd.cron == "") == (cmd.at == "") {
		return in, fmt.Errorf("%w: exactly one of --cron and --at is required", ErrInvalidFlag)
	}
	if cmd.maxOccurrences < 0 {
		return in, fmt.Errorf("%w: --max must not be negative", ErrInvalidFlag)
	}
	if cmd.maxOccurrences > 0 {
		n := cmd.maxOccurrences
		in.MaxOccurrences = &n
	}
	if cmd.at != "" {
		at, err := parseFireAt(cmd.at, cmd.timezone)
		if err != nil {
			return in, err
		}
		in.FireAt = &at
	}
	return in, nil
}

func parseFireAt(value, timezone string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --tz %q: %w", ErrInvalidFlag, timezone, err)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --at %q", ErrInvalidFlag, value)
	}
	return t, nil
}

func (cmd *ScheduleCmd) runAdd(ctx context.Context, c *cli.Command) error {
	req, err := cmd.req.request()
	if err != nil {
		return err
	}
	in, err := cmd.input()
	if err != nil {
		return err
	}

	app, err := cmd.flags.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := app.Orchestrator.Schedule(ctx, req, in)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	_, err = fmt.Fprintln(c.Root().Writer, id)
	return err
}

func (cmd *ScheduleCmd) runCancel(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("%w: schedule id", ErrMissingArgument)
	}

	app, err := cmd.flags.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Orchestrator.CancelSchedule(ctx, id); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Root().Writer, "schedule %s retired\n", id)
	return err
}
