package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

type StatusCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewStatusCmd creates a new status command
func NewStatusCmd(flags *Flags) *StatusCmd {
	return &StatusCmd{flags: flags}
}

// Register adds the status command to the application
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show where a notification is",
		UsageText: "notifyd status [--json] <job-id>",
		Description: `Prints the state of a submitted notification. A notification merged into a
group window reports pending until the window flushes and then follows the
digest job.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("%w: job id", ErrMissingArgument)
	}

	app, err := cmd.flags.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	st, err := app.Orchestrator.GetJobStatus(ctx, id)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	return printStatus(out, st)
}

func printStatus(out io.Writer, st *notify.Status) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	row := func(k, v string) {
		if v != "" {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", k, v)
		}
	}

	row("job", st.JobID)
	row("state", string(st.State))
	if j := st.Job; j != nil {
		if j.ID != st.JobID {
			row("digest", j.ID)
		}
		row("user", j.UserID)
		row("type", j.Type)
		row("priority", j.Priority.String())
		row("channels", strings.Join(j.Payload.Channels, ", "))
		row("delivered", strings.Join(j.Delivered, ", "))
		row("attempt", fmt.Sprintf("%d/%d", j.Attempt, j.MaxAttempts))
		if !j.NotBefore.IsZero() {
			row("not before", j.NotBefore.Format(time.RFC3339))
		}
		row("last error", j.LastError)
		row("updated", j.UpdatedAt.Format(time.RFC3339))
	}
	if win := st.Window; win != nil {
		row("group", win.GroupKey)
		row("window", fmt.Sprintf("%s (%s, %d members, ends %s)",
			win.ID, win.State, len(win.Members), win.WindowEnd.Format(time.RFC3339)))
	}
	return w.Flush()
}
