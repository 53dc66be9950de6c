package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Stats is the output of the stats command.
type Stats struct {
	Depth       map[string]int    `json:"depth"`
	Total       int               `json:"total"`
	DeadLetters int               `json:"dead_letters"`
	Backends    map[string]string `json:"backends"`
}

type StatsCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewStatsCmd creates a new stats command
func NewStatsCmd(flags *Flags) *StatsCmd {
	return &StatsCmd{flags: flags}
}

// Register adds the stats command to the application
func (cmd *StatsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "stats",
		Usage:     "Show queue depth, dead letters and backend health",
		UsageText: "notifyd stats [--json]",
		Description: `Counts unresolved jobs per priority tier and dead letters awaiting replay,
and pings every configured backend.`,
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

func (cmd *StatsCmd) run(ctx context.Context, c *cli.Command) error {
	app, err := cmd.flags.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	stats := Stats{
		Depth:    make(map[string]int, len(queue.Priorities)),
		Backends: make(map[string]string),
	}
	for _, p := range queue.Priorities {
		n, err := app.Orchestrator.GetQueueDepth(ctx, &p)
		if err != nil {
			return fmt.Errorf("queue depth: %w", err)
		}
		stats.Depth[p.String()] = n
		stats.Total += n
	}
	if stats.DeadLetters, err = app.Orchestrator.GetDeadLetterCount(ctx); err != nil {
		return fmt.Errorf("dead letters: %w", err)
	}
	for name, err := range app.Health(ctx) {
		stats.Backends[name] = "ok"
		if err != nil {
			stats.Backends[name] = err.Error()
		}
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PRIORITY\tJOBS")
	for _, p := range queue.Priorities {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", p, stats.Depth[p.String()])
	}
	_, _ = fmt.Fprintf(w, "total\t%d\n", stats.Total)
	_, _ = fmt.Fprintf(w, "\nDEAD LETTERS\t%d\n", stats.DeadLetters)
	_, _ = fmt.Fprintln(w, "\nBACKEND\tSTATUS")
	for _, name := range app.Backends() {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", name, stats.Backends[name])
	}
	return w.Flush()
}
