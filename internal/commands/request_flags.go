package commands

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dmitrymomot/notifykit/pkg/notify"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// requestFlags are the flags shared by commands that build a notification.
type requestFlags struct {
	id          string
	user        string
	typ         string
	priority    string
	channels    []string
	recipients  []string
	template    string
	vars        []string
	subject     string
	body        string
	maxAttempts int
}

func (r *requestFlags) cliFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "idempotency id (default: random)",
			Destination: &r.id,
		},
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "recipient user id",
			Required:    true,
			Destination: &r.user,
		},
		&cli.StringFlag{
			Name:        "type",
			Aliases:     []string{"t"},
			Usage:       "notification type, used for grouping rules and preferences",
			Required:    true,
			Destination: &r.typ,
		},
		&cli.StringFlag{
			Name:        "priority",
			Aliases:     []string{"p"},
			Usage:       "low, medium, high or critical",
			Value:       "medium",
			Destination: &r.priority,
		},
		&cli.StringSliceFlag{
			Name:        "channel",
			Aliases:     []string{"c"},
			Usage:       "delivery channel (repeatable, default: policy default channels)",
			Destination: &r.channels,
		},
		&cli.StringSliceFlag{
			Name:        "to",
			Usage:       "channel=address recipient override (repeatable)",
			Destination: &r.recipients,
		},
		&cli.StringFlag{
			Name:        "template",
			Usage:       "template id from the policy file",
			Destination: &r.template,
		},
		&cli.StringSliceFlag{
			Name:        "var",
			Usage:       "key=value template variable (repeatable)",
			Destination: &r.vars,
		},
		&cli.StringFlag{
			Name:        "subject",
			Destination: &r.subject,
		},
		&cli.StringFlag{
			Name:        "body",
			Destination: &r.body,
		},
		&cli.IntFlag{
			Name:        "max-attempts",
			Usage:       "delivery attempts before dead letter (default: queue setting)",
			Destination: &r.maxAttempts,
		},
	}
}

func (r *requestFlags) request() (notify.Request, error) {
	priority, err := queue.ParsePriority(r.priority)
	if err != nil {
		return notify.Request{}, fmt.Errorf("%w: --priority: %w", ErrInvalidFlag, err)
	}
	recipients, err := pairs("to", r.recipients)
	if err != nil {
		return notify.Request{}, err
	}
	vars, err := pairs("var", r.vars)
	if err != nil {
		return notify.Request{}, err
	}

	req := notify.Request{
		ID:          r.id,
		UserID:      r.user,
		Type:        r.typ,
		Priority:    priority,
		Channels:    r.channels,
		TemplateID:  r.template,
		Subject:     r.subject,
		Body:        r.body,
		MaxAttempts: r.maxAttempts,
	}
	if len(recipients) > 0 {
		req.Recipients = recipients
	}
	if len(vars) > 0 {
		req.Vars = make(map[string]any, len(vars))
		for k, v := range vars {
			req.Vars[k] = v
		}
	}
	return req, nil
}

// pairs parses repeated key=value flag values.
func pairs(flag string, values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, kv := range values {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: --%s %q, want key=value", ErrInvalidFlag, flag, kv)
		}
		out[k] = v
	}
	return out, nil
}
