package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/notifykit/pkg/channel"
)

// Adapter delivers notifications over the "email" channel through an
// EmailSender.
type Adapter struct {
	name   string
	sender EmailSender
	logger *slog.Logger
}

var _ channel.Adapter = (*Adapter)(nil)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithAdapterName overrides the channel name. Default is "email".
func WithAdapterName(name string) AdapterOption {
	return func(a *Adapter) {
		if name != "" {
			a.name = name
		}
	}
}

// WithAdapterLogger sets the logger.
func WithAdapterLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter wraps sender as a channel adapter.
func NewAdapter(sender EmailSender, opts ...AdapterOption) (*Adapter, error) {
	if sender == nil {
		return nil, ErrSenderNil
	}
	a := &Adapter{name: "email", sender: sender, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewSender picks the Postmark client when credentials are configured and
// DevSender otherwise.
func NewSender(cfg Config, opts ...PostmarkOption) (EmailSender, error) {
	if cfg.Production() {
		return NewPostmarkClient(cfg, opts...)
	}
	return NewDevSender(cfg.DevDir), nil
}

// Name implements channel.Adapter
func (a *Adapter) Name() string {
	return a.name
}

// Deliver implements channel.Adapter
func (a *Adapter) Deliver(ctx context.Context, msg channel.Message) channel.Result {
	if !ValidAddress(msg.Recipient) {
		return channel.Permanent(fmt.Errorf("%w: %q is not an email address", channel.ErrInvalidRecipient, msg.Recipient))
	}

	id, err := a.sender.SendEmail(ctx, Params(msg))
	if err != nil {
		res := channel.FromError(err)
		a.logger.WarnContext(ctx, "email delivery failed",
			slog.String("job_id", msg.JobID),
			slog.String("classification", res.Status.String()),
			slog.String("error", err.Error()))
		return res
	}
	return channel.Success(id)
}

// Params converts a channel message into email parameters. A plain text
// body is escaped into paragraphs for the HTML part.
func Params(msg channel.Message) SendEmailParams {
	subject := msg.Subject
	if subject == "" {
		subject = strings.ReplaceAll(msg.Type, "_", " ")
	}

	p := SendEmailParams{
		SendTo:  strings.TrimSpace(msg.Recipient),
		Subject: subject,
		Tag:     msg.Type,
		Metadata: map[string]string{
			"job_id":  msg.JobID,
			"user_id": msg.UserID,
		},
	}
	if looksLikeHTML(msg.Body) {
		p.BodyHTML = msg.Body
		return p
	}

	p.BodyText = msg.Body
	var sb strings.Builder
	for _, para := range strings.Split(msg.Body, "\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(para))
		sb.WriteString("</p>\n")
	}
	p.BodyHTML = sb.String()
	return p
}

func looksLikeHTML(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">")
}
