package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrymomot/notifykit/pkg/channel"
)

// EmailSender represents an interface for sending emails.
// It returns the provider message id when the provider assigns one.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) (string, error)
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string            `json:"send_to"`             // Email address of the recipient
	Subject  string            `json:"subject"`             // Subject of the email
	BodyHTML string            `json:"body_html"`           // HTML body of the email
	BodyText string            `json:"body_text,omitempty"` // Optional plain text alternative
	Tag      string            `json:"tag,omitempty"`       // Optional
	Metadata map[string]string `json:"metadata,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$|^[a-zA-Z0-9._%+\-]+@localhost$`)

// ValidAddress reports whether s looks like a deliverable email address.
func ValidAddress(s string) bool {
	return emailRegex.MatchString(strings.TrimSpace(s))
}

// Validate checks the parameters before they reach a provider.
// An unusable address is reported as an invalid recipient.
func (p SendEmailParams) Validate() error {
	switch {
	case strings.TrimSpace(p.SendTo) == "":
		return fmt.Errorf("%w: %w: SendTo is required", ErrInvalidParams, channel.ErrInvalidRecipient)
	case !ValidAddress(p.SendTo):
		return fmt.Errorf("%w: %w: SendTo must be a valid email address", ErrInvalidParams, channel.ErrInvalidRecipient)
	case strings.TrimSpace(p.Subject) == "":
		return fmt.Errorf("%w: %w: Subject is required", ErrInvalidParams, channel.ErrRejected)
	case strings.TrimSpace(p.BodyHTML) == "" && strings.TrimSpace(p.BodyText) == "":
		return fmt.Errorf("%w: %w: BodyHTML is required", ErrInvalidParams, channel.ErrRejected)
	}
	return nil
}
