package channel

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Status is the classified result of a delivery attempt.
type Status int

const (
	StatusSuccess Status = iota
	StatusRetryable
	StatusPermanent
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRetryable:
		return "retryable"
	case StatusPermanent:
		return "permanent"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Message is what an adapter delivers: one job on one channel.
type Message struct {
	JobID     string         `json:"job_id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Channel   string         `json:"channel"`
	Recipient string         `json:"recipient"`
	Priority  queue.Priority `json:"priority"`
	Subject   string         `json:"subject,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Members   []string       `json:"members,omitempty"`
	Attempt   int            `json:"attempt"`
}

// NewMessage builds the message for delivering job over ch. The recipient
// defaults to the job's user id when the payload has no address for ch.
func NewMessage(job *queue.Job, ch string) Message {
	return Message{
		JobID:     job.ID,
		UserID:    job.UserID,
		Type:      job.Type,
		Channel:   ch,
		Recipient: job.Payload.Recipient(ch, job.UserID),
		Priority:  job.Priority,
		Subject:   job.Payload.Subject,
		Body:      job.Payload.Body,
		Data:      job.Payload.Data,
		Members:   job.Payload.Members,
		Attempt:   job.Attempt,
	}
}

// Result is returned by Adapter.Deliver.
type Result struct {
	Status Status
	Err    error
	// ProviderID is the provider's message id, when it returns one.
	ProviderID string
}

// Success reports a delivered message.
func Success(providerID string) Result {
	return Result{Status: StatusSuccess, ProviderID: providerID}
}

// Retryable reports a transient failure.
func Retryable(err error) Result {
	return Result{Status: StatusRetryable, Err: err}
}

// Permanent reports a failure that retrying cannot fix.
func Permanent(err error) Result {
	return Result{Status: StatusPermanent, Err: err}
}

// FromError classifies err into a Result.
func FromError(err error) Result {
	return Result{Status: Classify(err), Err: err}
}

// Adapter delivers messages over one channel. Deliver must honour ctx, but
// callers also enforce their own hard timeout.
type Adapter interface {
	Name() string
	Deliver(ctx context.Context, msg Message) Result
}

// AdapterFunc turns a function into an Adapter.
func AdapterFunc(name string, fn func(ctx context.Context, msg Message) Result) Adapter {
	return funcAdapter{name: name, fn: fn}
}

type funcAdapter struct {
	name string
	fn   func(ctx context.Context, msg Message) Result
}

func (a funcAdapter) Name() string { return a.name }

func (a funcAdapter) Deliver(ctx context.Context, msg Message) Result { return a.fn(ctx, msg) }
