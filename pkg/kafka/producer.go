package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/dmitrymomot/notifykit/pkg/channel"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Publisher is the part of *kgo.Client the producer uses.
type Publisher interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// PushEvent is the record value written to the push topic. Downstream
// push gateways (APNs, FCM) consume it.
type PushEvent struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Recipient string         `json:"recipient"`
	Type      string         `json:"type"`
	Priority  queue.Priority `json:"priority"`
	Title     string         `json:"title,omitempty"`
	Body      string         `json:"body,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Members   []string       `json:"members,omitempty"`
	Attempt   int            `json:"attempt"`
	SentAt    time.Time      `json:"sent_at"`
}

// Producer delivers the "push" channel by writing one record per message
// to a Kafka topic, keyed by recipient so a device's events stay ordered.
type Producer struct {
	name   string
	topic  string
	client Publisher
	now    func() time.Time
	logger *slog.Logger
}

var _ channel.Adapter = (*Producer)(nil)

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithChannelName overrides the channel name. Default is "push".
func WithChannelName(name string) ProducerOption {
	return func(p *Producer) {
		if name != "" {
			p.name = name
		}
	}
}

// WithTopic sets the record topic. Empty uses the client's default topic.
func WithTopic(topic string) ProducerOption {
	return func(p *Producer) {
		p.topic = topic
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) ProducerOption {
	return func(p *Producer) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ProducerOption {
	return func(p *Producer) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProducer creates a push channel adapter on top of client.
func NewProducer(client Publisher, opts ...ProducerOption) (*Producer, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	p := &Producer{
		name:   "push",
		client: client,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name implements channel.Adapter.
func (p *Producer) Name() string {
	return p.name
}

// Deliver implements channel.Adapter.
func (p *Producer) Deliver(ctx context.Context, msg channel.Message) channel.Result {
	if msg.Recipient == "" {
		return channel.Permanent(fmt.Errorf("%w: push recipient is empty", channel.ErrInvalidRecipient))
	}

	value, err := json.Marshal(PushEvent{
		ID:        msg.JobID,
		UserID:    msg.UserID,
		Recipient: msg.Recipient,
		Type:      msg.Type,
		Priority:  msg.Priority,
		Title:     msg.Subject,
		Body:      msg.Body,
		Data:      msg.Data,
		Members:   msg.Members,
		Attempt:   msg.Attempt,
		SentAt:    p.now().UTC(),
	})
	if err != nil {
		return channel.Permanent(fmt.Errorf("%w: %w: %w", channel.ErrRejected, ErrEncodeRecord, err))
	}

	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(msg.Recipient),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "job_id", Value: []byte(msg.JobID)},
			{Key: "type", Value: []byte(msg.Type)},
			{Key: "attempt", Value: []byte(strconv.Itoa(msg.Attempt))},
		},
	}

	r, err := p.client.ProduceSync(ctx, rec).First()
	if err != nil {
		res := channel.FromError(classify(ctx, err))
		p.logger.WarnContext(ctx, "push record not produced",
			logger.JobID(msg.JobID),
			logger.Channel(p.name),
			slog.String("classification", res.Status.String()),
			logger.Error(err))
		return res
	}
	return channel.Success(fmt.Sprintf("%s/%d/%d", r.Topic, r.Partition, r.Offset))
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, kgo.ErrRecordTimeout):
		return fmt.Errorf("%w: %w", channel.ErrTimeout, err)
	case errors.Is(err, kerr.TopicAuthorizationFailed),
		errors.Is(err, kerr.ClusterAuthorizationFailed),
		errors.Is(err, kerr.SaslAuthenticationFailed):
		return fmt.Errorf("%w: %w", channel.ErrAuth, err)
	case errors.Is(err, kerr.MessageTooLarge),
		errors.Is(err, kerr.InvalidRecord),
		errors.Is(err, kerr.CorruptMessage):
		return fmt.Errorf("%w: %w", channel.ErrRejected, err)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return fmt.Errorf("%w: %w", channel.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", channel.ErrNetwork, err)
}
