package kafka

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Fetcher is the part of *kgo.Client the consumer uses.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitUncommittedOffsets(ctx context.Context) error
	Close()
}

// Handler processes one record. A returned error is logged and the record
// is committed anyway, so a poison record cannot stall the partition.
type Handler func(ctx context.Context, r *kgo.Record) error

// Consumer polls records and hands them to a Handler, committing offsets
// after each poll.
type Consumer struct {
	client  Fetcher
	handler Handler
	logger  *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger.
func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConsumer creates a consumer. It owns client and closes it when Run
// returns.
func NewConsumer(client Fetcher, handler Handler, opts ...ConsumerOption) (*Consumer, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}
	c := &Consumer{client: client, handler: handler, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run returns a function that polls until ctx is cancelled or the client is
// closed. Suitable for errgroup.
func (c *Consumer) Run(ctx context.Context) func() error {
	return func() error {
		c.Start(ctx)
		return nil
	}
}

// Start polls and processes records. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.InfoContext(ctx, "kafka consumer started", logger.Component("kafka"))
	defer func() {
		c.client.Close()
		c.logger.InfoContext(ctx, "kafka consumer stopped", logger.Component("kafka"))
	}()

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error",
				slog.String("topic", topic),
				slog.Int("partition", int(partition)),
				logger.Error(err))
		})

		fetches.EachRecord(func(r *kgo.Record) {
			if err := c.handler(ctx, r); err != nil {
				c.logger.ErrorContext(ctx, "kafka record rejected",
					slog.String("topic", r.Topic),
					slog.String("key", string(r.Key)),
					slog.Int64("offset", r.Offset),
					logger.Error(err))
			}
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "kafka commit error", logger.Error(err))
		}
	}
}
