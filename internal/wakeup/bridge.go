package wakeup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Waker is woken when another node has work. *dispatcher.Pool implements it.
type Waker interface {
	Wake()
}

// Bridge publishes local enqueue signals and relays remote ones.
type Bridge struct {
	client  redis.UniversalClient
	channel string
	nodeID  string
	waker   Waker
	pending chan struct{}
	logger  *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithNodeID sets the id published by this process. Defaults to a random id.
func WithNodeID(id string) Option {
	return func(b *Bridge) {
		if id != "" {
			b.nodeID = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a bridge on channel.
func New(client redis.UniversalClient, channel string, waker Waker, opts ...Option) (*Bridge, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	if waker == nil {
		return nil, ErrWakerNil
	}
	if channel == "" {
		return nil, ErrNoChannel
	}
	b := &Bridge{
		client:  client,
		channel: channel,
		nodeID:  uuid.NewString(),
		waker:   waker,
		pending: make(chan struct{}, 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// NodeID returns the id this bridge publishes.
func (b *Bridge) NodeID() string {
	return b.nodeID
}

// Notify is a queue enqueue hook. It never blocks.
func (b *Bridge) Notify(job *queue.Job) {
	if job != nil && job.State != queue.StateQueued {
		return
	}
	select {
	case b.pending <- struct{}{}:
	default:
	}
}

// Run returns a function that subscribes to the wake channel and publishes
// pending signals until ctx is cancelled. Suitable for errgroup.
func (b *Bridge) Run(ctx context.Context) func() error {
	return func() error {
		return b.Start(ctx)
	}
}

// Start blocks until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrSubscribe, err)
	}

	b.logger.InfoContext(ctx, "wake-up bridge started",
		logger.Component("wakeup"),
		slog.String("channel", b.channel),
		slog.String("node_id", b.nodeID))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.logger.InfoContext(ctx, "wake-up bridge stopped", logger.Component("wakeup"))
			return nil
		case <-b.pending:
			if err := b.client.Publish(ctx, b.channel, b.nodeID).Err(); err != nil && ctx.Err() == nil {
				b.logger.WarnContext(ctx, "failed to publish wake signal",
					logger.Component("wakeup"),
					logger.Error(err))
			}
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if msg.Payload != b.nodeID {
				b.waker.Wake()
			}
		}
	}
}
