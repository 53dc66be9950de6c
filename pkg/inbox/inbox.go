package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/channel"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Inbox stores in-app notifications and pushes them to live subscribers.
// It implements channel.Adapter for the "inbox" channel and exposes the
// read side used by transports.
type Inbox struct {
	name    string
	storage Storage
	hub     *Hub
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

var _ channel.Adapter = (*Inbox)(nil)

// Option configures an Inbox.
type Option func(*Inbox)

// WithName overrides the channel name. Default is "inbox".
func WithName(name string) Option {
	return func(i *Inbox) {
		if name != "" {
			i.name = name
		}
	}
}

// WithHub enables live delivery through h.
func WithHub(h *Hub) Option {
	return func(i *Inbox) {
		i.hub = h
	}
}

// WithTTL expires notifications d after delivery. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(i *Inbox) {
		if d >= 0 {
			i.ttl = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Inbox) {
		if now != nil {
			i.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Inbox) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an inbox on top of storage.
func New(storage Storage, opts ...Option) (*Inbox, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	i := &Inbox{
		name:    "inbox",
		storage: storage,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Name implements channel.Adapter.
func (i *Inbox) Name() string {
	return i.name
}

// Deliver implements channel.Adapter. The inbox owner is the message
// recipient. Redelivery of the same job is a no-op success.
func (i *Inbox) Deliver(ctx context.Context, msg channel.Message) channel.Result {
	if msg.Recipient == "" {
		return channel.Permanent(fmt.Errorf("%w: inbox owner is empty", channel.ErrInvalidRecipient))
	}

	now := i.now()
	n := Notification{
		ID:        msg.JobID,
		UserID:    msg.Recipient,
		Type:      msg.Type,
		Priority:  msg.Priority,
		Title:     msg.Subject,
		Message:   msg.Body,
		Data:      msg.Data,
		Members:   msg.Members,
		CreatedAt: now,
	}
	if i.ttl > 0 {
		exp := now.Add(i.ttl)
		n.ExpiresAt = &exp
	}

	err := i.storage.Create(ctx, n)
	switch {
	case errors.Is(err, ErrDuplicateNotification):
		return channel.Success(n.ID)
	case errors.Is(err, ErrInvalidNotification):
		return channel.Permanent(errors.Join(channel.ErrRejected, err))
	case err != nil:
		return channel.Retryable(errors.Join(channel.ErrProviderUnavailable, err))
	}

	if i.hub != nil {
		if sent := i.hub.Publish(n); sent > 0 {
			i.logger.DebugContext(ctx, "inbox notification pushed live",
				logger.JobID(n.ID),
				logger.UserID(n.UserID),
				slog.Int("subscribers", sent))
		}
	}
	return channel.Success(n.ID)
}

// Get returns one notification of userID.
func (i *Inbox) Get(ctx context.Context, userID, id string) (*Notification, error) {
	return i.storage.Get(ctx, userID, id)
}

// List returns userID's notifications, newest first.
func (i *Inbox) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	if opts.Now.IsZero() {
		opts.Now = i.now()
	}
	return i.storage.List(ctx, userID, opts)
}

// MarkRead marks notifications of userID as read.
func (i *Inbox) MarkRead(ctx context.Context, userID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return i.storage.MarkRead(ctx, userID, i.now(), ids...)
}

// MarkAllRead marks every unread notification of userID as read.
func (i *Inbox) MarkAllRead(ctx context.Context, userID string) error {
	unread, err := i.List(ctx, userID, ListOptions{OnlyUnread: true})
	if err != nil {
		return err
	}
	ids := make([]string, len(unread))
	for k, n := range unread {
		ids[k] = n.ID
	}
	return i.MarkRead(ctx, userID, ids...)
}

// Delete removes notifications of userID.
func (i *Inbox) Delete(ctx context.Context, userID string, ids ...string) error {
	return i.storage.Delete(ctx, userID, ids...)
}

// CountUnread returns the number of unread notifications of userID.
func (i *Inbox) CountUnread(ctx context.Context, userID string) (int, error) {
	return i.storage.CountUnread(ctx, userID, i.now())
}

// Subscribe opens a live feed of userID's new notifications.
func (i *Inbox) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	if i.hub == nil {
		return nil, ErrLiveDisabled
	}
	return i.hub.Subscribe(ctx, userID), nil
}
