package ratelimiter

import (
	"context"
	"log/slog"
)

// Policy applies per-channel limits and an optional per-user limit.
// Channels without an explicit limit use the default limit; with no
// default they are unlimited.
type Policy struct {
	store    Store
	channels map[string]*Bucket
	fallback *Bucket
	perUser  *Bucket
	logger   *slog.Logger
}

// PolicyOption configures a Policy.
type PolicyOption func(*policyOptions)

type policyOptions struct {
	channels map[string]Config
	fallback *Config
	perUser  *Config
	logger   *slog.Logger
}

// WithChannelLimit limits deliveries through one channel across all users.
func WithChannelLimit(channel string, cfg Config) PolicyOption {
	return func(o *policyOptions) {
		o.channels[channel] = cfg
	}
}

// WithDefaultLimit applies to channels without their own limit.
func WithDefaultLimit(cfg Config) PolicyOption {
	return func(o *policyOptions) {
		o.fallback = &cfg
	}
}

// WithUserLimit limits deliveries per user and channel.
func WithUserLimit(cfg Config) PolicyOption {
	return func(o *policyOptions) {
		o.perUser = &cfg
	}
}

// WithPolicyLogger sets the logger used to report store failures.
func WithPolicyLogger(logger *slog.Logger) PolicyOption {
	return func(o *policyOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewPolicy builds a policy whose buckets share store.
func NewPolicy(store Store, opts ...PolicyOption) (*Policy, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	o := &policyOptions{
		channels: make(map[string]Config),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	p := &Policy{
		store:    store,
		channels: make(map[string]*Bucket, len(o.channels)),
		logger:   o.logger,
	}

	for name, cfg := range o.channels {
		b, err := NewBucket(store, cfg)
		if err != nil {
			return nil, err
		}
		p.channels[name] = b
	}
	if o.fallback != nil {
		b, err := NewBucket(store, *o.fallback)
		if err != nil {
			return nil, err
		}
		p.fallback = b
	}
	if o.perUser != nil {
		b, err := NewBucket(store, *o.perUser)
		if err != nil {
			return nil, err
		}
		p.perUser = b
	}

	return p, nil
}

// ChannelKey is the bucket key for a channel-wide limit.
func ChannelKey(channel string) string {
	return "channel:" + channel
}

// UserKey is the bucket key for a per-user limit on a channel.
func UserKey(userID, channel string) string {
	return "user:" + userID + ":" + channel
}

// TryAcquire takes a token for a delivery of userID through channel.
//
// The user bucket is checked without consuming first, then the channel
// token is taken, then the user token. A user over their limit does not
// drain the shared channel bucket, and a channel denial does not cost the
// user a token. Store errors deny the delivery.
func (p *Policy) TryAcquire(ctx context.Context, channel, userID string) bool {
	userKey := ""
	if p.perUser != nil && userID != "" {
		userKey = UserKey(userID, channel)
		if !p.available(ctx, p.perUser, userKey) {
			return false
		}
	}

	if b := p.bucketFor(channel); b != nil {
		if !p.acquire(ctx, b, ChannelKey(channel)) {
			return false
		}
	}

	if userKey == "" {
		return true
	}
	return p.acquire(ctx, p.perUser, userKey)
}

func (p *Policy) bucketFor(channel string) *Bucket {
	if b, ok := p.channels[channel]; ok {
		return b
	}
	return p.fallback
}

// available reports whether key holds at least one whole token.
func (p *Policy) available(ctx context.Context, b *Bucket, key string) bool {
	res, err := b.Status(ctx, key)
	if err != nil {
		p.storeFailed(ctx, key, err)
		return false
	}
	return res.Remaining >= 1
}

func (p *Policy) acquire(ctx context.Context, b *Bucket, key string) bool {
	res, err := b.Allow(ctx, key)
	if err != nil {
		p.storeFailed(ctx, key, err)
		return false
	}
	return res.Allowed()
}

func (p *Policy) storeFailed(ctx context.Context, key string, err error) {
	p.logger.WarnContext(ctx, "rate limiter store failed, denying",
		slog.String("key", key),
		slog.String("error", err.Error()))
}
