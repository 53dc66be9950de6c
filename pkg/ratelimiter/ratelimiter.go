package ratelimiter

import (
	"context"
	"fmt"
)

// Bucket is one token bucket configuration applied to any number of keys
// held in a Store.
type Bucket struct {
	store  Store
	config Config
}

// NewBucket validates cfg and binds it to store.
func NewBucket(store Store, config Config) (*Bucket, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &Bucket{
		store:  store,
		config: config,
	}, nil
}

// Config returns the bucket configuration.
func (tb *Bucket) Config() Config {
	return tb.config
}

// Allow takes one token for key.
func (tb *Bucket) Allow(ctx context.Context, key string) (*Result, error) {
	return tb.AllowN(ctx, key, 1)
}

// AllowN takes n tokens for key. A denied request consumes nothing.
func (tb *Bucket) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}
	return tb.consume(ctx, key, n)
}

// TryAcquire takes one token for key and reports whether it succeeded.
// It never blocks. Store errors deny the request.
func (tb *Bucket) TryAcquire(ctx context.Context, key string) bool {
	res, err := tb.Allow(ctx, key)
	if err != nil {
		return false
	}
	return res.Allowed()
}

// Status returns the current state without consuming tokens.
func (tb *Bucket) Status(ctx context.Context, key string) (*Result, error) {
	return tb.consume(ctx, key, 0)
}

func (tb *Bucket) consume(ctx context.Context, key string, n int) (*Result, error) {
	remaining, retryAfter, err := tb.store.ConsumeTokens(ctx, key, n, tb.config)
	if err != nil {
		return nil, err
	}
	return &Result{Limit: tb.config.Capacity, Remaining: remaining, RetryAfter: retryAfter}, nil
}

// Reset refills the bucket for key.
func (tb *Bucket) Reset(ctx context.Context, key string) error {
	return tb.store.Reset(ctx, key)
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}
