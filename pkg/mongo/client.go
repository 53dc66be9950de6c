package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// New connects a client and pings the primary, retrying RetryAttempts times.
func New(ctx context.Context, cfg Config) (*mongo.Client, error) {
	if cfg.ConnectionURL == "" {
		return nil, ErrNoURL
	}

	opts := options.Client().
		ApplyURI(cfg.ConnectionURL).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetRetryWrites(cfg.RetryWrites).
		SetRetryReads(cfg.RetryReads)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.MaxConnIdleTime > 0 {
		opts.SetMaxConnIdleTime(cfg.MaxConnIdleTime)
	}

	var lastErr error
	for i := range max(cfg.RetryAttempts, 1) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrConnect, ctx.Err(), lastErr)
			case <-time.After(cfg.RetryInterval):
			}
		}

		client, err := mongo.Connect(opts)
		if err != nil {
			lastErr = err
			continue
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			lastErr = err
			continue
		}
		return client, nil
	}

	return nil, errors.Join(ErrConnect, lastErr)
}

// NewWithDatabase connects a client and returns the named database.
func NewWithDatabase(ctx context.Context, cfg Config, database string) (*mongo.Database, error) {
	client, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client.Database(database), nil
}
