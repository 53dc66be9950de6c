package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool and pings it, retrying with a linearly growing delay.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.ConnectionString == "" {
		return nil, ErrEmptyConnectionString
	}

	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}
	if cfg.MaxOpenConns > 0 {
		connConfig.MaxConns = cfg.MaxOpenConns
	}
	connConfig.MinConns = cfg.MaxIdleConns
	if cfg.HealthCheckPeriod > 0 {
		connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	if cfg.MaxConnIdleTime > 0 {
		connConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.MaxConnLifetime > 0 {
		connConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}

	var lastErr error
	for i := range max(cfg.RetryAttempts, 1) {
		if i > 0 {
			// attempt 2 waits RetryInterval, attempt 3 waits 2x, ...
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrFailedToOpenDBConnection, ctx.Err(), lastErr)
			case <-time.After(time.Duration(i) * cfg.RetryInterval):
			}
		}

		conn, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err != nil {
			lastErr = err
			continue
		}

		// Ping catches authentication and permission problems early.
		if err := conn.Ping(ctx); err != nil {
			conn.Close()
			lastErr = err
			continue
		}

		return conn, nil
	}

	return nil, errors.Join(ErrFailedToOpenDBConnection, lastErr)
}
