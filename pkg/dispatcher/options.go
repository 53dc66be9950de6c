package dispatcher

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Pool
type Option func(*Pool)

// WithConfig replaces the pool tunables. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(p *Pool) {
		if cfg.Workers > 0 {
			p.cfg.Workers = cfg.Workers
		}
		if cfg.BatchSize > 0 {
			p.cfg.BatchSize = cfg.BatchSize
		}
		if cfg.IdleMin > 0 {
			p.cfg.IdleMin = cfg.IdleMin
		}
		if cfg.IdleMax > 0 {
			p.cfg.IdleMax = cfg.IdleMax
		}
		if cfg.DeliveryTimeout > 0 {
			p.cfg.DeliveryTimeout = cfg.DeliveryTimeout
		}
		if cfg.ReapInterval > 0 {
			p.cfg.ReapInterval = cfg.ReapInterval
		}
		if cfg.RecoverBatch > 0 {
			p.cfg.RecoverBatch = cfg.RecoverBatch
		}
		if cfg.NodeID != "" {
			p.cfg.NodeID = cfg.NodeID
		}
	}
}

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.cfg.Workers = n
		}
	}
}

// WithDeliveryTimeout bounds a single adapter call.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.cfg.DeliveryTimeout = d
		}
	}
}

// WithClock overrides the time used for leasing and reaping.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets a custom logger for the pool
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}
