package grouping

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring an Engine
type Option func(*Engine)

// WithConfig replaces engine tunables. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		if cfg.SweepInterval > 0 {
			e.cfg.SweepInterval = cfg.SweepInterval
		}
		if cfg.FlushTimeout > 0 {
			e.cfg.FlushTimeout = cfg.FlushTimeout
		}
		if cfg.StaleFlushAfter > 0 {
			e.cfg.StaleFlushAfter = cfg.StaleFlushAfter
		}
		if cfg.SweepBatchSize > 0 {
			e.cfg.SweepBatchSize = cfg.SweepBatchSize
		}
	}
}

// WithSummarizer overrides how digests are worded.
func WithSummarizer(fn Summarizer) Option {
	return func(e *Engine) {
		if fn != nil {
			e.summarize = fn
		}
	}
}

// WithFlushTimers enables or disables per-window flush timers.
// Without timers windows are flushed only by Sweep or Run.
func WithFlushTimers(enabled bool) Option {
	return func(e *Engine) {
		e.timers = enabled
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
