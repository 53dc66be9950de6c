package queue

import (
	"log/slog"
	"slices"
	"time"
)

// Option is a functional option for configuring a Queue
type Option func(*Queue)

// WithConfig replaces the queue tunables. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(q *Queue) {
		if cfg.LeaseDuration > 0 {
			q.cfg.LeaseDuration = cfg.LeaseDuration
		}
		if cfg.BackoffBase > 0 {
			q.cfg.BackoffBase = cfg.BackoffBase
		}
		if cfg.BackoffMax > 0 {
			q.cfg.BackoffMax = cfg.BackoffMax
		}
		if cfg.BackoffJitter >= 0 {
			q.cfg.BackoffJitter = cfg.BackoffJitter
		}
		if cfg.ThrottleDelay > 0 {
			q.cfg.ThrottleDelay = cfg.ThrottleDelay
		}
		if cfg.DefaultMaxAttempts > 0 {
			q.cfg.DefaultMaxAttempts = cfg.DefaultMaxAttempts
		}
		q.backoff = q.cfg.Backoff()
	}
}

// WithBackoff overrides the retry backoff policy.
func WithBackoff(b Backoff) Option {
	return func(q *Queue) {
		q.backoff = b
	}
}

// WithDeadLetters sets where exhausted and non-retryable jobs are recorded.
func WithDeadLetters(r DeadLetterRecorder) Option {
	return func(q *Queue) {
		q.deadLetters = r
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithLogger sets a custom logger for the queue
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithEnqueueHook registers a callback invoked after a job becomes
// available to workers (enqueue, retry, throttle, revive).
func WithEnqueueHook(fn func(*Job)) Option {
	return func(q *Queue) {
		if fn != nil {
			q.hooks = append(q.hooks, fn)
		}
	}
}

// AckOption customizes a single Ack call.
type AckOption func(*ackOptions)

type ackOptions struct {
	reason     string
	leaseOwner string
	delivered  []string
	delay      time.Duration
}

// WithReason records the failure reason on the job.
func WithReason(reason string) AckOption {
	return func(o *ackOptions) {
		o.reason = reason
	}
}

// WithLeaseOwner rejects the ack unless the job is still leased by workerID.
func WithLeaseOwner(workerID string) AckOption {
	return func(o *ackOptions) {
		o.leaseOwner = workerID
	}
}

// WithDelivered marks channels as delivered so later attempts skip them.
func WithDelivered(channels ...string) AckOption {
	return func(o *ackOptions) {
		for _, ch := range channels {
			if !slices.Contains(o.delivered, ch) {
				o.delivered = append(o.delivered, ch)
			}
		}
	}
}

// WithDelay overrides the requeue delay of a throttle outcome.
func WithDelay(d time.Duration) AckOption {
	return func(o *ackOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}
