package queue

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes retry delays: min(Base * 2^attempt, Max) plus up to
// Jitter (a fraction, 0.2 = 20%) of random extra delay.
// Safe for concurrent use.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	// Rand returns a value in [0,1). Nil uses math/rand.
	Rand func() float64
}

// Delay returns the delay before the given attempt becomes eligible again.
// Attempt is the attempt count after the failure is recorded.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	base := b.Base
	if base <= 0 {
		base = 5 * time.Second
	}
	maxDelay := b.Max
	if maxDelay <= 0 {
		maxDelay = 30 * time.Minute
	}

	interval := float64(base) * math.Pow(2, float64(attempt))
	if interval > float64(maxDelay) || math.IsInf(interval, 0) {
		interval = float64(maxDelay)
	}

	if b.Jitter > 0 {
		r := b.Rand
		if r == nil {
			r = rand.Float64
		}
		interval += interval * b.Jitter * r()
	}

	return time.Duration(interval)
}
