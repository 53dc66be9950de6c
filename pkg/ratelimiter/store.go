package ratelimiter

import (
	"context"
	"time"
)

// Store defines the interface for rate limit storage backends.
// Implementations must be safe for use by many workers at once and, for
// multi-process deployments, keep bucket state in a shared location.
type Store interface {
	// ConsumeTokens atomically refills the bucket and takes the requested
	// tokens if enough are available. Tokens are not taken on denial.
	// A negative remaining value means the request was denied; retryAfter
	// is the wait until the request could succeed.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, retryAfter time.Duration, err error)

	// Reset clears the rate limit state for the given key.
	Reset(ctx context.Context, key string) error
}
