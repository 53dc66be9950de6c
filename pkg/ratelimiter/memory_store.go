package ratelimiter

import (
	"context"
	"math"
	"sync"
	"time"
)

// bucket represents a token bucket state.
type bucket struct {
	tokens     float64
	lastRefill time.Time
	lastAccess time.Time // Used by cleanup to identify stale buckets
}

// MemoryStore implements Store interface using in-memory storage.
// Bucket state is visible only within one process.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time

	cleanupInterval time.Duration
	staleAfter      time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets the cleanup interval for removing stale buckets.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStore creates a new in-memory store with optional cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		buckets:         make(map[string]*bucket),
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		staleAfter:      time.Hour,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ms)
	}

	if ms.cleanupInterval > 0 {
		go ms.cleanup()
	}

	return ms
}

// ConsumeTokens attempts to consume tokens from the bucket.
func (ms *MemoryStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (int, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	b, exists := ms.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     float64(config.Capacity),
			lastRefill: now,
		}
		ms.buckets[key] = b
	}
	b.lastAccess = now

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		refill := float64(elapsed) * float64(config.RefillRate) / float64(config.RefillInterval)
		b.tokens = math.Min(b.tokens+refill, float64(config.Capacity))
		b.lastRefill = now
	}

	remaining, wait := take(&b.tokens, tokens, config)
	return remaining, wait, nil
}

// take consumes n tokens from *tokens when available and reports the
// remaining whole tokens and the wait until n tokens would be available.
func take(tokens *float64, n int, config Config) (int, time.Duration) {
	need := float64(max(n, 1))
	if *tokens >= float64(n) {
		*tokens -= float64(n)
		return int(math.Floor(*tokens)), 0
	}

	deficit := need - *tokens
	wait := time.Duration(math.Ceil(deficit * float64(config.RefillInterval) / float64(config.RefillRate)))
	return int(math.Floor(*tokens)) - n, wait
}

func (ms *MemoryStore) Reset(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.buckets, key)
	return nil
}

// cleanup runs periodically to remove stale buckets.
func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.removeStale()
		case <-ms.stopCleanup:
			return
		}
	}
}

func (ms *MemoryStore) removeStale() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	for key, b := range ms.buckets {
		if now.Sub(b.lastAccess) > ms.staleAfter {
			delete(ms.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (ms *MemoryStore) Close() {
	ms.closeOnce.Do(func() {
		close(ms.stopCleanup)
	})
}
