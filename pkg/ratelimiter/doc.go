// Package ratelimiter provides token bucket rate limiting for channel deliveries.
//
// Buckets refill continuously at RefillRate tokens per RefillInterval and hold at
// most Capacity tokens. A denied request consumes nothing. State lives in a Store:
// MemoryStore for a single process, RedisStore when several worker processes must
// share the same buckets.
//
// # Basic Usage
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       100,
//		RefillRate:     10,
//		RefillInterval: time.Second,
//	})
//	if err != nil {
//		return err
//	}
//
//	if !limiter.TryAcquire(ctx, "channel:email") {
//		// throttled
//	}
//
// # Policies
//
// Policy combines per-channel buckets, a default bucket and an optional per-user
// bucket behind a single non-blocking TryAcquire(ctx, channel, userID) call:
//
//	store, err := ratelimiter.NewRedisStore(client)
//	if err != nil {
//		return err
//	}
//
//	policy, err := ratelimiter.NewPolicy(store,
//		ratelimiter.WithChannelLimit("sms", ratelimiter.Config{Capacity: 5, RefillRate: 1, RefillInterval: time.Second}),
//		ratelimiter.WithUserLimit(ratelimiter.Config{Capacity: 10, RefillRate: 10, RefillInterval: time.Hour}),
//	)
//
// TryAcquire never blocks and denies on store errors.
package ratelimiter
