// Package redis connects to Redis with go-redis.
//
// Connect retries the initial ping according to Config and returns a ready
// *redis.Client. The client backs the shared token buckets of
// ratelimiter.RedisStore and the cross-process wake-up channel used by the
// notifyd service. Healthcheck wraps a ping for readiness probes.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
