package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript refills and consumes a bucket atomically using the
// server clock, so every worker process observes the same bucket.
//
// KEYS[1] bucket key
// ARGV[1] capacity, ARGV[2] tokens per millisecond, ARGV[3] requested, ARGV[4] ttl ms
// Returns {remaining, retry_after_ms}.
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local requested = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end
if now > ts then
  tokens = math.min(capacity, tokens + (now - ts) * rate)
  ts = now
end

local allowed = tokens >= requested
if allowed then
  tokens = tokens - requested
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(ts))
redis.call('PEXPIRE', KEYS[1], ttl)

local remaining = math.floor(tokens)
local wait = 0
if not allowed then
  remaining = remaining - requested
  local need = math.max(requested, 1) - tokens
  wait = math.ceil(need / rate)
end
return {remaining, wait}
`)

// RedisStore implements Store on top of Redis. Bucket state lives on the
// server and is shared by all worker processes.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the prefix for bucket keys.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(rs *RedisStore) {
		rs.prefix = prefix
	}
}

// NewRedisStore creates a store using client.
func NewRedisStore(client redis.Cmdable, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, ErrStoreNil
	}

	rs := &RedisStore{
		client: client,
		prefix: "notifykit:ratelimit:",
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs, nil
}

// ConsumeTokens implements Store.
func (rs *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (int, time.Duration, error) {
	perMs := config.tokensPerNanosecond() * float64(time.Millisecond)
	// Keep the bucket around long enough to refill completely.
	ttl := time.Duration(float64(config.Capacity)/config.tokensPerNanosecond()) + time.Minute

	res, err := consumeScript.Run(ctx, rs.client, []string{rs.prefix + key},
		config.Capacity,
		strconv.FormatFloat(perMs, 'f', -1, 64),
		tokens,
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, 0, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, res)
	}

	return int(res[0]), time.Duration(res[1]) * time.Millisecond, nil
}

// Reset implements Store.
func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
