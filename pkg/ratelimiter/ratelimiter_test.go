package ratelimiter_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/ratelimiter"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ConsumeTokens(ctx context.Context, key string, tokens int, config ratelimiter.Config) (int, time.Duration, error) {
	args := m.Called(ctx, key, tokens, config)
	return args.Int(0), args.Get(1).(time.Duration), args.Error(2)
}

func (m *MockStore) Reset(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func TestNewBucket(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))

	tests := []struct {
		name    string
		config  ratelimiter.Config
		wantErr bool
	}{
		{"valid", ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Second}, false},
		{"zero capacity", ratelimiter.Config{Capacity: 0, RefillRate: 1, RefillInterval: time.Second}, true},
		{"zero rate", ratelimiter.Config{Capacity: 1, RefillRate: 0, RefillInterval: time.Second}, true},
		{"zero interval", ratelimiter.Config{Capacity: 1, RefillRate: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := ratelimiter.NewBucket(store, tt.config)
			if tt.wantErr {
				assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
				assert.Nil(t, b)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.config, b.Config())
		})
	}

	_, err := ratelimiter.NewBucket(nil, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Second})
	assert.ErrorIs(t, err, ratelimiter.ErrStoreNil)
}

func TestBucket_TryAcquire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("capacity one with one second refill", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0), ratelimiter.WithClock(clock.Now))
		b, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Second})
		require.NoError(t, err)

		assert.True(t, b.TryAcquire(ctx, "email"))
		assert.False(t, b.TryAcquire(ctx, "email"))

		clock.Advance(500 * time.Millisecond)
		assert.False(t, b.TryAcquire(ctx, "email"))

		clock.Advance(500 * time.Millisecond)
		assert.True(t, b.TryAcquire(ctx, "email"))
	})

	t.Run("store failure denies", func(t *testing.T) {
		t.Parallel()
		store := new(MockStore)
		defer store.AssertExpectations(t)
		cfg := ratelimiter.Config{Capacity: 5, RefillRate: 1, RefillInterval: time.Second}
		store.On("ConsumeTokens", mock.Anything, "email", 1, cfg).Return(0, time.Duration(0), ratelimiter.ErrStoreUnavailable)

		b, err := ratelimiter.NewBucket(store, cfg)
		require.NoError(t, err)
		assert.False(t, b.TryAcquire(ctx, "email"))
	})
}

func TestBucket_AllowNAndStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	b, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 5, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	_, err = b.AllowN(ctx, "k", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)

	res, err := b.AllowN(ctx, "k", 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 5, res.Limit)
	assert.Equal(t, 2, res.Remaining)

	res, err = b.Status(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)

	res, err = b.AllowN(ctx, "k", 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Positive(t, res.RetryAfter)

	require.NoError(t, b.Reset(ctx, "k"))
	res, err = b.Status(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Remaining)
}

func TestPolicy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("channel specific and default limits", func(t *testing.T) {
		t.Parallel()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
		p, err := ratelimiter.NewPolicy(store,
			ratelimiter.WithChannelLimit("sms", ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour}),
			ratelimiter.WithDefaultLimit(ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour}),
			ratelimiter.WithPolicyLogger(logger),
		)
		require.NoError(t, err)

		assert.True(t, p.TryAcquire(ctx, "sms", "u1"))
		assert.False(t, p.TryAcquire(ctx, "sms", "u2"))

		assert.True(t, p.TryAcquire(ctx, "email", "u1"))
		assert.True(t, p.TryAcquire(ctx, "email", "u1"))
		assert.False(t, p.TryAcquire(ctx, "email", "u1"))
		// Default limit is per channel, not shared between channels.
		assert.True(t, p.TryAcquire(ctx, "push", "u1"))
	})

	t.Run("unlimited without default", func(t *testing.T) {
		t.Parallel()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
		p, err := ratelimiter.NewPolicy(store)
		require.NoError(t, err)

		for range 100 {
			assert.True(t, p.TryAcquire(ctx, "email", "u1"))
		}
	})

	t.Run("per user limit does not drain channel bucket", func(t *testing.T) {
		t.Parallel()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
		p, err := ratelimiter.NewPolicy(store,
			ratelimiter.WithChannelLimit("email", ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour}),
			ratelimiter.WithUserLimit(ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour}),
		)
		require.NoError(t, err)

		assert.True(t, p.TryAcquire(ctx, "email", "u1"))
		assert.False(t, p.TryAcquire(ctx, "email", "u1"))
		assert.True(t, p.TryAcquire(ctx, "email", "u2"))
		assert.False(t, p.TryAcquire(ctx, "email", "u3"))
	})

	t.Run("channel denial keeps user token", func(t *testing.T) {
		t.Parallel()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
		userCfg := ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour}
		p, err := ratelimiter.NewPolicy(store,
			ratelimiter.WithChannelLimit("email", ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour}),
			ratelimiter.WithUserLimit(userCfg),
		)
		require.NoError(t, err)

		assert.True(t, p.TryAcquire(ctx, "email", "u1"))
		for range 3 {
			assert.False(t, p.TryAcquire(ctx, "email", "u1"))
		}

		user, err := ratelimiter.NewBucket(store, userCfg)
		require.NoError(t, err)
		res, err := user.Status(ctx, ratelimiter.UserKey("u1", "email"))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Remaining, "throttled retries do not spend the user budget")
	})

	t.Run("store error fails closed", func(t *testing.T) {
		t.Parallel()
		store := new(MockStore)
		store.On("ConsumeTokens", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(0, time.Duration(0), errors.New("connection refused"))

		p, err := ratelimiter.NewPolicy(store,
			ratelimiter.WithDefaultLimit(ratelimiter.Config{Capacity: 10, RefillRate: 1, RefillInterval: time.Second}),
			ratelimiter.WithPolicyLogger(logger),
		)
		require.NoError(t, err)
		assert.False(t, p.TryAcquire(ctx, "email", "u1"))
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
		_, err := ratelimiter.NewPolicy(store, ratelimiter.WithChannelLimit("sms", ratelimiter.Config{}))
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)

		_, err = ratelimiter.NewPolicy(nil)
		assert.ErrorIs(t, err, ratelimiter.ErrStoreNil)
	})
}

func TestKeys(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "channel:email", ratelimiter.ChannelKey("email"))
	assert.Equal(t, "user:u1:email", ratelimiter.UserKey("u1", "email"))
}
