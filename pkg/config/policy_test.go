package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/ratelimiter"
)

const policyYAML = `
default_channels: [inbox, email]
rate_limits:
  default: {capacity: 100, refill_rate: 100, refill_interval: 1s}
  per_user: {capacity: 5, refill_rate: 5, refill_interval: 1m}
  channels:
    email: {capacity: 10, refill_rate: 10, refill_interval: 1s}
grouping:
  comment_added: {window: 5m, dimension: post_id}
holidays:
  US: ["2025-12-25"]
templates:
  welcome:
    subject: "Welcome {{.name}}"
    body: "Glad you are here"
`

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	p, err := config.ParsePolicy([]byte(policyYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"inbox", "email"}, p.DefaultChannels)
	require.NotNil(t, p.RateLimits.Default)
	assert.Equal(t, time.Second, p.RateLimits.Default.RefillInterval)
	assert.Equal(t, ratelimiter.Config{Capacity: 10, RefillRate: 10, RefillInterval: time.Second}, p.RateLimits.Channels["email"])
	assert.Equal(t, 5*time.Minute, p.Grouping["comment_added"].Window)
	assert.Equal(t, "post_id", p.Grouping["comment_added"].Dimension)
	assert.Len(t, p.RateLimitOptions(), 3)

	cal, err := p.Calendar()
	require.NoError(t, err)
	assert.True(t, cal.IsHoliday(time.Date(2025, 12, 25, 10, 0, 0, 0, time.UTC), "US"))
	assert.False(t, cal.IsHoliday(time.Date(2025, 12, 25, 10, 0, 0, 0, time.UTC), "DE"))

	src := p.TemplateSource()
	assert.Equal(t, "Welcome {{.name}}", src["welcome"].Subject)

	_, err = ratelimiter.NewPolicy(ratelimiter.NewMemoryStore(), p.RateLimitOptions()...)
	require.NoError(t, err)
}

func TestParsePolicy_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "retries: 3\n"},
		{"zero window", "grouping:\n  x: {window: 0s}\n"},
		{"bad holiday", "holidays:\n  US: [\"25/12/2025\"]\n"},
		{"empty channel", "default_channels: [\"\"]\n"},
		{"bad duration", "grouping:\n  x: {window: soon}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.ParsePolicy([]byte(tt.yaml))
			assert.ErrorIs(t, err, config.ErrInvalidPolicy)
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	t.Parallel()

	p, err := config.LoadPolicy("")
	require.NoError(t, err)
	assert.Empty(t, p.Grouping)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyYAML), 0o600))
	p, err = config.LoadPolicy(path)
	require.NoError(t, err)
	assert.Contains(t, p.Grouping, "comment_added")

	_, err = config.LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, config.ErrInvalidPolicy)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = config.LoadPolicy(empty)
	require.NoError(t, err)
}
