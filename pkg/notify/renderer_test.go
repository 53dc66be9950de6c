package notify_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

type countingSource struct {
	notify.MapSource
	lookups atomic.Int32
}

func (s *countingSource) Template(ctx context.Context, id string) (notify.Template, error) {
	s.lookups.Add(1)
	return s.MapSource.Template(ctx, id)
}

func TestTemplateRenderer(t *testing.T) {
	t.Parallel()

	src := &countingSource{MapSource: notify.MapSource{
		"invite": {
			Subject: "{{.inviter | title}} invited you",
			Body:    "Join {{.team | upper}}{{if .note}}: {{.note}}{{end}}\n",
		},
		"broken": {Subject: "{{.x", Body: ""},
	}}
	r := notify.NewTemplateRenderer(src, 1)
	ctx := context.Background()

	out, err := r.Render(ctx, "invite", map[string]any{"inviter": "ann", "team": "core", "note": ""})
	require.NoError(t, err)
	assert.Equal(t, "Ann invited you", out.Subject)
	assert.Equal(t, "Join CORE", out.Body)

	_, err = r.Render(ctx, "invite", map[string]any{"inviter": "bob", "team": "ops", "note": "welcome"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.lookups.Load(), "parsed template is cached")

	r.Invalidate("invite")
	_, err = r.Render(ctx, "invite", map[string]any{"inviter": "bob", "team": "ops", "note": ""})
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.lookups.Load())

	_, err = r.Render(ctx, "invite", map[string]any{"inviter": "bob"})
	assert.ErrorIs(t, err, notify.ErrRenderFailed, "missing variables are errors")

	_, err = r.Render(ctx, "broken", nil)
	assert.ErrorIs(t, err, notify.ErrRenderFailed)

	_, err = r.Render(ctx, "nope", nil)
	assert.ErrorIs(t, err, notify.ErrTemplateNotFound)
}

func TestMemoryPreferences(t *testing.T) {
	t.Parallel()

	p := notify.NewMemoryPreferences()
	ctx := context.Background()

	ok, err := p.ShouldSend(ctx, "u1", "digest", "email")
	require.NoError(t, err)
	assert.True(t, ok)

	p.Suppress("u1", "digest", notify.Any)
	ok, _ = p.ShouldSend(ctx, "u1", "digest", "email")
	assert.False(t, ok)
	ok, _ = p.ShouldSend(ctx, "u1", "welcome", "email")
	assert.True(t, ok)
	ok, _ = p.ShouldSend(ctx, "u2", "digest", "email")
	assert.True(t, ok)

	p.Suppress("u1", notify.Any, "sms")
	ok, _ = p.ShouldSend(ctx, "u1", "welcome", "sms")
	assert.False(t, ok)

	p.Allow("u1", "digest", notify.Any)
	ok, _ = p.ShouldSend(ctx, "u1", "digest", "email")
	assert.True(t, ok)
}
