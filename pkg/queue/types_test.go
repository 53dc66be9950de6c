package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

func TestPriority_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		priority queue.Priority
		valid    bool
	}{
		{"low priority", queue.PriorityLow, true},
		{"medium priority", queue.PriorityMedium, true},
		{"high priority", queue.PriorityHigh, true},
		{"critical priority", queue.PriorityCritical, true},
		{"zero", queue.Priority(0), false},
		{"between tiers", queue.Priority(37), false},
		{"negative", queue.Priority(-1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, tt.priority.Valid())
		})
	}
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	for _, p := range queue.Priorities {
		got, err := queue.ParsePriority(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := queue.ParsePriority(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, queue.PriorityHigh, got)

	got, err = queue.ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, queue.PriorityDefault, got)

	_, err = queue.ParsePriority("urgent")
	assert.ErrorIs(t, err, queue.ErrInvalidPriority)
}

func TestPriority_Text(t *testing.T) {
	t.Parallel()

	b, err := queue.PriorityCritical.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "critical", string(b))

	var p queue.Priority
	require.NoError(t, p.UnmarshalText([]byte("low")))
	assert.Equal(t, queue.PriorityLow, p)

	_, err = queue.Priority(3).MarshalText()
	assert.ErrorIs(t, err, queue.ErrInvalidPriority)
}

func TestState_Predicates(t *testing.T) {
	t.Parallel()

	assert.True(t, queue.StateSucceeded.Terminal())
	assert.True(t, queue.StateDead.Terminal())
	assert.False(t, queue.StateFailed.Terminal())
	assert.False(t, queue.StateQueued.Terminal())

	assert.True(t, queue.StateLeased.Active())
	assert.True(t, queue.StateDelivering.Active())
	assert.False(t, queue.StateQueued.Active())
}

func TestJob_Clone(t *testing.T) {
	t.Parallel()

	exp := time.Now()
	job := &queue.Job{
		ID: "j1",
		Payload: queue.Payload{
			Channels:   []string{"email"},
			Data:       map[string]any{"k": "v"},
			Recipients: map[string]string{"email": "a@example.com"},
		},
		Delivered:      []string{"email"},
		LeaseExpiresAt: &exp,
	}

	c := job.Clone()
	c.Payload.Channels[0] = "sms"
	c.Payload.Data["k"] = "changed"
	c.Payload.Recipients["email"] = "b@example.com"
	c.Delivered[0] = "push"
	*c.LeaseExpiresAt = exp.Add(time.Hour)

	assert.Equal(t, "email", job.Payload.Channels[0])
	assert.Equal(t, "v", job.Payload.Data["k"])
	assert.Equal(t, "a@example.com", job.Payload.Recipients["email"])
	assert.Equal(t, "email", job.Delivered[0])
	assert.True(t, job.LeaseExpiresAt.Equal(exp))

	assert.Nil(t, (*queue.Job)(nil).Clone())
}

func TestJob_PendingChannels(t *testing.T) {
	t.Parallel()

	job := &queue.Job{
		Payload:   queue.Payload{Channels: []string{"email", "sms", "in_app"}},
		Delivered: []string{"sms"},
	}
	assert.Equal(t, []string{"email", "in_app"}, job.PendingChannels())
}

func TestPayload_Recipient(t *testing.T) {
	t.Parallel()

	p := queue.Payload{Recipients: map[string]string{"email": "a@example.com", "sms": ""}}
	assert.Equal(t, "a@example.com", p.Recipient("email", "user-1"))
	assert.Equal(t, "user-1", p.Recipient("sms", "user-1"))
	assert.Equal(t, "user-1", p.Recipient("push", "user-1"))
}

func TestLess(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	critical := &queue.Job{ID: "c", Priority: queue.PriorityCritical, NotBefore: base, CreatedAt: base.Add(time.Second)}
	low := &queue.Job{ID: "l", Priority: queue.PriorityLow, NotBefore: base, CreatedAt: base}
	early := &queue.Job{ID: "e", Priority: queue.PriorityLow, NotBefore: base.Add(-time.Minute), CreatedAt: base.Add(time.Hour)}
	older := &queue.Job{ID: "o", Priority: queue.PriorityLow, NotBefore: base, CreatedAt: base.Add(-time.Hour)}

	assert.True(t, queue.Less(critical, low))
	assert.False(t, queue.Less(low, critical))
	assert.True(t, queue.Less(early, low))
	assert.True(t, queue.Less(older, low))
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", queue.OutcomeSuccess.String())
	assert.Equal(t, "retry", queue.OutcomeRetry.String())
	assert.Equal(t, "dead", queue.OutcomeDead.String())
	assert.Equal(t, "throttle", queue.OutcomeThrottle.String())
}
