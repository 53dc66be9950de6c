package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockDeadLetterRecorder is a mock implementation of DeadLetterRecorder
type MockDeadLetterRecorder struct {
	mock.Mock
}

func (m *MockDeadLetterRecorder) Record(ctx context.Context, job *queue.Job, reason string) error {
	args := m.Called(ctx, job, reason)
	return args.Error(0)
}

type recorder struct {
	mu   sync.Mutex
	jobs []*queue.Job
}

func (r *recorder) Record(_ context.Context, job *queue.Job, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func newJob(id string, p queue.Priority) *queue.Job {
	return &queue.Job{
		ID:       id,
		UserID:   "user-1",
		Type:     "comment",
		Priority: p,
		Payload:  queue.Payload{Subject: "hi", Channels: []string{"email"}},
	}
}

func newQueue(t *testing.T, clock *testClock, opts ...queue.Option) *queue.Queue {
	t.Helper()

	base := []queue.Option{
		queue.WithClock(clock.Now),
		queue.WithBackoff(queue.Backoff{Base: time.Second, Max: time.Minute}),
		queue.WithConfig(queue.Config{LeaseDuration: time.Minute, ThrottleDelay: 2 * time.Second, DefaultMaxAttempts: 3}),
	}
	q, err := queue.New(queue.NewMemoryStorage(), append(base, opts...)...)
	require.NoError(t, err)
	return q
}

func TestNew(t *testing.T) {
	t.Parallel()

	q, err := queue.New(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)
	assert.Nil(t, q)

	q, err = queue.New(queue.NewMemoryStorage())
	require.NoError(t, err)
	assert.Equal(t, queue.DefaultConfig(), q.Config())
}

func TestQueue_Enqueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("queued when due", func(t *testing.T) {
		t.Parallel()
		clock := newTestClock()
		q := newQueue(t, clock)

		job, err := q.Enqueue(ctx, newJob("a", queue.PriorityHigh))
		require.NoError(t, err)
		assert.Equal(t, queue.StateQueued, job.State)
		assert.Equal(t, 0, job.Attempt)
		assert.Equal(t, 3, job.MaxAttempts)
		assert.True(t, job.NotBefore.Equal(clock.Now()))
		assert.True(t, job.CreatedAt.Equal(clock.Now()))
	})

	t.Run("scheduled when not before is in the future", func(t *testing.T) {
		t.Parallel()
		clock := newTestClock()
		q := newQueue(t, clock)

		j := newJob("a", queue.PriorityLow)
		j.NotBefore = clock.Now().Add(time.Hour)
		job, err := q.Enqueue(ctx, j)
		require.NoError(t, err)
		assert.Equal(t, queue.StateScheduled, job.State)
	})

	t.Run("default priority", func(t *testing.T) {
		t.Parallel()
		q := newQueue(t, newTestClock())

		job, err := q.Enqueue(ctx, newJob("a", 0))
		require.NoError(t, err)
		assert.Equal(t, queue.PriorityDefault, job.Priority)
	})

	t.Run("duplicate id", func(t *testing.T) {
		t.Parallel()
		q := newQueue(t, newTestClock())

		_, err := q.Enqueue(ctx, newJob("a", queue.PriorityLow))
		require.NoError(t, err)
		_, err = q.Enqueue(ctx, newJob("a", queue.PriorityHigh))
		assert.ErrorIs(t, err, queue.ErrDuplicateJob)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		q := newQueue(t, newTestClock())

		_, err := q.Enqueue(ctx, nil)
		assert.ErrorIs(t, err, queue.ErrJobNil)

		_, err = q.Enqueue(ctx, newJob("", queue.PriorityLow))
		assert.ErrorIs(t, err, queue.ErrInvalidJob)

		j := newJob("a", queue.PriorityLow)
		j.Payload.Channels = nil
		_, err = q.Enqueue(ctx, j)
		assert.ErrorIs(t, err, queue.ErrInvalidJob)

		_, err = q.Enqueue(ctx, newJob("b", queue.Priority(33)))
		assert.ErrorIs(t, err, queue.ErrInvalidPriority)
	})

	t.Run("does not keep caller's job", func(t *testing.T) {
		t.Parallel()
		q := newQueue(t, newTestClock())

		j := newJob("a", queue.PriorityLow)
		_, err := q.Enqueue(ctx, j)
		require.NoError(t, err)
		j.Payload.Channels[0] = "sms"

		stored, err := q.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"email"}, stored.Payload.Channels)
	})
}

func TestQueue_LeaseOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("critical preempts low with same not before", func(t *testing.T) {
		t.Parallel()
		clock := newTestClock()
		q := newQueue(t, clock)

		_, err := q.Enqueue(ctx, newJob("low", queue.PriorityLow))
		require.NoError(t, err)
		clock.Advance(time.Millisecond)
		crit := newJob("crit", queue.PriorityCritical)
		crit.NotBefore = clock.Now().Add(-time.Millisecond)
		_, err = q.Enqueue(ctx, crit)
		require.NoError(t, err)

		jobs, err := q.Lease(ctx, "w1", 1, clock.Now())
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "crit", jobs[0].ID)
		assert.Equal(t, queue.StateLeased, jobs[0].State)
		assert.Equal(t, "w1", jobs[0].LeaseOwner)
		require.NotNil(t, jobs[0].LeaseExpiresAt)
		assert.True(t, jobs[0].LeaseExpiresAt.Equal(clock.Now().Add(time.Minute)))
	})

	t.Run("fifo within a priority tier", func(t *testing.T) {
		t.Parallel()
		clock := newTestClock()
		q := newQueue(t, clock)
		start := clock.Now()

		for i := range 3 {
			j := newJob(fmt.Sprintf("j%d", i), queue.PriorityMedium)
			j.NotBefore = start
			_, err := q.Enqueue(ctx, j)
			require.NoError(t, err)
			clock.Advance(time.Second)
		}

		jobs, err := q.Lease(ctx, "w1", 10, clock.Now())
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, "j0", jobs[0].ID)
		assert.Equal(t, "j1", jobs[1].ID)
		assert.Equal(t, "j2", jobs[2].ID)
	})

	t.Run("earlier not before wins within tier", func(t *testing.T) {
		t.Parallel()
		clock := newTestClock()
		q := newQueue(t, clock)

		a := newJob("a", queue.PriorityMedium)
		a.NotBefore = clock.Now().Add(-time.Second)
		b := newJob("b", queue.PriorityMedium)
		b.NotBefore = clock.Now().Add(-time.Minute)
		_, err := q.Enqueue(ctx, a)
		require.NoError(t, err)
		_, err = q.Enqueue(ctx, b)
		require.NoError(t, err)

		jobs, err := q.Lease(ctx, "w1", 1, clock.Now())
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "b", jobs[0].ID)
	})

	t.Run("scheduled job becomes eligible once due", func(t *testing.T) {
		t.Parallel()
		clock := newTestClock()
		q := newQueue(t, clock)

		j := newJob("later", queue.PriorityHigh)
		j.NotBefore = clock.Now().Add(time.Hour)
		_, err := q.Enqueue(ctx, j)
		require.NoError(t, err)

		jobs, err := q.Lease(ctx, "w1", 5, clock.Now())
		require.NoError(t, err)
		assert.Empty(t, jobs)

		clock.Advance(time.Hour)
		jobs, err = q.Lease(ctx, "w1", 5, clock.Now())
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "later", jobs[0].ID)
	})

	t.Run("empty queue returns empty batch", func(t *testing.T) {
		t.Parallel()
		clock := newTestClock()
		q := newQueue(t, clock)

		jobs, err := q.Lease(ctx, "w1", 5, clock.Now())
		require.NoError(t, err)
		assert.Empty(t, jobs)

		_, err = q.Lease(ctx, "", 5, clock.Now())
		assert.ErrorIs(t, err, queue.ErrFailedToLease)
	})
}

func TestQueue_LeaseExclusivity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	q := newQueue(t, clock)

	const total = 200
	for i := range total {
		_, err := q.Enqueue(ctx, newJob(fmt.Sprintf("job-%03d", i), queue.Priorities[i%len(queue.Priorities)]))
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]string)
		dups []string
		wg   sync.WaitGroup
	)

	for w := range 10 {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			for {
				jobs, err := q.Lease(ctx, worker, 7, clock.Now())
				if err != nil || len(jobs) == 0 {
					return
				}
				mu.Lock()
				for _, j := range jobs {
					if _, ok := seen[j.ID]; ok {
						dups = append(dups, j.ID)
					}
					seen[j.ID] = worker
				}
				mu.Unlock()
			}
		}(fmt.Sprintf("w%d", w))
	}
	wg.Wait()

	assert.Empty(t, dups)
	assert.Len(t, seen, total)
}

func TestQueue_AckSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	q := newQueue(t, clock)

	_, err := q.Enqueue(ctx, newJob("a", queue.PriorityHigh))
	require.NoError(t, err)
	_, err = q.Lease(ctx, "w1", 1, clock.Now())
	require.NoError(t, err)

	job, err := q.Ack(ctx, "a", queue.OutcomeSuccess, queue.WithLeaseOwner("w1"), queue.WithDelivered("email"))
	require.NoError(t, err)
	assert.Equal(t, queue.StateSucceeded, job.State)
	assert.Empty(t, job.LeaseOwner)
	assert.Nil(t, job.LeaseExpiresAt)
	assert.Equal(t, []string{"email"}, job.Delivered)

	_, err = q.Ack(ctx, "a", queue.OutcomeSuccess)
	assert.ErrorIs(t, err, queue.ErrLeaseLost)
}

func TestQueue_RetryUntilDead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	dl := &recorder{}
	q := newQueue(t, clock, queue.WithDeadLetters(dl))

	_, err := q.Enqueue(ctx, newJob("a", queue.PriorityMedium))
	require.NoError(t, err)

	var job *queue.Job
	for i := 1; i <= 3; i++ {
		jobs, err := q.Lease(ctx, "w1", 1, clock.Now())
		require.NoError(t, err)
		require.Len(t, jobs, 1, "attempt %d", i)

		job, err = q.Ack(ctx, "a", queue.OutcomeRetry, queue.WithReason("timeout"))
		require.NoError(t, err)
		assert.Equal(t, i, job.Attempt)

		if i < 3 {
			assert.Equal(t, queue.StateQueued, job.State)
			assert.True(t, job.NotBefore.Equal(clock.Now().Add(time.Second<<i)), "backoff for attempt %d", i)
			clock.Advance(time.Second << i)
		}
	}

	assert.Equal(t, queue.StateDead, job.State)
	assert.Equal(t, 3, job.Attempt)
	assert.Equal(t, "timeout", job.LastError)
	assert.Equal(t, 1, dl.Len())

	jobs, err := q.Lease(ctx, "w1", 1, clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestQueue_AckDead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	dl := new(MockDeadLetterRecorder)
	defer dl.AssertExpectations(t)
	dl.On("Record", mock.Anything, mock.MatchedBy(func(j *queue.Job) bool {
		return j.ID == "a" && j.State == queue.StateFailed && j.Attempt == 0
	}), "invalid recipient").Return(nil).Once()

	q := newQueue(t, clock, queue.WithDeadLetters(dl))
	_, err := q.Enqueue(ctx, newJob("a", queue.PriorityMedium))
	require.NoError(t, err)
	_, err = q.Lease(ctx, "w1", 1, clock.Now())
	require.NoError(t, err)

	job, err := q.Ack(ctx, "a", queue.OutcomeDead, queue.WithReason("invalid recipient"))
	require.NoError(t, err)
	assert.Equal(t, queue.StateDead, job.State)
	assert.Equal(t, 0, job.Attempt)
}

func TestQueue_DeadLetterFailureRecovery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	dl := new(MockDeadLetterRecorder)
	defer dl.AssertExpectations(t)
	dl.On("Record", mock.Anything, mock.Anything, "bounced").Return(errors.New("mongo down")).Once()
	dl.On("Record", mock.Anything, mock.Anything, "bounced").Return(nil).Once()

	q := newQueue(t, clock, queue.WithDeadLetters(dl))
	_, err := q.Enqueue(ctx, newJob("a", queue.PriorityMedium))
	require.NoError(t, err)
	_, err = q.Lease(ctx, "w1", 1, clock.Now())
	require.NoError(t, err)

	job, err := q.Ack(ctx, "a", queue.OutcomeDead, queue.WithReason("bounced"))
	assert.ErrorIs(t, err, queue.ErrFailedToDeadLetter)
	require.NotNil(t, job)
	assert.Equal(t, queue.StateFailed, job.State)

	stored, err := q.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, queue.StateFailed, stored.State)

	n, err := q.RecoverFailed(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err = q.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, queue.StateDead, stored.State)
}

func TestQueue_Throttle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	q := newQueue(t, clock)

	_, err := q.Enqueue(ctx, newJob("a", queue.PriorityMedium))
	require.NoError(t, err)

	for range 5 {
		jobs, err := q.Lease(ctx, "w1", 1, clock.Now())
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		job, err := q.Ack(ctx, "a", queue.OutcomeThrottle)
		require.NoError(t, err)
		assert.Equal(t, queue.StateQueued, job.State)
		assert.Equal(t, 0, job.Attempt)
		assert.True(t, job.NotBefore.Equal(clock.Now().Add(2*time.Second)))
		clock.Advance(2 * time.Second)
	}

	_, err = q.Lease(ctx, "w1", 1, clock.Now())
	require.NoError(t, err)
	job, err := q.Ack(ctx, "a", queue.OutcomeThrottle, queue.WithDelay(10*time.Second))
	require.NoError(t, err)
	assert.True(t, job.NotBefore.Equal(clock.Now().Add(10*time.Second)))
}

func TestQueue_DeliveredCarriedAcrossRetries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	q := newQueue(t, clock)

	j := newJob("a", queue.PriorityMedium)
	j.Payload.Channels = []string{"email", "sms"}
	_, err := q.Enqueue(ctx, j)
	require.NoError(t, err)

	_, err = q.Lease(ctx, "w1", 1, clock.Now())
	require.NoError(t, err)
	job, err := q.Ack(ctx, "a", queue.OutcomeRetry, queue.WithDelivered("email"))
	require.NoError(t, err)
	assert.Equal(t, []string{"sms"}, job.PendingChannels())

	clock.Advance(time.Minute)
	leased, err := q.Lease(ctx, "w1", 1, clock.Now())
	require.NoError(t, err)
	require.Len(t, leased, 1)
	assert.Equal(t, []string{"email"}, leased[0].Delivered)
}

func TestQueue_ReapExpiredLeases(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	q := newQueue(t, clock)

	_, err := q.Enqueue(ctx, newJob("a", queue.PriorityMedium))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, newJob("b", queue.PriorityMedium))
	require.NoError(t, err)

	jobs, err := q.Lease(ctx, "w1", 2, clock.Now())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	_, err = q.BeginDelivery(ctx, "b", "w1")
	require.NoError(t, err)

	n, err := q.ReapExpiredLeases(ctx, clock.Now().Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	clock.Advance(2 * time.Minute)
	n, err = q.ReapExpiredLeases(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{"a", "b"} {
		job, err := q.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, queue.StateQueued, job.State)
		assert.Equal(t, 0, job.Attempt)
		assert.Empty(t, job.LeaseOwner)
	}

	_, err = q.Ack(ctx, "a", queue.OutcomeSuccess, queue.WithLeaseOwner("w1"))
	assert.ErrorIs(t, err, queue.ErrLeaseLost)

	jobs, err = q.Lease(ctx, "w2", 2, clock.Now())
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	_, err = q.Ack(ctx, "a", queue.OutcomeSuccess, queue.WithLeaseOwner("w1"))
	assert.ErrorIs(t, err, queue.ErrLeaseLost)
	_, err = q.Ack(ctx, "a", queue.OutcomeSuccess, queue.WithLeaseOwner("w2"))
	assert.NoError(t, err)
}

func TestQueue_BeginDelivery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	q := newQueue(t, clock)

	_, err := q.Enqueue(ctx, newJob("a", queue.PriorityMedium))
	require.NoError(t, err)

	_, err = q.BeginDelivery(ctx, "a", "w1")
	assert.ErrorIs(t, err, queue.ErrLeaseLost)

	_, err = q.Lease(ctx, "w1", 1, clock.Now())
	require.NoError(t, err)

	_, err = q.BeginDelivery(ctx, "a", "w2")
	assert.ErrorIs(t, err, queue.ErrLeaseLost)

	job, err := q.BeginDelivery(ctx, "a", "w1")
	require.NoError(t, err)
	assert.Equal(t, queue.StateDelivering, job.State)

	job, err = q.Ack(ctx, "a", queue.OutcomeSuccess, queue.WithLeaseOwner("w1"))
	require.NoError(t, err)
	assert.Equal(t, queue.StateSucceeded, job.State)

	_, err = q.BeginDelivery(ctx, "missing", "w1")
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
}

func TestQueue_Revive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	q := newQueue(t, clock)

	_, err := q.Enqueue(ctx, newJob("a", queue.PriorityMedium))
	require.NoError(t, err)

	_, err = q.Revive(ctx, "a")
	assert.ErrorIs(t, err, queue.ErrNotDead)

	for range 3 {
		_, err = q.Lease(ctx, "w1", 1, clock.Now())
		require.NoError(t, err)
		_, err = q.Ack(ctx, "a", queue.OutcomeRetry)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	job, err := q.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, queue.StateDead, job.State)

	clock.Advance(time.Hour)
	job, err = q.Revive(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, queue.StateQueued, job.State)
	assert.Equal(t, 0, job.Attempt)
	assert.True(t, job.NotBefore.Equal(clock.Now()))

	jobs, err := q.Lease(ctx, "w1", 1, clock.Now())
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestQueue_Depth(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	q := newQueue(t, clock)

	for i, p := range []queue.Priority{queue.PriorityLow, queue.PriorityLow, queue.PriorityHigh, queue.PriorityCritical} {
		_, err := q.Enqueue(ctx, newJob(fmt.Sprintf("j%d", i), p))
		require.NoError(t, err)
	}

	depth, err := q.Depth(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, depth)

	low := queue.PriorityLow
	depth, err = q.Depth(ctx, &low)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	jobs, err := q.Lease(ctx, "w1", 1, clock.Now())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	_, err = q.Ack(ctx, jobs[0].ID, queue.OutcomeSuccess)
	require.NoError(t, err)

	depth, err = q.Depth(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	bad := queue.Priority(1)
	_, err = q.Depth(ctx, &bad)
	assert.ErrorIs(t, err, queue.ErrInvalidPriority)
}

func TestQueue_EnqueueHook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()

	var mu sync.Mutex
	var calls []string
	q := newQueue(t, clock, queue.WithEnqueueHook(func(j *queue.Job) {
		mu.Lock()
		defer mu.Unlock()
		if j != nil {
			calls = append(calls, j.ID)
		}
	}))

	_, err := q.Enqueue(ctx, newJob("a", queue.PriorityMedium))
	require.NoError(t, err)
	_, err = q.Lease(ctx, "w1", 1, clock.Now())
	require.NoError(t, err)
	_, err = q.Ack(ctx, "a", queue.OutcomeThrottle)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "a"}, calls)
}

func TestQueue_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := newQueue(t, newTestClock())
	_, err := q.Enqueue(ctx, newJob("a", queue.PriorityMedium))
	assert.ErrorIs(t, err, context.Canceled)
}
