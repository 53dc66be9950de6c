package pgstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/pgstore"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

func newJob(id string, p queue.Priority, state queue.State, notBefore time.Time) *queue.Job {
	return &queue.Job{
		ID:          id,
		UserID:      "u1",
		Type:        "welcome",
		Priority:    p,
		State:       state,
		MaxAttempts: 3,
		NotBefore:   notBefore,
		Payload: queue.Payload{
			Subject:    "Hi",
			Body:       "Hello",
			Data:       map[string]any{"n": "1"},
			Channels:   []string{"email", "inbox"},
			Recipients: map[string]string{"email": "u1@example.com"},
		},
		CreatedAt: notBefore,
		UpdatedAt: notBefore,
	}
}

func TestQueueRepository_InsertGet(t *testing.T) {
	t.Parallel()
	repo := pgstore.NewQueueRepository(newDB(t))
	ctx := context.Background()

	job := newJob("a", queue.PriorityHigh, queue.StateQueued, ts(0))
	require.NoError(t, repo.Insert(ctx, job))
	assert.ErrorIs(t, repo.Insert(ctx, job), queue.ErrDuplicateJob)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, job.Payload, got.Payload)
	assert.Equal(t, queue.PriorityHigh, got.Priority)
	assert.Equal(t, queue.StateQueued, got.State)
	assert.True(t, got.NotBefore.Equal(ts(0)))
	assert.Nil(t, got.LeaseExpiresAt)
	assert.Nil(t, got.Delivered)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, queue.ErrJobNotFound)
}

func TestQueueRepository_LeaseOrder(t *testing.T) {
	t.Parallel()
	repo := pgstore.NewQueueRepository(newDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newJob("low", queue.PriorityLow, queue.StateQueued, ts(0))))
	require.NoError(t, repo.Insert(ctx, newJob("crit-late", queue.PriorityCritical, queue.StateQueued, ts(2*time.Second))))
	require.NoError(t, repo.Insert(ctx, newJob("crit", queue.PriorityCritical, queue.StateQueued, ts(time.Second))))
	require.NoError(t, repo.Insert(ctx, newJob("future", queue.PriorityCritical, queue.StateScheduled, ts(time.Hour))))
	require.NoError(t, repo.Insert(ctx, newJob("due", queue.PriorityMedium, queue.StateScheduled, ts(0))))

	now := ts(time.Minute)
	jobs, err := repo.Lease(ctx, "w1", 10, now, 30*time.Second)
	require.NoError(t, err)

	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
		assert.Equal(t, queue.StateLeased, j.State)
		assert.Equal(t, "w1", j.LeaseOwner)
		require.NotNil(t, j.LeaseExpiresAt)
		assert.True(t, j.LeaseExpiresAt.Equal(now.Add(30*time.Second)))
	}
	assert.Equal(t, []string{"crit", "crit-late", "due", "low"}, ids)

	jobs, err = repo.Lease(ctx, "w2", 10, now, 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, jobs, "leased jobs are not handed out twice")
}

func TestQueueRepository_ConcurrentLease(t *testing.T) {
	t.Parallel()
	repo := pgstore.NewQueueRepository(newDB(t))
	ctx := context.Background()

	const total = 40
	for i := range total {
		require.NoError(t, repo.Insert(ctx, newJob(string(rune('A'+i)), queue.PriorityMedium, queue.StateQueued, ts(time.Duration(i)*time.Millisecond))))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]string)
		wg   sync.WaitGroup
	)
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker := string(rune('a' + w))
			for {
				jobs, err := repo.Lease(ctx, worker, 3, ts(time.Minute), time.Minute)
				if err != nil || len(jobs) == 0 {
					return
				}
				mu.Lock()
				for _, j := range jobs {
					if prev, ok := seen[j.ID]; ok {
						t.Errorf("job %s leased by %s and %s", j.ID, prev, worker)
					}
					seen[j.ID] = worker
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, total)
}

func TestQueueRepository_CompareAndSwap(t *testing.T) {
	t.Parallel()
	repo := pgstore.NewQueueRepository(newDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newJob("a", queue.PriorityMedium, queue.StateQueued, ts(0))))
	jobs, err := repo.Lease(ctx, "w1", 1, ts(time.Second), time.Minute)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	job := jobs[0]
	job.State = queue.StateDelivering
	job.Delivered = []string{"email"}

	stolen := job.Clone()
	err = repo.CompareAndSwap(ctx, stolen, queue.Condition{States: []queue.State{queue.StateLeased}, LeaseOwner: "w2"})
	assert.ErrorIs(t, err, queue.ErrStateConflict)

	require.NoError(t, repo.CompareAndSwap(ctx, job, queue.Condition{States: []queue.State{queue.StateLeased}, LeaseOwner: "w1"}))

	err = repo.CompareAndSwap(ctx, job, queue.Condition{States: []queue.State{queue.StateLeased}})
	assert.ErrorIs(t, err, queue.ErrStateConflict)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, queue.StateDelivering, got.State)
	assert.Equal(t, []string{"email"}, got.Delivered)

	missing := newJob("nope", queue.PriorityMedium, queue.StateQueued, ts(0))
	assert.ErrorIs(t, repo.CompareAndSwap(ctx, missing, queue.Condition{}), queue.ErrJobNotFound)
}

func TestQueueRepository_ReapListCount(t *testing.T) {
	t.Parallel()
	repo := pgstore.NewQueueRepository(newDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newJob("a", queue.PriorityHigh, queue.StateQueued, ts(0))))
	require.NoError(t, repo.Insert(ctx, newJob("b", queue.PriorityLow, queue.StateQueued, ts(0))))
	require.NoError(t, repo.Insert(ctx, newJob("c", queue.PriorityLow, queue.StateSucceeded, ts(0))))

	_, err := repo.Lease(ctx, "w1", 1, ts(time.Second), 10*time.Second)
	require.NoError(t, err)

	n, err := repo.ReapExpired(ctx, ts(5*time.Second))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.ReapExpired(ctx, ts(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, queue.StateQueued, got.State)
	assert.Empty(t, got.LeaseOwner)
	assert.Zero(t, got.Attempt)

	queued, err := repo.ListByState(ctx, queue.StateQueued, 0)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "b", queued[0].ID, "oldest update first")

	n, err = repo.Count(ctx, queue.CountFilter{States: queue.DepthStates})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	low := queue.PriorityLow
	n, err = repo.Count(ctx, queue.CountFilter{Priority: &low})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQueueRepository_WithQueue(t *testing.T) {
	t.Parallel()
	repo := pgstore.NewQueueRepository(newDB(t))
	ctx := context.Background()

	now := ts(0)
	q, err := queue.New(repo, queue.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, newJob("a", queue.PriorityMedium, "", time.Time{}))
	require.NoError(t, err)

	jobs, err := q.Lease(ctx, "w1", 5, now)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	_, err = q.BeginDelivery(ctx, "a", "w1")
	require.NoError(t, err)
	done, err := q.Ack(ctx, "a", queue.OutcomeSuccess, queue.WithLeaseOwner("w1"), queue.WithDelivered("email", "inbox"))
	require.NoError(t, err)
	assert.Equal(t, queue.StateSucceeded, done.State)

	depth, err := q.Depth(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, depth)
}
