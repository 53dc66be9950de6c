package pgstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/grouping"
	"github.com/dmitrymomot/notifykit/pkg/pgstore"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

func member(id string) *queue.Job {
	j := newJob(id, queue.PriorityMedium, queue.StatePending, ts(0))
	j.Type = "comment_added"
	j.GroupKey = "u1|comment_added"
	return j
}

func openWindow(id string, start time.Time, first *queue.Job) *grouping.Window {
	return &grouping.Window{
		ID:          id,
		GroupKey:    "u1|comment_added",
		UserID:      "u1",
		Type:        "comment_added",
		WindowStart: start,
		WindowEnd:   start.Add(5 * time.Minute),
		Members:     []queue.Job{*first},
		State:       grouping.StateOpen,
		CreatedAt:   start,
		UpdatedAt:   start,
	}
}

func TestWindowStore_OpenAppend(t *testing.T) {
	t.Parallel()
	store := pgstore.NewWindowStore(newDB(t))
	ctx := context.Background()

	_, err := store.Append(ctx, "u1|comment_added", member("m0"), ts(0))
	assert.ErrorIs(t, err, grouping.ErrWindowNotFound)

	require.NoError(t, store.Open(ctx, openWindow("w1", ts(0), member("m1"))))
	assert.ErrorIs(t, store.Open(ctx, openWindow("w2", ts(0), member("m9"))), grouping.ErrWindowExists,
		"one open window per group key")

	w, err := store.Append(ctx, "u1|comment_added", member("m2"), ts(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, w.MemberIDs())
	assert.True(t, w.UpdatedAt.Equal(ts(time.Minute)))

	w, err = store.Append(ctx, "u1|comment_added", member("m2"), ts(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, w.Members, 2, "duplicate member is a no-op")

	w, err = store.Append(ctx, "u1|comment_added", member("m3"), ts(5*time.Minute))
	assert.ErrorIs(t, err, grouping.ErrWindowExpired)
	require.NotNil(t, w)
	assert.Equal(t, "w1", w.ID)
	assert.Len(t, w.Members, 2)

	open, err := store.FindOpen(ctx, "u1|comment_added")
	require.NoError(t, err)
	assert.Equal(t, "w1", open.ID)
	assert.Equal(t, "Hello", open.Members[0].Payload.Body)

	byMember, err := store.ByMember(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, "w1", byMember.ID)

	_, err = store.ByMember(ctx, "m3")
	assert.ErrorIs(t, err, grouping.ErrWindowNotFound)
}

func TestWindowStore_TransitionPending(t *testing.T) {
	t.Parallel()
	store := pgstore.NewWindowStore(newDB(t))
	ctx := context.Background()

	require.NoError(t, store.Open(ctx, openWindow("w1", ts(0), member("m1"))))

	pending, err := store.Pending(ctx, ts(time.Minute), ts(0), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = store.Pending(ctx, ts(5*time.Minute), ts(0), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []string{"m1"}, pending[0].MemberIDs())

	w, err := store.Transition(ctx, "w1", grouping.StateOpen, grouping.StateFlushing, "", ts(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, grouping.StateFlushing, w.State)

	_, err = store.Transition(ctx, "w1", grouping.StateOpen, grouping.StateFlushing, "", ts(5*time.Minute))
	assert.ErrorIs(t, err, grouping.ErrStateConflict)
	_, err = store.Transition(ctx, "missing", grouping.StateOpen, grouping.StateFlushing, "", ts(0))
	assert.ErrorIs(t, err, grouping.ErrWindowNotFound)

	_, err = store.FindOpen(ctx, "u1|comment_added")
	assert.ErrorIs(t, err, grouping.ErrWindowNotFound)
	require.NoError(t, store.Open(ctx, openWindow("w2", ts(6*time.Minute), member("m2"))),
		"a flushing window frees its group key")

	pending, err = store.Pending(ctx, ts(6*time.Minute), ts(5*time.Minute), 0)
	require.NoError(t, err)
	assert.Empty(t, pending, "recent flushes are not stale")

	pending, err = store.Pending(ctx, ts(6*time.Minute), ts(10*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "w1", pending[0].ID)

	w, err = store.Transition(ctx, "w1", grouping.StateFlushing, grouping.StateFlushed, "digest-1", ts(7*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "digest-1", w.DigestJobID)

	got, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, grouping.StateFlushed, got.State)
	assert.Equal(t, "digest-1", got.DigestJobID)
}

func TestWindowStore_WithEngine(t *testing.T) {
	t.Parallel()
	db := newDB(t)
	ctx := context.Background()

	now := ts(0)
	clock := func() time.Time { return now }

	q, err := queue.New(pgstore.NewQueueRepository(db), queue.WithClock(clock))
	require.NoError(t, err)
	engine, err := grouping.New(pgstore.NewWindowStore(db), q,
		grouping.WithClock(clock),
		grouping.WithFlushTimers(false))
	require.NoError(t, err)
	defer engine.Close()

	rule := grouping.Rule{Window: 5 * time.Minute}
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := engine.Offer(ctx, member(id), rule)
		require.NoError(t, err)
		now = now.Add(time.Second)
	}

	now = ts(10 * time.Minute)
	n, err := engine.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	w, err := engine.Lookup(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, grouping.StateFlushed, w.State)

	digest, err := q.Get(ctx, w.DigestJobID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, digest.Payload.Members)
	assert.Equal(t, queue.StateQueued, digest.State)
}
