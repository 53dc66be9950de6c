package queue

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStorage implements Repository for testing and local development.
// A single mutex serializes every operation, which makes lease and
// compare-and-swap atomic within one process.
type MemoryStorage struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	// Index for state scans
	byState map[State]map[string]struct{}
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs:    make(map[string]*Job),
		byState: make(map[State]map[string]struct{}),
	}
}

// Insert implements Repository
func (ms *MemoryStorage) Insert(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrJobNil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}

	ms.store(job.Clone(), "")
	return nil
}

// Get implements Repository
func (ms *MemoryStorage) Get(ctx context.Context, id string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	job, ok := ms.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job.Clone(), nil
}

// Lease implements Repository
func (ms *MemoryStorage) Lease(ctx context.Context, workerID string, limit int, now time.Time, leaseFor time.Duration) ([]*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	var eligible []*Job
	for _, state := range []State{StateQueued, StateScheduled} {
		for id := range ms.byState[state] {
			job := ms.jobs[id]
			if job.NotBefore.After(now) {
				continue
			}
			eligible = append(eligible, job)
		}
	}

	sort.Slice(eligible, func(i, k int) bool { return Less(eligible[i], eligible[k]) })
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	expires := now.Add(leaseFor)
	out := make([]*Job, 0, len(eligible))
	for _, job := range eligible {
		prev := job.State
		job.State = StateLeased
		job.LeaseOwner = workerID
		job.LeaseExpiresAt = &expires
		job.UpdatedAt = now
		ms.reindex(job.ID, prev, StateLeased)
		out = append(out, job.Clone())
	}
	return out, nil
}

// CompareAndSwap implements Repository
func (ms *MemoryStorage) CompareAndSwap(ctx context.Context, job *Job, cond Condition) error {
	if job == nil {
		return ErrJobNil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored, ok := ms.jobs[job.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	if len(cond.States) > 0 && !slices.Contains(cond.States, stored.State) {
		return fmt.Errorf("%w: job %s is %s", ErrStateConflict, job.ID, stored.State)
	}
	if cond.LeaseOwner != "" && stored.LeaseOwner != cond.LeaseOwner {
		return fmt.Errorf("%w: job %s is leased by another worker", ErrStateConflict, job.ID)
	}

	ms.store(job.Clone(), stored.State)
	return nil
}

// ReapExpired implements Repository
func (ms *MemoryStorage) ReapExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	reaped := 0
	for _, state := range []State{StateLeased, StateDelivering} {
		for id := range ms.byState[state] {
			job := ms.jobs[id]
			if job.LeaseExpiresAt == nil || !job.LeaseExpiresAt.Before(now) {
				continue
			}
			job.State = StateQueued
			job.LeaseOwner = ""
			job.LeaseExpiresAt = nil
			job.UpdatedAt = now
			ms.reindex(id, state, StateQueued)
			reaped++
		}
	}
	return reaped, nil
}

// ListByState implements Repository
func (ms *MemoryStorage) ListByState(ctx context.Context, state State, limit int) ([]*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]*Job, 0, len(ms.byState[state]))
	for id := range ms.byState[state] {
		out = append(out, ms.jobs[id].Clone())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].UpdatedAt.Before(out[k].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count implements Repository
func (ms *MemoryStorage) Count(ctx context.Context, filter CountFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	n := 0
	for _, job := range ms.jobs {
		if len(filter.States) > 0 && !slices.Contains(filter.States, job.State) {
			continue
		}
		if filter.Priority != nil && job.Priority != *filter.Priority {
			continue
		}
		n++
	}
	return n, nil
}

// store must be called with mu held.
func (ms *MemoryStorage) store(job *Job, prev State) {
	ms.jobs[job.ID] = job
	if prev != "" {
		ms.reindex(job.ID, prev, job.State)
		return
	}
	ms.addToStateIndex(job.ID, job.State)
}

func (ms *MemoryStorage) reindex(id string, from, to State) {
	if from == to {
		return
	}
	delete(ms.byState[from], id)
	ms.addToStateIndex(id, to)
}

func (ms *MemoryStorage) addToStateIndex(id string, state State) {
	if ms.byState[state] == nil {
		ms.byState[state] = make(map[string]struct{})
	}
	ms.byState[state][id] = struct{}{}
}
