package deadletter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStorage implements Storage for tests and local development.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]*Record)}
}

// Append implements Storage
func (ms *MemoryStorage) Append(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.records[rec.ID]; ok {
		return nil
	}
	c := clone(rec)
	ms.records[rec.ID] = c
	return nil
}

// Latest implements Storage
func (ms *MemoryStorage) Latest(ctx context.Context, jobID string, pendingOnly bool) (*Record, error) {
	recs, err := ms.List(ctx, Filter{JobID: jobID, IncludeReplayed: !pendingOnly, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: job %s", ErrRecordNotFound, jobID)
	}
	return recs[0], nil
}

// MarkReplayed implements Storage
func (ms *MemoryStorage) MarkReplayed(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, ok := ms.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if rec.ReplayedAt != nil {
		return ErrAlreadyReplayed
	}
	rec.ReplayedAt = &at
	return nil
}

// List implements Storage
func (ms *MemoryStorage) List(ctx context.Context, filter Filter) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*Record
	for _, rec := range ms.records {
		if matches(rec, filter) {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].FailedAt.Equal(out[k].FailedAt) {
			return out[i].ID > out[k].ID
		}
		return out[i].FailedAt.After(out[k].FailedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Count implements Storage
func (ms *MemoryStorage) Count(ctx context.Context, filter Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	n := 0
	for _, rec := range ms.records {
		if matches(rec, filter) {
			n++
		}
	}
	return n, nil
}

func matches(rec *Record, f Filter) bool {
	if !f.IncludeReplayed && rec.ReplayedAt != nil {
		return false
	}
	if f.JobID != "" && rec.JobID != f.JobID {
		return false
	}
	if f.UserID != "" && rec.UserID != f.UserID {
		return false
	}
	if f.Type != "" && rec.Type != f.Type {
		return false
	}
	return true
}

func clone(rec *Record) *Record {
	c := *rec
	c.Job = *rec.Job.Clone()
	if rec.ReplayedAt != nil {
		t := *rec.ReplayedAt
		c.ReplayedAt = &t
	}
	return &c
}
