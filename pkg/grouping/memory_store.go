package grouping

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// DefaultRetention is how long a MemoryStore keeps flushed windows.
const DefaultRetention = 24 * time.Hour

// MemoryStore implements Store for tests and single-process deployments.
// Flushed windows are evicted by Pending once they are older than the
// retention period, after which ByMember no longer finds their members.
type MemoryStore struct {
	mu        sync.RWMutex
	windows   map[string]*Window
	open      map[string]string // group key -> window id
	members   map[string]string // job id -> window id
	retention time.Duration
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithRetention sets how long flushed windows are kept. Zero disables
// eviction.
func WithRetention(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if d >= 0 {
			s.retention = d
		}
	}
}

// NewMemoryStore creates an empty in-memory window store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		windows:   make(map[string]*Window),
		open:      make(map[string]string),
		members:   make(map[string]string),
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of windows held, in any state.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.windows)
}

// Open implements Store
func (s *MemoryStore) Open(ctx context.Context, w *Window) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.open[w.GroupKey]; ok {
		return fmt.Errorf("%w: %s (%s)", ErrWindowExists, w.GroupKey, id)
	}
	if _, ok := s.windows[w.ID]; ok {
		return fmt.Errorf("%w: %s", ErrWindowExists, w.ID)
	}

	c := w.Clone()
	s.windows[c.ID] = c
	s.open[c.GroupKey] = c.ID
	for _, id := range c.MemberIDs() {
		s.members[id] = c.ID
	}
	return nil
}

// Append implements Store
func (s *MemoryStore) Append(ctx context.Context, groupKey string, job *queue.Job, now time.Time) (*Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.open[groupKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWindowNotFound, groupKey)
	}
	w := s.windows[id]
	if !w.Accepts(now) {
		return w.Clone(), fmt.Errorf("%w: %s", ErrWindowExpired, w.ID)
	}

	if !w.HasMember(job.ID) {
		w.Members = append(w.Members, *job.Clone())
		w.UpdatedAt = now
		s.members[job.ID] = w.ID
	}
	return w.Clone(), nil
}

// Transition implements Store
func (s *MemoryStore) Transition(ctx context.Context, id string, from, to WindowState, digestJobID string, at time.Time) (*Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWindowNotFound, id)
	}
	if w.State != from {
		return nil, fmt.Errorf("%w: %s is %s, expected %s", ErrStateConflict, id, w.State, from)
	}

	w.State = to
	w.UpdatedAt = at
	if digestJobID != "" {
		w.DigestJobID = digestJobID
	}
	if from == StateOpen && to != StateOpen && s.open[w.GroupKey] == id {
		delete(s.open, w.GroupKey)
	}
	return w.Clone(), nil
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, id string) (*Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWindowNotFound, id)
	}
	return w.Clone(), nil
}

// FindOpen implements Store
func (s *MemoryStore) FindOpen(ctx context.Context, groupKey string) (*Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.open[groupKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWindowNotFound, groupKey)
	}
	return s.windows[id].Clone(), nil
}

// Pending implements Store. It also evicts flushed windows last updated
// more than the retention period before now.
func (s *MemoryStore) Pending(ctx context.Context, now, staleBefore time.Time, limit int) ([]*Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(now)

	var out []*Window
	for _, w := range s.windows {
		switch {
		case w.State == StateOpen && !w.WindowEnd.After(now):
			out = append(out, w.Clone())
		case w.State == StateFlushing && w.UpdatedAt.Before(staleBefore):
			out = append(out, w.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].WindowEnd.Equal(out[j].WindowEnd) {
			return out[i].WindowEnd.Before(out[j].WindowEnd)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) evict(now time.Time) {
	if s.retention <= 0 {
		return
	}
	cutoff := now.Add(-s.retention)
	for id, w := range s.windows {
		if w.State != StateFlushed || !w.UpdatedAt.Before(cutoff) {
			continue
		}
		for _, m := range w.MemberIDs() {
			if s.members[m] == id {
				delete(s.members, m)
			}
		}
		delete(s.windows, id)
	}
}

// ByMember implements Store
func (s *MemoryStore) ByMember(ctx context.Context, jobID string) (*Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.members[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: member %s", ErrWindowNotFound, jobID)
	}
	return s.windows[id].Clone(), nil
}
