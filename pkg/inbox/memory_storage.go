package inbox

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage for single-process setups and tests.
type MemoryStorage struct {
	mu     sync.RWMutex
	byUser map[string][]Notification
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{byUser: make(map[string][]Notification)}
}

var _ Storage = (*MemoryStorage)(nil)

func (s *MemoryStorage) Create(_ context.Context, n Notification) error {
	if n.ID == "" || n.UserID == "" {
		return fmt.Errorf("%w: id and user id are required", ErrInvalidNotification)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byUser[n.UserID] {
		if existing.ID == n.ID {
			return ErrDuplicateNotification
		}
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.byUser[n.UserID] = append(s.byUser[n.UserID], n)
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, userID, id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.byUser[userID] {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, ErrNotificationNotFound
}

func (s *MemoryStorage) List(_ context.Context, userID string, opts ListOptions) ([]Notification, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	s.mu.RLock()
	filtered := make([]Notification, 0, len(s.byUser[userID]))
	for _, n := range s.byUser[userID] {
		switch {
		case n.IsExpired(now),
			opts.OnlyUnread && n.Read,
			len(opts.Types) > 0 && !slices.Contains(opts.Types, n.Type),
			opts.Since != nil && n.CreatedAt.Before(*opts.Since):
			continue
		}
		filtered = append(filtered, n)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(filtered, func(a, b Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if opts.Offset >= len(filtered) {
		return []Notification{}, nil
	}
	filtered = filtered[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}
	return filtered, nil
}

func (s *MemoryStorage) MarkRead(_ context.Context, userID string, at time.Time, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUser[userID]
	for i := range list {
		if slices.Contains(ids, list[i].ID) {
			list[i].MarkAsRead(at)
		}
	}
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, userID string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byUser[userID] = slices.DeleteFunc(s.byUser[userID], func(n Notification) bool {
		return slices.Contains(ids, n.ID)
	})
	return nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, userID string, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.byUser[userID] {
		if !n.Read && !n.IsExpired(now) {
			count++
		}
	}
	return count, nil
}
