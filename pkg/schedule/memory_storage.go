package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStorage implements Repository for testing and local development.
type MemoryStorage struct {
	mu    sync.RWMutex
	specs map[string]*Spec
}

// NewMemoryStorage creates an empty in-memory spec repository.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{specs: make(map[string]*Spec)}
}

// Create implements Repository
func (ms *MemoryStorage) Create(ctx context.Context, spec *Spec) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.specs[spec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSpec, spec.ID)
	}
	ms.specs[spec.ID] = spec.Clone()
	return nil
}

// Get implements Repository
func (ms *MemoryStorage) Get(ctx context.Context, id string) (*Spec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	spec, ok := ms.specs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpecNotFound, id)
	}
	return spec.Clone(), nil
}

// Due implements Repository
func (ms *MemoryStorage) Due(ctx context.Context, now time.Time, limit int) ([]*Spec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var due []*Spec
	for _, spec := range ms.specs {
		if spec.Due(now) {
			due = append(due, spec.Clone())
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextFireAt.Equal(*due[j].NextFireAt) {
			return due[i].NextFireAt.Before(*due[j].NextFireAt)
		}
		return due[i].ID < due[j].ID
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Update implements Repository
func (ms *MemoryStorage) Update(ctx context.Context, spec *Spec, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	current, ok := ms.specs[spec.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSpecNotFound, spec.ID)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: %s at version %d, expected %d", ErrStaleSpec, spec.ID, current.Version, expectedVersion)
	}
	ms.specs[spec.ID] = spec.Clone()
	return nil
}
