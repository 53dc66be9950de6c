package schedule

import (
	"context"
	"time"
)

// Repository persists schedule specs. Update is a compare-and-swap on
// Version: it stores spec only if the stored version equals expectedVersion.
type Repository interface {
	// Create inserts a new spec. Returns ErrDuplicateSpec if the id exists.
	Create(ctx context.Context, spec *Spec) error

	// Get returns the spec with the given id or ErrSpecNotFound.
	Get(ctx context.Context, id string) (*Spec, error)

	// Due returns up to limit active specs with NextFireAt <= now,
	// earliest first.
	Due(ctx context.Context, now time.Time, limit int) ([]*Spec, error)

	// Update replaces the stored spec. Returns ErrStaleSpec when the stored
	// version is not expectedVersion.
	Update(ctx context.Context, spec *Spec, expectedVersion int64) error
}
