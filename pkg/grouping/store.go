package grouping

import (
	"context"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Store persists group windows. At most one window per group key is open.
type Store interface {
	// Open inserts a new open window. Returns ErrWindowExists when the key
	// already has an open window.
	Open(ctx context.Context, w *Window) error

	// Append adds job to the open window for groupKey and returns the
	// updated window. Returns ErrWindowNotFound when no window is open and
	// the window together with ErrWindowExpired when now >= WindowEnd.
	// Appending a job that is already a member is a no-op.
	Append(ctx context.Context, groupKey string, job *queue.Job, now time.Time) (*Window, error)

	// Transition moves a window from one state to another and returns the
	// stored window. Only State, DigestJobID and UpdatedAt are written.
	// Returns ErrStateConflict when the window is not in state from.
	Transition(ctx context.Context, id string, from, to WindowState, digestJobID string, at time.Time) (*Window, error)

	// Get returns a window by id.
	Get(ctx context.Context, id string) (*Window, error)

	// FindOpen returns the open window for groupKey.
	FindOpen(ctx context.Context, groupKey string) (*Window, error)

	// Pending returns windows needing a flush: open ones whose WindowEnd is
	// not after now, and flushing ones last updated before staleBefore.
	Pending(ctx context.Context, now, staleBefore time.Time, limit int) ([]*Window, error)

	// ByMember returns the most recent window containing jobID.
	ByMember(ctx context.Context, jobID string) (*Window, error)
}
