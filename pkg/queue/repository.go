package queue

import (
	"context"
	"time"
)

// Repository is the storage contract of the queue. Every method must be
// atomic with respect to concurrent callers in other processes.
type Repository interface {
	// Insert stores a new job. Returns ErrDuplicateJob if the id exists.
	Insert(ctx context.Context, job *Job) error

	// Get returns a job by id or ErrJobNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// Lease selects up to limit eligible jobs (queued or scheduled with
	// NotBefore <= now) ordered by priority DESC, NotBefore ASC,
	// CreatedAt ASC, and marks them leased by workerID until now+leaseFor.
	Lease(ctx context.Context, workerID string, limit int, now time.Time, leaseFor time.Duration) ([]*Job, error)

	// CompareAndSwap replaces the stored job with job if the stored state is
	// one of cond.States and, when cond.LeaseOwner is set, the stored lease
	// owner matches. Returns ErrStateConflict otherwise.
	CompareAndSwap(ctx context.Context, job *Job, cond Condition) error

	// ReapExpired returns leased or delivering jobs whose lease expired
	// before now to the queued state without touching Attempt.
	ReapExpired(ctx context.Context, now time.Time) (int, error)

	// ListByState returns up to limit jobs in the given state, oldest update first.
	ListByState(ctx context.Context, state State, limit int) ([]*Job, error)

	// Count returns the number of jobs matching the filter.
	Count(ctx context.Context, filter CountFilter) (int, error)
}

// Condition guards a compare-and-swap update.
type Condition struct {
	States     []State
	LeaseOwner string
}

// CountFilter narrows Count. Empty States means all states.
type CountFilter struct {
	States   []State
	Priority *Priority
}

// DepthStates are the states counted as queue depth.
var DepthStates = []State{StateScheduled, StateQueued, StateLeased, StateDelivering}
