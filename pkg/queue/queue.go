package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// DeadLetterRecorder receives jobs that will never be retried automatically.
// Record must be idempotent for the same job id and UpdatedAt.
type DeadLetterRecorder interface {
	Record(ctx context.Context, job *Job, reason string) error
}

// Queue owns every state transition of a job: enqueue, lease, ack, reap
// and revive. Storage is delegated to a Repository.
type Queue struct {
	repo        Repository
	deadLetters DeadLetterRecorder
	cfg         Config
	backoff     Backoff
	now         func() time.Time
	logger      *slog.Logger
	hooks       []func(*Job)
}

// New creates a queue backed by repo.
func New(repo Repository, opts ...Option) (*Queue, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	cfg := DefaultConfig()
	q := &Queue{
		repo:    repo,
		cfg:     cfg,
		backoff: cfg.Backoff(),
		now:     time.Now,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// Config returns the effective queue configuration.
func (q *Queue) Config() Config {
	return q.cfg
}

// Now returns the queue's current time.
func (q *Queue) Now() time.Time {
	return q.now()
}

// Enqueue inserts a job. The job ends up queued, or scheduled when
// NotBefore is in the future. Returns ErrDuplicateJob if the id exists.
func (q *Queue) Enqueue(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, ErrJobNil
	}
	if job.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidJob)
	}
	if len(job.Payload.Channels) == 0 {
		return nil, fmt.Errorf("%w: at least one channel is required", ErrInvalidJob)
	}

	now := q.now()
	j := job.Clone()
	if j.Priority == 0 {
		j.Priority = PriorityDefault
	}
	if !j.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = q.cfg.DefaultMaxAttempts
	}
	j.Attempt = min(max(j.Attempt, 0), j.MaxAttempts)
	if j.NotBefore.IsZero() {
		j.NotBefore = now
	}
	j.State = StateQueued
	if j.NotBefore.After(now) {
		j.State = StateScheduled
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	j.LeaseOwner = ""
	j.LeaseExpiresAt = nil

	if err := q.repo.Insert(ctx, j); err != nil {
		if errors.Is(err, ErrDuplicateJob) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to enqueue job %s: %w", j.ID, err)
	}

	q.logger.DebugContext(ctx, "job enqueued",
		slog.String("job_id", j.ID),
		slog.String("type", j.Type),
		slog.String("priority", j.Priority.String()),
		slog.String("state", string(j.State)),
		slog.Time("not_before", j.NotBefore))

	q.notify(j)
	return j.Clone(), nil
}

// Lease claims up to batchSize eligible jobs for workerID. It never blocks:
// an empty result means nothing is eligible at now.
func (q *Queue) Lease(ctx context.Context, workerID string, batchSize int, now time.Time) ([]*Job, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker id is required", ErrFailedToLease)
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	jobs, err := q.repo.Lease(ctx, workerID, batchSize, now, q.cfg.LeaseDuration)
	if err != nil {
		return nil, errors.Join(ErrFailedToLease, err)
	}
	return jobs, nil
}

// BeginDelivery moves a leased job to delivering.
func (q *Queue) BeginDelivery(ctx context.Context, jobID, workerID string) (*Job, error) {
	job, err := q.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := q.now()
	if job.State != StateLeased || job.LeaseOwner != workerID {
		return nil, fmt.Errorf("%w: job %s is %s", ErrLeaseLost, jobID, job.State)
	}
	if job.LeaseExpiresAt != nil && job.LeaseExpiresAt.Before(now) {
		return nil, fmt.Errorf("%w: lease on job %s expired", ErrLeaseLost, jobID)
	}

	job.State = StateDelivering
	job.UpdatedAt = now
	if err := q.repo.CompareAndSwap(ctx, job, Condition{States: []State{StateLeased}, LeaseOwner: workerID}); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return nil, fmt.Errorf("%w: job %s", ErrLeaseLost, jobID)
		}
		return nil, err
	}
	return job, nil
}

// Ack resolves a leased job with the given outcome.
//
//   - success: the job is succeeded.
//   - retry: Attempt is incremented. Below MaxAttempts the job is requeued
//     after an exponential backoff with jitter, otherwise it is dead-lettered.
//   - dead: the job is dead-lettered regardless of Attempt.
//   - throttle: the job is requeued after the throttle delay, Attempt unchanged.
func (q *Queue) Ack(ctx context.Context, jobID string, outcome Outcome, opts ...AckOption) (*Job, error) {
	var o ackOptions
	for _, opt := range opts {
		opt(&o)
	}

	job, err := q.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.State.Active() {
		return nil, fmt.Errorf("%w: job %s is %s", ErrLeaseLost, jobID, job.State)
	}
	if o.leaseOwner != "" && job.LeaseOwner != o.leaseOwner {
		return nil, fmt.Errorf("%w: job %s", ErrLeaseLost, jobID)
	}

	from, owner := job.State, job.LeaseOwner
	now := q.now()

	next := job.Clone()
	for _, ch := range o.delivered {
		if !slices.Contains(next.Delivered, ch) {
			next.Delivered = append(next.Delivered, ch)
		}
	}
	next.LeaseOwner = ""
	next.LeaseExpiresAt = nil
	next.UpdatedAt = now
	if o.reason != "" {
		next.LastError = o.reason
	}

	toDeadLetter := false
	switch outcome {
	case OutcomeSuccess:
		next.State = StateSucceeded
	case OutcomeThrottle:
		delay := q.cfg.ThrottleDelay
		if o.delay > 0 {
			delay = o.delay
		}
		next.State = StateQueued
		next.NotBefore = now.Add(delay)
	case OutcomeRetry:
		next.Attempt++
		if next.Attempt >= next.MaxAttempts {
			next.Attempt = next.MaxAttempts
			toDeadLetter = true
			break
		}
		next.State = StateQueued
		next.NotBefore = now.Add(q.backoff.Delay(next.Attempt))
	case OutcomeDead:
		toDeadLetter = true
	default:
		return nil, fmt.Errorf("%w: unknown outcome %s", ErrFailedToAck, outcome)
	}

	if toDeadLetter {
		next.State = StateFailed
	}

	if err := q.repo.CompareAndSwap(ctx, next, Condition{States: []State{from}, LeaseOwner: owner}); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return nil, fmt.Errorf("%w: job %s", ErrLeaseLost, jobID)
		}
		return nil, errors.Join(ErrFailedToAck, err)
	}

	q.logger.DebugContext(ctx, "job acknowledged",
		slog.String("job_id", jobID),
		slog.String("outcome", outcome.String()),
		slog.Int("attempt", next.Attempt),
		slog.String("state", string(next.State)))

	if toDeadLetter {
		return q.deadLetter(ctx, next)
	}
	if next.State == StateQueued {
		q.notify(next)
	}
	return next, nil
}

// deadLetter records a failed job and moves it to dead. On error the job
// stays failed and is picked up again by RecoverFailed.
func (q *Queue) deadLetter(ctx context.Context, job *Job) (*Job, error) {
	if q.deadLetters != nil {
		if err := q.deadLetters.Record(ctx, job.Clone(), job.LastError); err != nil {
			q.logger.ErrorContext(ctx, "failed to record dead letter",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()))
			return job, errors.Join(ErrFailedToDeadLetter, err)
		}
	}

	next := job.Clone()
	next.State = StateDead
	next.UpdatedAt = q.now()
	if err := q.repo.CompareAndSwap(ctx, next, Condition{States: []State{StateFailed}}); err != nil {
		return job, errors.Join(ErrFailedToDeadLetter, err)
	}

	q.logger.WarnContext(ctx, "job moved to dead letter",
		slog.String("job_id", next.ID),
		slog.String("type", next.Type),
		slog.Int("attempt", next.Attempt),
		slog.String("reason", next.LastError))

	return next, nil
}

// RecoverFailed retries dead-letter routing for jobs stuck in failed.
func (q *Queue) RecoverFailed(ctx context.Context, limit int) (int, error) {
	jobs, err := q.repo.ListByState(ctx, StateFailed, limit)
	if err != nil {
		return 0, err
	}

	var errs []error
	recovered := 0
	for _, job := range jobs {
		if _, err := q.deadLetter(ctx, job); err != nil {
			errs = append(errs, err)
			continue
		}
		recovered++
	}
	return recovered, errors.Join(errs...)
}

// ReapExpiredLeases returns jobs whose lease expired before now to queued.
// Attempt is not incremented: the worker died, not the delivery.
func (q *Queue) ReapExpiredLeases(ctx context.Context, now time.Time) (int, error) {
	n, err := q.repo.ReapExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to reap expired leases: %w", err)
	}
	if n > 0 {
		q.logger.InfoContext(ctx, "reaped expired leases", slog.Int("count", n))
		q.notify(nil)
	}
	return n, nil
}

// Revive moves a dead job back to queued with Attempt reset to 0.
// Channels already delivered are not sent again.
func (q *Queue) Revive(ctx context.Context, jobID string) (*Job, error) {
	job, err := q.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State != StateDead {
		return nil, fmt.Errorf("%w: job %s is %s", ErrNotDead, jobID, job.State)
	}

	now := q.now()
	job.State = StateQueued
	job.Attempt = 0
	job.NotBefore = now
	job.UpdatedAt = now
	job.LeaseOwner = ""
	job.LeaseExpiresAt = nil

	if err := q.repo.CompareAndSwap(ctx, job, Condition{States: []State{StateDead}}); err != nil {
		return nil, err
	}

	q.logger.InfoContext(ctx, "dead job revived", slog.String("job_id", jobID))
	q.notify(job)
	return job, nil
}

// Get returns a snapshot of a job.
func (q *Queue) Get(ctx context.Context, jobID string) (*Job, error) {
	return q.repo.Get(ctx, jobID)
}

// Depth returns the number of jobs not yet resolved, optionally for one priority.
func (q *Queue) Depth(ctx context.Context, priority *Priority) (int, error) {
	if priority != nil && !priority.Valid() {
		return 0, ErrInvalidPriority
	}
	return q.repo.Count(ctx, CountFilter{States: DepthStates, Priority: priority})
}

func (q *Queue) notify(job *Job) {
	for _, fn := range q.hooks {
		fn(job)
	}
}
