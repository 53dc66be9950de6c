package deadletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Sink is the durable record of jobs that exhausted retries or failed
// permanently. It implements queue.DeadLetterRecorder.
type Sink struct {
	storage Storage
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets a custom logger for the sink
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSink creates a sink backed by storage.
func NewSink(storage Storage, opts ...Option) (*Sink, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	s := &Sink{
		storage: storage,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Record appends a dead letter for job. Recording the same failure twice
// (same job id and UpdatedAt) stores a single record.
func (s *Sink) Record(ctx context.Context, job *queue.Job, reason string) error {
	if job == nil {
		return ErrJobNil
	}

	failedAt := job.UpdatedAt
	if failedAt.IsZero() {
		failedAt = s.now()
	}

	rec := &Record{
		ID:       RecordID(job.ID, failedAt),
		JobID:    job.ID,
		UserID:   job.UserID,
		Type:     job.Type,
		Priority: job.Priority,
		Attempt:  job.Attempt,
		Reason:   reason,
		Job:      *job.Clone(),
		FailedAt: failedAt,
	}

	if err := s.storage.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to append dead letter for job %s: %w", job.ID, err)
	}

	s.logger.InfoContext(ctx, "dead letter recorded",
		slog.String("job_id", job.ID),
		slog.String("type", job.Type),
		slog.String("reason", reason))
	return nil
}

// Replay re-enqueues a dead job with its attempt count reset. It is an
// operator action and is never triggered automatically.
func (s *Sink) Replay(ctx context.Context, jobID string, r Reviver) (*queue.Job, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: reviver is required", ErrReplayFailed)
	}

	rec, err := s.storage.Latest(ctx, jobID, true)
	if err != nil {
		return nil, err
	}

	job, err := r.Revive(ctx, jobID)
	switch {
	case errors.Is(err, queue.ErrNotDead):
		// A previous replay revived the job but did not mark the record.
		s.logger.WarnContext(ctx, "job already revived, marking record replayed",
			slog.String("job_id", jobID))
	case err != nil:
		return nil, errors.Join(ErrReplayFailed, err)
	}

	if err := s.storage.MarkReplayed(ctx, rec.ID, s.now()); err != nil && !errors.Is(err, ErrAlreadyReplayed) {
		return job, errors.Join(ErrReplayFailed, err)
	}

	s.logger.InfoContext(ctx, "dead letter replayed", slog.String("job_id", jobID))
	return job, nil
}

// Count returns the number of records not yet replayed.
func (s *Sink) Count(ctx context.Context) (int, error) {
	return s.storage.Count(ctx, Filter{})
}

// List returns records matching filter, newest first.
func (s *Sink) List(ctx context.Context, filter Filter) ([]*Record, error) {
	return s.storage.List(ctx, filter)
}

// Get returns the newest record for jobID, replayed or not.
func (s *Sink) Get(ctx context.Context, jobID string) (*Record, error) {
	return s.storage.Latest(ctx, jobID, false)
}
