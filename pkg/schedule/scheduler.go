package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Enqueuer accepts materialized jobs. *queue.Queue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) (*queue.Job, error)
}

// Scheduler turns due specs into queue jobs. Several scheduler instances
// may tick the same repository: job ids are derived from (spec id, fire
// time) and spec updates are version-checked, so a duplicate tick is a no-op.
type Scheduler struct {
	repo      Repository
	enqueuer  Enqueuer
	calendar  HolidayCalendar
	interval  time.Duration
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a scheduler that materializes specs from repo into enq.
func New(repo Repository, enq Enqueuer, opts ...Option) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if enq == nil {
		return nil, ErrEnqueuerNil
	}

	s := &Scheduler{
		repo:      repo,
		enqueuer:  enq,
		interval:  time.Minute,
		batchSize: 100,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register validates spec, computes its first fire time and stores it.
// A one-shot spec whose FireAt already passed fires on the next tick.
func (s *Scheduler) Register(ctx context.Context, spec *Spec) (*Spec, error) {
	if spec == nil {
		return nil, ErrInvalidSpec
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	sp := spec.Clone()
	if sp.ID == "" {
		sp.ID = uuid.NewString()
	}

	after := now
	if sp.FireAt != nil && !sp.FireAt.After(now) {
		after = sp.FireAt.Add(-time.Nanosecond)
	}
	next, err := ComputeNextFire(sp, after, s.calendar)
	if err != nil {
		return nil, fmt.Errorf("failed to compute first fire time for %s: %w", sp.ID, err)
	}
	if next.Before(now) {
		next = now.UTC()
	}

	sp.NextFireAt = &next
	sp.OccurrencesSoFar = 0
	sp.Retired = false
	sp.Version = 1
	sp.CreatedAt = now
	sp.UpdatedAt = now

	if err := s.repo.Create(ctx, sp); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "schedule registered",
		slog.String("schedule_id", sp.ID),
		slog.String("cron", sp.CronExpression),
		slog.String("timezone", sp.Timezone),
		slog.Time("next_fire_at", next))

	return sp.Clone(), nil
}

// Retire stops a spec from emitting further jobs.
func (s *Scheduler) Retire(ctx context.Context, id string) error {
	spec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if spec.Retired {
		return nil
	}

	next := spec.Clone()
	next.Retired = true
	next.NextFireAt = nil
	next.Version = spec.Version + 1
	next.UpdatedAt = s.now()
	return s.repo.Update(ctx, next, spec.Version)
}

// Get returns a stored spec.
func (s *Scheduler) Get(ctx context.Context, id string) (*Spec, error) {
	return s.repo.Get(ctx, id)
}

// Materialize emits the job for spec's current occurrence when it is due.
// It reports whether this call advanced the spec. Duplicate jobs and specs
// advanced concurrently by another scheduler are not errors.
func (s *Scheduler) Materialize(ctx context.Context, spec *Spec, now time.Time) (bool, error) {
	if spec.Retired {
		return false, nil
	}
	if spec.Exhausted() {
		return false, s.retire(ctx, spec, now)
	}
	if !spec.Due(now) {
		return false, nil
	}

	fireAt := *spec.NextFireAt
	job := spec.Template.Clone()
	job.ID = JobID(spec.ID, fireAt)
	job.NotBefore = fireAt
	job.State = ""
	job.Attempt = 0
	job.CreatedAt = time.Time{}

	if _, err := s.enqueuer.Enqueue(ctx, job); err != nil && !errors.Is(err, queue.ErrDuplicateJob) {
		return false, fmt.Errorf("failed to enqueue occurrence of %s: %w", spec.ID, err)
	}

	next := spec.Clone()
	next.OccurrencesSoFar++
	next.Version = spec.Version + 1
	next.UpdatedAt = now
	next.NextFireAt = nil

	switch {
	case next.FireAt != nil, next.Exhausted():
		next.Retired = true
	default:
		after := now
		if fireAt.After(after) {
			after = fireAt
		}
		nf, err := ComputeNextFire(next, after, s.calendar)
		switch {
		case errors.Is(err, ErrNoNextFire):
			next.Retired = true
		case err != nil:
			return false, fmt.Errorf("failed to compute next fire time for %s: %w", spec.ID, err)
		default:
			next.NextFireAt = &nf
		}
	}

	if err := s.repo.Update(ctx, next, spec.Version); err != nil {
		if errors.Is(err, ErrStaleSpec) {
			s.logger.DebugContext(ctx, "schedule advanced concurrently",
				slog.String("schedule_id", spec.ID))
			return false, nil
		}
		return false, fmt.Errorf("failed to update schedule %s: %w", spec.ID, err)
	}

	attrs := []any{
		slog.String("schedule_id", spec.ID),
		slog.String("job_id", job.ID),
		slog.Time("fire_at", fireAt),
		slog.Int("occurrences", next.OccurrencesSoFar),
	}
	if next.NextFireAt != nil {
		attrs = append(attrs, slog.Time("next_fire_at", *next.NextFireAt))
	}
	if next.Retired {
		attrs = append(attrs, slog.Bool("retired", true))
	}
	s.logger.InfoContext(ctx, "schedule materialized", attrs...)

	*spec = *next
	return true, nil
}

func (s *Scheduler) retire(ctx context.Context, spec *Spec, now time.Time) error {
	next := spec.Clone()
	next.Retired = true
	next.NextFireAt = nil
	next.Version = spec.Version + 1
	next.UpdatedAt = now
	if err := s.repo.Update(ctx, next, spec.Version); err != nil && !errors.Is(err, ErrStaleSpec) {
		return fmt.Errorf("failed to retire schedule %s: %w", spec.ID, err)
	}
	s.logger.InfoContext(ctx, "schedule retired",
		slog.String("schedule_id", spec.ID),
		slog.Int("occurrences", spec.OccurrencesSoFar))
	return nil
}

// Tick materializes every spec due at now, up to the batch size, and
// returns how many jobs it emitted. Safe to call concurrently from several
// processes.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	specs, err := s.repo.Due(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load due schedules: %w", err)
	}

	var (
		count int
		errs  []error
	)
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := s.Materialize(ctx, spec, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			count++
		}
	}
	return count, errors.Join(errs...)
}

// Start ticks immediately and then on every check interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.check(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return nil
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// Run returns a function suitable for errgroup.Go.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		return s.Start(ctx)
	}
}

func (s *Scheduler) check(ctx context.Context) {
	n, err := s.Tick(ctx, s.now())
	if err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "scheduler tick failed",
			slog.Int("materialized", n),
			slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "scheduler tick", slog.Int("materialized", n))
	}
}
