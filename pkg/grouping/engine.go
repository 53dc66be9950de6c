package grouping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// digestNamespace seeds the deterministic ids of digest jobs.
var digestNamespace = uuid.MustParse("0c7d2f64-93a1-4b8e-a5d2-3e9f1b6c7a48")

const maxOfferAttempts = 3

// Enqueuer accepts flushed jobs. *queue.Queue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) (*queue.Job, error)
}

// Engine merges candidate notifications into time-window digests.
type Engine struct {
	store     Store
	enqueuer  Enqueuer
	summarize Summarizer
	cfg       Config
	timers    bool
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// New creates a grouping engine.
func New(store Store, enq Enqueuer, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if enq == nil {
		return nil, ErrEnqueuerNil
	}

	e := &Engine{
		store:     store,
		enqueuer:  enq,
		summarize: DefaultSummarizer,
		cfg:       DefaultConfig(),
		timers:    true,
		now:       time.Now,
		logger:    slog.Default(),
		pending:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// DigestID returns the id of the digest job built from a window.
func DigestID(windowID string) string {
	return uuid.NewSHA1(digestNamespace, []byte(windowID)).String()
}

// Offer routes a candidate job through grouping. Critical jobs bypass
// grouping and are enqueued at once. Otherwise the job joins the open
// window for its group key, or seeds a new window that flushes at
// now+rule.Window.
func (e *Engine) Offer(ctx context.Context, job *queue.Job, rule Rule) (*Result, error) {
	if job == nil {
		return nil, ErrJobNil
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if job.Priority == queue.PriorityCritical {
		if _, err := e.enqueuer.Enqueue(ctx, job); err != nil {
			return nil, err
		}
		e.logger.DebugContext(ctx, "critical job bypassed grouping",
			slog.String("job_id", job.ID),
			slog.String("type", job.Type))
		return &Result{Bypassed: true}, nil
	}

	key := rule.Key(job)
	member := job.Clone()
	member.GroupKey = key

	for range maxOfferAttempts {
		now := e.now()

		w, err := e.store.Append(ctx, key, member, now)
		switch {
		case err == nil:
			e.logger.DebugContext(ctx, "job merged into group window",
				slog.String("job_id", job.ID),
				slog.String("window_id", w.ID),
				slog.Int("members", len(w.Members)))
			return &Result{Merged: true, WindowID: w.ID, GroupKey: key}, nil
		case errors.Is(err, ErrWindowExpired):
			if _, ferr := e.FlushWindow(ctx, w.ID); ferr != nil && !errors.Is(ferr, ErrAlreadyFlushed) {
				return nil, ferr
			}
			continue
		case !errors.Is(err, ErrWindowNotFound):
			return nil, fmt.Errorf("failed to append to group %s: %w", key, err)
		}

		w = &Window{
			ID:          uuid.NewString(),
			GroupKey:    key,
			UserID:      job.UserID,
			Type:        job.Type,
			WindowStart: now,
			WindowEnd:   now.Add(rule.Window),
			Members:     []queue.Job{*member},
			State:       StateOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.store.Open(ctx, w); err != nil {
			if errors.Is(err, ErrWindowExists) {
				continue
			}
			return nil, fmt.Errorf("failed to open group window %s: %w", key, err)
		}

		e.arm(w)
		e.logger.DebugContext(ctx, "group window opened",
			slog.String("job_id", job.ID),
			slog.String("window_id", w.ID),
			slog.String("group_key", key),
			slog.Time("window_end", w.WindowEnd))
		return &Result{WindowOpened: true, WindowID: w.ID, GroupKey: key}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrOfferContention, key)
}

// Flush closes the open window for groupKey and enqueues its digest.
func (e *Engine) Flush(ctx context.Context, groupKey string) (*queue.Job, error) {
	w, err := e.store.FindOpen(ctx, groupKey)
	if err != nil {
		if errors.Is(err, ErrWindowNotFound) {
			return nil, ErrAlreadyFlushed
		}
		return nil, err
	}
	return e.FlushWindow(ctx, w.ID)
}

// FlushWindow moves the window open -> flushing -> flushed and enqueues one
// job for it. Only the caller that wins the open -> flushing transition
// enqueues; every other caller gets ErrAlreadyFlushed.
func (e *Engine) FlushWindow(ctx context.Context, windowID string) (*queue.Job, error) {
	e.disarm(windowID)

	w, err := e.store.Transition(ctx, windowID, StateOpen, StateFlushing, "", e.now())
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			return nil, ErrAlreadyFlushed
		}
		return nil, errors.Join(ErrFailedToFlush, err)
	}
	return e.complete(ctx, w)
}

// complete enqueues the digest of a flushing window and marks it flushed.
// The digest id is derived from the window, so completing twice is safe.
func (e *Engine) complete(ctx context.Context, w *Window) (*queue.Job, error) {
	job := e.digest(w)

	if _, err := e.enqueuer.Enqueue(ctx, job); err != nil && !errors.Is(err, queue.ErrDuplicateJob) {
		return nil, errors.Join(ErrFailedToFlush, err)
	}

	if _, err := e.store.Transition(ctx, w.ID, StateFlushing, StateFlushed, job.ID, e.now()); err != nil && !errors.Is(err, ErrStateConflict) {
		return nil, errors.Join(ErrFailedToFlush, err)
	}

	e.logger.InfoContext(ctx, "group window flushed",
		slog.String("window_id", w.ID),
		slog.String("group_key", w.GroupKey),
		slog.String("job_id", job.ID),
		slog.Int("members", len(w.Members)))

	return job, nil
}

// digest builds the job enqueued for a window. A single member passes
// through unchanged.
func (e *Engine) digest(w *Window) *queue.Job {
	if len(w.Members) == 1 {
		job := w.Members[0].Clone()
		job.GroupKey = w.GroupKey
		return job
	}

	job := &queue.Job{
		ID:       DigestID(w.ID),
		UserID:   w.UserID,
		Type:     w.Type,
		Priority: queue.PriorityLow,
		Payload:  e.summarize(w),
		GroupKey: w.GroupKey,
	}
	for i := range w.Members {
		m := &w.Members[i]
		job.Priority = max(job.Priority, m.Priority)
		job.MaxAttempts = max(job.MaxAttempts, m.MaxAttempts)
	}
	if len(job.Payload.Channels) == 0 {
		for i := range w.Members {
			for _, ch := range w.Members[i].Payload.Channels {
				if !slices.Contains(job.Payload.Channels, ch) {
					job.Payload.Channels = append(job.Payload.Channels, ch)
				}
			}
		}
	}
	return job
}

// Sweep flushes windows whose end has passed and resumes flushes that
// stalled in the flushing state. Returns the number of jobs enqueued.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (int, error) {
	windows, err := e.store.Pending(ctx, now, now.Add(-e.cfg.StaleFlushAfter), e.cfg.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending group windows: %w", err)
	}

	var (
		count int
		errs  []error
	)
	for _, w := range windows {
		var ferr error
		switch w.State {
		case StateOpen:
			_, ferr = e.FlushWindow(ctx, w.ID)
		case StateFlushing:
			_, ferr = e.complete(ctx, w)
		default:
			continue
		}
		switch {
		case ferr == nil:
			count++
		case errors.Is(ferr, ErrAlreadyFlushed):
		default:
			errs = append(errs, ferr)
		}
	}
	return count, errors.Join(errs...)
}

// Run sweeps on every SweepInterval until ctx is done, then stops all
// flush timers. Suitable for errgroup.Go.
func (e *Engine) Run(ctx context.Context) func() error {
	return func() error {
		defer e.Close()

		ticker := time.NewTicker(e.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			e.sweep(ctx)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
}

func (e *Engine) sweep(ctx context.Context) {
	n, err := e.Sweep(ctx, e.now())
	if err != nil && ctx.Err() == nil {
		e.logger.ErrorContext(ctx, "group sweep failed",
			slog.Int("flushed", n),
			slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		e.logger.DebugContext(ctx, "group sweep", slog.Int("flushed", n))
	}
}

// Lookup returns the window a job was merged into.
func (e *Engine) Lookup(ctx context.Context, jobID string) (*Window, error) {
	return e.store.ByMember(ctx, jobID)
}

// Close stops pending flush timers. Windows stay open in the store and are
// flushed by the next Sweep.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for id, t := range e.pending {
		t.Stop()
		delete(e.pending, id)
	}
}

func (e *Engine) arm(w *Window) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.timers || e.closed {
		return
	}
	id := w.ID
	e.pending[id] = time.AfterFunc(max(w.WindowEnd.Sub(e.now()), 0), func() {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.FlushTimeout)
		defer cancel()

		if _, err := e.FlushWindow(ctx, id); err != nil && !errors.Is(err, ErrAlreadyFlushed) {
			e.logger.Error("timed group flush failed",
				slog.String("window_id", id),
				slog.String("error", err.Error()))
		}
	})
}

func (e *Engine) disarm(windowID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.pending[windowID]; ok {
		t.Stop()
		delete(e.pending, windowID)
	}
}
