package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/channel"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// Limiter decides whether a delivery of userID through a channel may go
// out now. It must never block.
type Limiter interface {
	TryAcquire(ctx context.Context, channel, userID string) bool
}

// Pool is a fixed set of workers pulling jobs from a queue.
type Pool struct {
	queue    *queue.Queue
	registry *channel.Registry
	limiter  Limiter
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger

	wakeMu sync.Mutex
	wakeCh chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a worker pool. A nil limiter lets every delivery through.
func New(q *queue.Queue, registry *channel.Registry, limiter Limiter, opts ...Option) (*Pool, error) {
	if q == nil {
		return nil, ErrQueueNil
	}
	if registry == nil {
		return nil, ErrRegistryNil
	}

	p := &Pool{
		queue:    q,
		registry: registry,
		limiter:  limiter,
		cfg:      DefaultConfig(),
		now:      q.Now,
		logger:   slog.Default(),
		wakeCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.IdleMax < p.cfg.IdleMin {
		p.cfg.IdleMax = p.cfg.IdleMin
	}
	if p.cfg.NodeID == "" {
		p.cfg.NodeID = uuid.NewString()[:8]
	}

	return p, nil
}

// Config returns the effective pool configuration.
func (p *Pool) Config() Config {
	return p.cfg
}

// WorkerID returns the lease owner id used by worker n.
func (p *Pool) WorkerID(n int) string {
	return fmt.Sprintf("%s-%d", p.cfg.NodeID, n)
}

// Wake interrupts the idle sleep of every worker.
func (p *Pool) Wake() {
	p.wakeMu.Lock()
	close(p.wakeCh)
	p.wakeCh = make(chan struct{})
	p.wakeMu.Unlock()
}

func (p *Pool) wakeSignal() <-chan struct{} {
	p.wakeMu.Lock()
	defer p.wakeMu.Unlock()
	return p.wakeCh
}

// Start launches the workers and the reaper. It returns immediately.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, p.cancel = context.WithCancel(ctx)

	for i := range p.cfg.Workers {
		p.wg.Add(1)
		go func(workerID string) {
			defer p.wg.Done()
			p.work(ctx, workerID)
		}(p.WorkerID(i))
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reap(ctx)
	}()

	p.logger.InfoContext(ctx, "dispatcher started",
		slog.String("node_id", p.cfg.NodeID),
		slog.Int("workers", p.cfg.Workers),
		slog.Int("batch_size", p.cfg.BatchSize))

	return nil
}

// Stop cancels the workers and waits for in-flight jobs to be acknowledged.
func (p *Pool) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()

	p.logger.Info("dispatcher stopping, waiting for in-flight jobs",
		slog.String("node_id", p.cfg.NodeID))
	p.wg.Wait()
	p.logger.Info("dispatcher stopped", slog.String("node_id", p.cfg.NodeID))

	return nil
}

// Run returns a function suitable for errgroup.Go. It blocks until ctx is
// cancelled, then stops the pool.
func (p *Pool) Run(ctx context.Context) func() error {
	return func() error {
		if err := p.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return p.Stop()
	}
}

func (p *Pool) work(ctx context.Context, workerID string) {
	ctx = logger.WithWorker(ctx, workerID)
	idle := 0

	for ctx.Err() == nil {
		// Taken before leasing so a wake between an empty lease and the
		// sleep below is not lost.
		wake := p.wakeSignal()

		n, err := p.Poll(ctx, workerID)
		if err != nil && ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "failed to process batch", logger.Error(err))
		}
		if n > 0 {
			idle = 0
			continue
		}

		timer := time.NewTimer(p.idleDelay(idle))
		idle++
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-wake:
			timer.Stop()
			idle = 0
		case <-timer.C:
		}
	}
}

// idleDelay is IdleMin doubled per consecutive empty lease, capped at
// IdleMax, with up to half of it taken off at random.
func (p *Pool) idleDelay(empty int) time.Duration {
	d := p.cfg.IdleMin
	for range min(empty, 32) {
		d *= 2
		if d >= p.cfg.IdleMax {
			d = p.cfg.IdleMax
			break
		}
	}
	if half := int64(d / 2); half > 0 {
		d -= time.Duration(rand.Int64N(half))
	}
	return d
}

// Poll leases one batch for workerID and processes it. It returns the number
// of jobs leased. Jobs are processed even if ctx is cancelled midway; only
// leasing stops.
func (p *Pool) Poll(ctx context.Context, workerID string) (int, error) {
	jobs, err := p.queue.Lease(ctx, workerID, p.cfg.BatchSize, p.now())
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, job := range jobs {
		if err := p.process(context.WithoutCancel(ctx), workerID, job); err != nil {
			errs = append(errs, err)
		}
	}
	return len(jobs), errors.Join(errs...)
}

// delivery accumulates the per-channel results of one attempt.
type delivery struct {
	delivered []string
	permanent []string
	retryable []string
	throttled []string
}

func (d *delivery) outcome() queue.Outcome {
	switch {
	case len(d.permanent) > 0:
		return queue.OutcomeDead
	case len(d.retryable) > 0:
		return queue.OutcomeRetry
	case len(d.throttled) > 0:
		return queue.OutcomeThrottle
	default:
		return queue.OutcomeSuccess
	}
}

func (d *delivery) reason() string {
	reasons := append(append([]string{}, d.permanent...), d.retryable...)
	if len(reasons) == 0 && len(d.throttled) > 0 {
		return "rate limited: " + strings.Join(d.throttled, ", ")
	}
	return strings.Join(reasons, "; ")
}

func (p *Pool) process(ctx context.Context, workerID string, job *queue.Job) (err error) {
	jobID := job.ID
	ctx = logger.WithJob(ctx, jobID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "job processing panicked", slog.Any("panic", r))
			_, ackErr := p.queue.Ack(ctx, jobID, queue.OutcomeRetry,
				queue.WithLeaseOwner(workerID),
				queue.WithReason(fmt.Sprintf("panic: %v", r)))
			err = errors.Join(fmt.Errorf("panic while processing job %s: %v", jobID, r), ackErr)
		}
	}()

	job, err = p.queue.BeginDelivery(ctx, jobID, workerID)
	if err != nil {
		if errors.Is(err, queue.ErrLeaseLost) {
			p.logger.WarnContext(ctx, "lease lost before delivery", logger.Error(err))
			return nil
		}
		return err
	}

	var d delivery
	for _, ch := range job.PendingChannels() {
		p.deliverChannel(ctx, job, ch, &d)
	}

	outcome := d.outcome()
	opts := []queue.AckOption{
		queue.WithLeaseOwner(workerID),
		queue.WithDelivered(d.delivered...),
	}
	if reason := d.reason(); reason != "" {
		opts = append(opts, queue.WithReason(reason))
	}

	acked, err := p.queue.Ack(ctx, job.ID, outcome, opts...)
	if err != nil {
		if errors.Is(err, queue.ErrLeaseLost) {
			// The reaper took the job back; another worker will retry the
			// channels not delivered here.
			p.logger.WarnContext(ctx, "lease lost before ack",
				logger.Outcome(outcome.String()),
				logger.Error(err))
			return nil
		}
		return fmt.Errorf("failed to ack job %s: %w", job.ID, err)
	}

	p.logger.InfoContext(ctx, "job processed",
		slog.String("type", job.Type),
		logger.Outcome(outcome.String()),
		logger.Attempt(acked.Attempt),
		slog.String("state", string(acked.State)),
		slog.Any("delivered", d.delivered),
		logger.Duration(time.Since(start)))

	return nil
}

func (p *Pool) deliverChannel(ctx context.Context, job *queue.Job, ch string, d *delivery) {
	if p.limiter != nil && !p.limiter.TryAcquire(ctx, ch, job.UserID) {
		d.throttled = append(d.throttled, ch)
		p.logger.DebugContext(ctx, "channel throttled", logger.Channel(ch))
		return
	}

	adapter, err := p.registry.Get(ch)
	if err != nil {
		d.permanent = append(d.permanent, ch+": "+err.Error())
		return
	}

	res := p.deliver(ctx, adapter, channel.NewMessage(job, ch))
	switch res.Status {
	case channel.StatusSuccess:
		d.delivered = append(d.delivered, ch)
		return
	case channel.StatusPermanent:
		d.permanent = append(d.permanent, ch+": "+res.Err.Error())
	default:
		d.retryable = append(d.retryable, ch+": "+res.Err.Error())
	}

	p.logger.WarnContext(ctx, "channel delivery failed",
		logger.Channel(ch),
		slog.String("classification", res.Status.String()),
		logger.Attempt(job.Attempt),
		logger.Error(res.Err))
}

// deliver calls the adapter with a hard deadline. The adapter runs in its own
// goroutine so one that ignores its context cannot hold the worker.
func (p *Pool) deliver(ctx context.Context, adapter channel.Adapter, msg channel.Message) channel.Result {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.DeliveryTimeout)
	defer cancel()

	done := make(chan channel.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- channel.Retryable(fmt.Errorf("%w: %v", ErrAdapterPanic, r))
			}
		}()
		done <- adapter.Deliver(ctx, msg)
	}()

	select {
	case res := <-done:
		if res.Status != channel.StatusSuccess && res.Err == nil {
			res.Err = ErrNoResult
		}
		return res
	case <-ctx.Done():
		return channel.Retryable(fmt.Errorf("%w: %s adapter did not return within %s",
			channel.ErrTimeout, adapter.Name(), p.cfg.DeliveryTimeout))
	}
}

func (p *Pool) reap(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Reap(ctx)
		}
	}
}

// Reap returns expired leases to the queue and retries dead-letter routing
// for jobs left in failed. Errors are logged.
func (p *Pool) Reap(ctx context.Context) {
	if n, err := p.queue.ReapExpiredLeases(ctx, p.now()); err != nil {
		p.logger.ErrorContext(ctx, "failed to reap expired leases", logger.Error(err))
	} else if n > 0 {
		p.Wake()
	}

	if n, err := p.queue.RecoverFailed(ctx, p.cfg.RecoverBatch); err != nil {
		p.logger.ErrorContext(ctx, "failed to recover dead letters",
			slog.Int("recovered", n),
			logger.Error(err))
	}
}
