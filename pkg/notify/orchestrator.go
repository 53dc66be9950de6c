package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/deadletter"
	"github.com/dmitrymomot/notifykit/pkg/grouping"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/schedule"
)

// Orchestrator is the entry point for sending notifications. It filters
// channels by preference, renders content, and hands the job to grouping or
// straight to the queue.
type Orchestrator struct {
	queue       *queue.Queue
	grouping    *grouping.Engine
	scheduler   *schedule.Scheduler
	deadLetters *deadletter.Sink
	prefs       PreferenceStore
	renderer    Renderer
	rules       map[string]grouping.Rule
	channels    []string
	logger      *slog.Logger
}

// New creates an orchestrator on top of q. Grouping, scheduling, dead
// letters, preferences and rendering are enabled through options.
func New(q *queue.Queue, opts ...Option) (*Orchestrator, error) {
	if q == nil {
		return nil, ErrQueueNil
	}

	o := &Orchestrator{
		queue:  q,
		rules:  make(map[string]grouping.Rule),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	for typ, rule := range o.rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("grouping rule for %s: %w", typ, err)
		}
	}
	return o, nil
}

// Submit turns a request into a job and returns its id. Channels the user
// opted out of are dropped; if none remain the request fails with
// ErrSuppressed and no job is created. A request whose type has a grouping
// rule joins a group window instead of being queued directly. Submitting an
// id twice returns queue.ErrDuplicateJob.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (string, error) {
	job, err := o.build(ctx, req)
	if err != nil {
		return "", err
	}
	ctx = logger.WithJob(ctx, job.ID)

	rule, grouped := o.rules[job.Type]
	if grouped && o.grouping != nil && req.NotBefore.IsZero() {
		if err := o.ensureNew(ctx, req.ID); err != nil {
			return "", err
		}
		res, err := o.grouping.Offer(ctx, job, rule)
		if err != nil {
			return "", err
		}
		o.logger.DebugContext(ctx, "notification submitted",
			slog.String("type", job.Type),
			slog.Bool("merged", res.Merged),
			slog.Bool("bypassed", res.Bypassed),
			logger.GroupKey(res.GroupKey))
		return job.ID, nil
	}

	queued, err := o.queue.Enqueue(ctx, job)
	if err != nil {
		return "", err
	}
	o.logger.DebugContext(ctx, "notification submitted",
		slog.String("type", job.Type),
		slog.String("state", string(queued.State)))
	return queued.ID, nil
}

// ensureNew rejects a caller-chosen id that is already queued or held in a
// group window.
func (o *Orchestrator) ensureNew(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := o.queue.Get(ctx, id); err == nil {
		return fmt.Errorf("%w: %s", queue.ErrDuplicateJob, id)
	} else if !errors.Is(err, queue.ErrJobNotFound) {
		return err
	}
	if _, err := o.grouping.Lookup(ctx, id); err == nil {
		return fmt.Errorf("%w: %s", queue.ErrDuplicateJob, id)
	} else if !errors.Is(err, grouping.ErrWindowNotFound) {
		return err
	}
	return nil
}

// Schedule registers req to be sent on a recurring or timezone-aware
// one-shot schedule and returns the schedule id. Preferences and templates
// are applied once, at registration.
func (o *Orchestrator) Schedule(ctx context.Context, req Request, in ScheduleInput) (string, error) {
	if o.scheduler == nil {
		return "", ErrSchedulerDisabled
	}

	job, err := o.build(ctx, req)
	if err != nil {
		return "", err
	}
	job.ID = ""
	job.NotBefore = time.Time{}

	spec, err := o.scheduler.Register(ctx, &schedule.Spec{
		ID:             in.ID,
		CronExpression: in.CronExpression,
		FireAt:         in.FireAt,
		Timezone:       in.Timezone,
		SkipWeekends:   in.SkipWeekends,
		SkipHolidays:   in.SkipHolidays,
		HolidayRegion:  in.HolidayRegion,
		MaxOccurrences: in.MaxOccurrences,
		Template:       *job,
	})
	if err != nil {
		return "", err
	}
	return spec.ID, nil
}

// CancelSchedule retires a schedule so it emits no further jobs.
func (o *Orchestrator) CancelSchedule(ctx context.Context, specID string) error {
	if o.scheduler == nil {
		return ErrSchedulerDisabled
	}
	return o.scheduler.Retire(ctx, specID)
}

// GetJobStatus reports where a notification is. A job merged into a group
// window is pending until the window flushes and then follows the digest.
func (o *Orchestrator) GetJobStatus(ctx context.Context, jobID string) (*Status, error) {
	job, err := o.queue.Get(ctx, jobID)
	if err == nil {
		st := &Status{JobID: jobID, State: job.State, Job: job}
		if o.grouping != nil && job.GroupKey != "" {
			if w, err := o.grouping.Lookup(ctx, jobID); err == nil {
				st.Window = w
			}
		}
		return st, nil
	}
	if !errors.Is(err, queue.ErrJobNotFound) || o.grouping == nil {
		return nil, err
	}

	w, werr := o.grouping.Lookup(ctx, jobID)
	if werr != nil {
		if errors.Is(werr, grouping.ErrWindowNotFound) {
			return nil, err
		}
		return nil, werr
	}

	st := &Status{JobID: jobID, State: queue.StatePending, Window: w}
	if w.DigestJobID != "" {
		digest, err := o.queue.Get(ctx, w.DigestJobID)
		if err != nil {
			return nil, err
		}
		st.State = digest.State
		st.Job = digest
	}
	return st, nil
}

// ReplayDeadLetter puts a dead job back on the queue with its attempt count
// reset.
func (o *Orchestrator) ReplayDeadLetter(ctx context.Context, jobID string) (*queue.Job, error) {
	if o.deadLetters == nil {
		return nil, ErrDeadLettersDisabled
	}
	return o.deadLetters.Replay(ctx, jobID, o.queue)
}

// GetQueueDepth counts jobs not yet resolved, optionally for one priority.
func (o *Orchestrator) GetQueueDepth(ctx context.Context, priority *queue.Priority) (int, error) {
	return o.queue.Depth(ctx, priority)
}

// GetDeadLetterCount counts dead letters not yet replayed.
func (o *Orchestrator) GetDeadLetterCount(ctx context.Context) (int, error) {
	if o.deadLetters == nil {
		return 0, ErrDeadLettersDisabled
	}
	return o.deadLetters.Count(ctx)
}

// build validates req, applies preferences and rendering, and returns the job.
func (o *Orchestrator) build(ctx context.Context, req Request) (*queue.Job, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if req.Type == "" {
		return nil, fmt.Errorf("%w: type is required", ErrInvalidRequest)
	}
	priority := req.Priority
	if priority == 0 {
		priority = queue.PriorityDefault
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, queue.ErrInvalidPriority)
	}

	requested := req.Channels
	if len(requested) == 0 {
		requested = o.channels
	}
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: at least one channel is required", ErrInvalidRequest)
	}

	channels, err := o.allowedChannels(ctx, req.UserID, req.Type, requested)
	if err != nil {
		return nil, err
	}

	subject, body := req.Subject, req.Body
	if req.TemplateID != "" {
		if o.renderer == nil {
			return nil, ErrRendererMissing
		}
		out, err := o.renderer.Render(ctx, req.TemplateID, req.Vars)
		if err != nil {
			return nil, err
		}
		subject, body = out.Subject, out.Body
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	job := &queue.Job{
		ID:          id,
		UserID:      req.UserID,
		Type:        req.Type,
		Priority:    priority,
		MaxAttempts: req.MaxAttempts,
		NotBefore:   req.NotBefore,
		Payload: queue.Payload{
			Subject:  subject,
			Body:     body,
			Data:     maps.Clone(req.Data),
			Channels: channels,
		},
	}
	for ch, addr := range req.Recipients {
		if slices.Contains(channels, ch) {
			if job.Payload.Recipients == nil {
				job.Payload.Recipients = make(map[string]string)
			}
			job.Payload.Recipients[ch] = addr
		}
	}
	return job, nil
}

func (o *Orchestrator) allowedChannels(ctx context.Context, userID, typ string, requested []string) ([]string, error) {
	out := make([]string, 0, len(requested))
	for _, ch := range requested {
		if ch == "" || slices.Contains(out, ch) {
			continue
		}
		if o.prefs != nil {
			ok, err := o.prefs.ShouldSend(ctx, userID, typ, ch)
			if err != nil {
				return nil, errors.Join(ErrPreferenceLookup, err)
			}
			if !ok {
				o.logger.DebugContext(ctx, "channel suppressed by preference",
					logger.UserID(userID),
					slog.String("type", typ),
					logger.Channel(ch))
				continue
			}
		}
		out = append(out, ch)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: user %s, type %s", ErrSuppressed, userID, typ)
	}
	return out, nil
}
