package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notify"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/schedule"
)

// Orchestrator is the part of *notify.Orchestrator the handler drives.
type Orchestrator interface {
	Submit(ctx context.Context, req notify.Request) (string, error)
	Schedule(ctx context.Context, req notify.Request, in notify.ScheduleInput) (string, error)
	CancelSchedule(ctx context.Context, specID string) error
}

// Handler applies commands to an orchestrator.
type Handler struct {
	orch       Orchestrator
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithRetry sets how many times a command failing for a transient reason is
// attempted and the delay before the second attempt, doubled after each.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(h *Handler) {
		if attempts > 0 {
			h.attempts = attempts
		}
		if delay > 0 {
			h.retryDelay = delay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a command handler.
func NewHandler(orch Orchestrator, opts ...Option) (*Handler, error) {
	if orch == nil {
		return nil, ErrOrchestratorNil
	}
	h := &Handler{
		orch:       orch,
		attempts:   3,
		retryDelay: 200 * time.Millisecond,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle implements kafka.Handler. Commands that can never succeed, and
// commands already applied, return without retrying.
func (h *Handler) Handle(ctx context.Context, r *kgo.Record) error {
	cmd, err := Decode(r)
	if err != nil {
		return err
	}

	delay := h.retryDelay
	for attempt := 1; ; attempt++ {
		err = h.apply(ctx, cmd)
		if err == nil || !transient(err) || attempt >= h.attempts {
			break
		}
		h.logger.WarnContext(ctx, "command failed, retrying",
			logger.Component("ingest"),
			slog.String("command_id", cmd.CommandID),
			logger.Attempt(attempt),
			logger.Error(err))
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, queue.ErrDuplicateJob), errors.Is(err, schedule.ErrDuplicateSpec):
		h.logger.DebugContext(ctx, "command already applied",
			logger.Component("ingest"),
			slog.String("command_id", cmd.CommandID))
		return nil
	case errors.Is(err, notify.ErrSuppressed):
		h.logger.InfoContext(ctx, "command suppressed by preferences",
			logger.Component("ingest"),
			slog.String("command_id", cmd.CommandID))
		return nil
	default:
		return err
	}
}

func (h *Handler) apply(ctx context.Context, cmd *Command) error {
	switch cmd.Action {
	case ActionSchedule:
		id, err := h.orch.Schedule(ctx, *cmd.Request, *cmd.Schedule)
		if err == nil {
			h.logger.InfoContext(ctx, "schedule registered from command",
				logger.Component("ingest"),
				logger.SpecID(id))
		}
		return err
	case ActionCancelSchedule:
		err := h.orch.CancelSchedule(ctx, cmd.ScheduleID)
		if errors.Is(err, schedule.ErrSpecNotFound) {
			return nil
		}
		return err
	default:
		id, err := h.orch.Submit(ctx, *cmd.Request)
		if err == nil {
			h.logger.DebugContext(ctx, "notification submitted from command",
				logger.Component("ingest"),
				logger.JobID(id))
		}
		return err
	}
}

// transient reports whether err may go away on its own. Validation,
// preference and template failures never do.
func transient(err error) bool {
	for _, permanent := range []error{
		ErrInvalidCommand,
		notify.ErrInvalidRequest,
		notify.ErrSuppressed,
		notify.ErrTemplateNotFound,
		notify.ErrRenderFailed,
		notify.ErrRendererMissing,
		notify.ErrSchedulerDisabled,
		queue.ErrDuplicateJob,
		queue.ErrInvalidPriority,
		schedule.ErrDuplicateSpec,
		schedule.ErrInvalidCron,
		schedule.ErrInvalidTimezone,
		schedule.ErrInvalidSpec,
		schedule.ErrNoNextFire,
		context.Canceled,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}
