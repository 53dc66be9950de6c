package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one attribute out of a context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

type jobKey struct{}
type workerKey struct{}

// WithJob stores the job id in ctx so every record logged with ctx
// carries it.
func WithJob(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobKey{}, jobID)
}

// WithWorker stores the worker id in ctx.
func WithWorker(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, workerKey{}, workerID)
}

// JobExtractor adds job_id from ctx.
func JobExtractor(ctx context.Context) (slog.Attr, bool) {
	if id, ok := ctx.Value(jobKey{}).(string); ok && id != "" {
		return JobID(id), true
	}
	return slog.Attr{}, false
}

// WorkerExtractor adds worker_id from ctx.
func WorkerExtractor(ctx context.Context) (slog.Attr, bool) {
	if id, ok := ctx.Value(workerKey{}).(string); ok && id != "" {
		return WorkerID(id), true
	}
	return slog.Attr{}, false
}

// contextHandler runs the extractors at Handle time, so values added to a
// context after the logger was built still show up.
type contextHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), extractors: h.extractors}
}
