package channel

import (
	"context"
	"log/slog"
)

// LogAdapter writes messages to a logger instead of delivering them.
// Used for local development and as a sink for channels without a provider.
type LogAdapter struct {
	name   string
	logger *slog.Logger
}

// NewLogAdapter creates an adapter for channel name. A nil logger means slog.Default().
func NewLogAdapter(name string, logger *slog.Logger) *LogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAdapter{name: name, logger: logger}
}

// Name implements Adapter
func (a *LogAdapter) Name() string {
	return a.name
}

// Deliver implements Adapter
func (a *LogAdapter) Deliver(ctx context.Context, msg Message) Result {
	if err := ctx.Err(); err != nil {
		return FromError(err)
	}
	a.logger.InfoContext(ctx, "notification delivered",
		slog.String("channel", a.name),
		slog.String("job_id", msg.JobID),
		slog.String("user_id", msg.UserID),
		slog.String("recipient", msg.Recipient),
		slog.String("subject", msg.Subject))
	return Success(msg.JobID)
}
