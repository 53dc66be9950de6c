// Package notifykit is a notification dispatch core: it accepts notification
// requests, queues them by priority, and delivers them through pluggable
// channels with retries, rate limits, scheduling, digests and dead letters.
//
// The module is a set of libraries plus the notifyd binary that wires them
// together.
//
// Core:
//
//   - pkg/queue: durable priority queue with leases and an explicit Ack contract
//   - pkg/dispatcher: worker pool pulling from the queue, lease reaper
//   - pkg/schedule: cron and timezone-aware one-shot schedules
//   - pkg/grouping: time-window aggregation of notifications into digests
//   - pkg/deadletter: dead letter sink and operator replay
//   - pkg/ratelimiter: token buckets per channel and per user
//   - pkg/notify: the orchestrator (Submit, Schedule, GetJobStatus, ...)
//
// Channels: pkg/channel (adapter contract and registry), pkg/email (Postmark),
// pkg/webhook (signed HTTP callbacks), pkg/inbox (in-app feed), pkg/kafka
// (push events and the command topic consumer).
//
// Storage and plumbing: pkg/pg and pkg/pgstore (Postgres), pkg/redis,
// pkg/mongo, pkg/config, pkg/logger, pkg/cache.
//
// Basic usage:
//
//	q, _ := queue.New(queue.NewMemoryStorage())
//	registry, _ := channel.NewRegistry(channel.NewLogAdapter("log", slog.Default()))
//	pool, _ := dispatcher.New(q, registry, nil)
//	orch, _ := notify.New(q, notify.WithDefaultChannels("log"))
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(pool.Run(ctx))
//
//	id, err := orch.Submit(ctx, notify.Request{UserID: "u1", Type: "welcome", Body: "Hi"})
package notifykit
