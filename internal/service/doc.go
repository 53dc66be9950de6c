// Package service assembles a notifyd process from configuration.
//
// New connects the configured backends and builds every component: durable
// stores on Postgres (or in memory when Postgres is not configured), dead
// letters on MongoDB when configured, Redis-backed rate limits and
// cross-process wake-ups, the channel adapters, and the orchestrator. Run
// starts the background loops under one errgroup; Close releases the
// backends.
package service
