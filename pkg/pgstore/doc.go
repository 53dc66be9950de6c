// Package pgstore implements the notifykit storage contracts on PostgreSQL.
//
// QueueRepository backs queue.Queue, SpecRepository backs schedule.Scheduler,
// WindowStore backs grouping.Engine and DeadLetterStorage backs
// deadletter.Sink. All of them expect the schema applied by pg.Migrate and
// accept any DB, which *pgxpool.Pool satisfies.
//
// Leasing claims jobs with a single UPDATE over a FOR UPDATE SKIP LOCKED
// subquery, so concurrent workers in different processes never receive the
// same job. Every other state change is a conditional UPDATE whose WHERE
// clause carries the expected state, lease owner or version.
package pgstore
