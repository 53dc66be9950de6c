// Package dispatcher runs the worker pool that drains the notification queue.
//
// Each worker repeatedly leases a batch of jobs, moves every job to
// delivering and sends it over each payload channel that has not been
// delivered yet. Channels are checked against a rate limiter first; denied
// channels are left for a later attempt. Every adapter call runs under a
// hard timeout, so an adapter that ignores its context still yields a
// retryable timeout.
//
// The job is then acknowledged with a single outcome, in this order of
// precedence: dead (a permanent failure), retry (a transient failure),
// throttle (a channel was rate limited) and success. Channels delivered on
// this attempt are carried on the ack so later attempts skip them.
//
// # Usage
//
//	pool, err := dispatcher.New(q, registry, policy,
//		dispatcher.WithConfig(cfg),
//		dispatcher.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(pool.Run(ctx))
//
// When a worker leases nothing it sleeps with a jittered exponential backoff
// between IdleMin and IdleMax. Wake cuts the sleep short; wire it to the
// queue's enqueue hook or a cross-process signal so fresh jobs are picked up
// immediately.
//
// A reaper goroutine returns expired leases to the queue and retries
// dead-letter routing for jobs stuck in failed.
package dispatcher
