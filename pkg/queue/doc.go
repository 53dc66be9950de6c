// Package queue provides the durable, priority-ordered notification job queue
// with lease based concurrency control.
//
// A Queue owns every job state transition and delegates storage to a
// Repository. Two implementations exist: MemoryStorage in this package for
// tests and single-process setups, and the Postgres repository in pkg/pgstore
// for multi-process deployments.
//
// # Lifecycle
//
//	Enqueue        -> queued (or scheduled when NotBefore is in the future)
//	Lease          -> leased, owned by one worker until LeaseExpiresAt
//	BeginDelivery  -> delivering
//	Ack(success)   -> succeeded
//	Ack(retry)     -> queued with exponential backoff, or dead at MaxAttempts
//	Ack(throttle)  -> queued after a fixed delay, Attempt unchanged
//	Ack(dead)      -> dead, recorded by the DeadLetterRecorder
//	ReapExpiredLeases -> queued, Attempt unchanged
//	Revive         -> queued with Attempt reset (operator replay only)
//
// Lease order is priority DESC, NotBefore ASC, CreatedAt ASC. FIFO within a
// tier holds only among jobs returned by the same Lease call.
//
// # Usage
//
//	q, err := queue.New(queue.NewMemoryStorage(),
//		queue.WithDeadLetters(sink),
//		queue.WithConfig(cfg.Queue),
//	)
//	if err != nil {
//		return err
//	}
//
//	_, err = q.Enqueue(ctx, &queue.Job{
//		ID:       uuid.NewString(),
//		UserID:   "user-42",
//		Type:     "comment",
//		Priority: queue.PriorityHigh,
//		Payload:  queue.Payload{Subject: "New comment", Channels: []string{"email"}},
//	})
//
//	jobs, _ := q.Lease(ctx, workerID, 10, time.Now())
//	for _, job := range jobs {
//		_, _ = q.Ack(ctx, job.ID, queue.OutcomeSuccess, queue.WithLeaseOwner(workerID))
//	}
package queue
