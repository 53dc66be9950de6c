// Package deadletter keeps a durable, queryable record of notification jobs
// that will never be retried automatically: jobs that exhausted their attempts
// and jobs classified as permanent failures.
//
// Sink implements queue.DeadLetterRecorder. Records are append-only; Replay is
// an explicit operator action that revives the job through a Reviver (the
// queue) with its attempt count reset and marks the record replayed.
//
// Storage backends: MemoryStorage for tests and MongoStorage for production.
// A Postgres backend lives in pkg/pgstore.
package deadletter
