package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrJobNil is returned when attempting to enqueue a nil job
	ErrJobNil = errors.New("job cannot be nil")

	// ErrDuplicateJob is returned when a job with the same id already exists
	ErrDuplicateJob = errors.New("job already exists")

	// ErrJobNotFound is returned when no job exists for the given id
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidPriority is returned for unknown priority values
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidJob is returned when a job is missing required fields
	ErrInvalidJob = errors.New("invalid job")

	// ErrStateConflict is returned when a compare-and-set transition loses
	ErrStateConflict = errors.New("job state changed concurrently")

	// ErrLeaseLost is returned when the caller no longer owns the job's lease
	ErrLeaseLost = errors.New("lease is not held by this worker")

	// ErrNotDead is returned when reviving a job that is not dead
	ErrNotDead = errors.New("job is not dead")

	// ErrFailedToLease is returned when leasing jobs from storage fails
	ErrFailedToLease = errors.New("failed to lease jobs from storage")

	// ErrFailedToAck is returned when acknowledging a job fails
	ErrFailedToAck = errors.New("failed to acknowledge job")

	// ErrFailedToDeadLetter is returned when recording a dead letter fails
	ErrFailedToDeadLetter = errors.New("failed to record dead letter")
)
