package schedule

import "errors"

// Common errors
var (
	// ErrInvalidCron is returned when a cron expression cannot be parsed
	ErrInvalidCron = errors.New("invalid cron expression")

	// ErrInvalidTimezone is returned for unknown IANA timezone names
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrInvalidSpec is returned when a schedule spec is incomplete or contradictory
	ErrInvalidSpec = errors.New("invalid schedule spec")

	// ErrNoNextFire is returned when a spec has no future occurrence
	ErrNoNextFire = errors.New("schedule has no next fire time")

	// ErrSpecNotFound is returned when no spec exists for the given id
	ErrSpecNotFound = errors.New("schedule spec not found")

	// ErrDuplicateSpec is returned when a spec with the same id already exists
	ErrDuplicateSpec = errors.New("schedule spec already exists")

	// ErrStaleSpec is returned when a spec was modified concurrently
	ErrStaleSpec = errors.New("schedule spec was modified concurrently")

	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrEnqueuerNil is returned when a nil enqueuer is provided
	ErrEnqueuerNil = errors.New("enqueuer cannot be nil")
)
