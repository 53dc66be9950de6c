package dispatcher

import "errors"

var (
	// ErrQueueNil is returned when no queue is provided
	ErrQueueNil = errors.New("queue cannot be nil")

	// ErrRegistryNil is returned when no channel registry is provided
	ErrRegistryNil = errors.New("channel registry cannot be nil")

	// ErrAlreadyStarted is returned by Start on a running pool
	ErrAlreadyStarted = errors.New("dispatcher already started")

	// ErrNotStarted is returned by Stop on a pool that is not running
	ErrNotStarted = errors.New("dispatcher not started")

	// ErrAdapterPanic wraps a panic raised inside a channel adapter
	ErrAdapterPanic = errors.New("channel adapter panicked")

	// ErrNoResult is reported when an adapter fails without an error value
	ErrNoResult = errors.New("channel adapter reported failure without an error")
)
