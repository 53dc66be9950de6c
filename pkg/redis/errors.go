package redis

import "errors"

var (
	// ErrNoURL is returned by Connect when REDIS_URL is empty.
	ErrNoURL = errors.New("redis: connection url is empty")
	// ErrInvalidURL wraps go-redis URL parse failures.
	ErrInvalidURL = errors.New("redis: invalid connection url")
	// ErrNotReady is returned when the server did not answer a ping within
	// the retry budget.
	ErrNotReady  = errors.New("redis: server not ready")
	ErrUnhealthy = errors.New("redis: healthcheck failed")
)
