package ratelimiter

import "errors"

// Package-level error definitions for rate limiter operations.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidTokenCount indicates that the requested token count is invalid.
	ErrInvalidTokenCount = errors.New("invalid token count")

	// ErrStoreNil indicates that no store was provided.
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrStoreUnavailable indicates that the store backend is unavailable.
	ErrStoreUnavailable = errors.New("store unavailable")
)
