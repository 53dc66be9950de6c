package channel

import "errors"

// Delivery errors. Adapters wrap provider failures with one of these so
// Classify can decide between retry and dead letter.
var (
	// Retryable
	ErrTimeout             = errors.New("delivery timed out")
	ErrNetwork             = errors.New("network failure")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrRateLimited         = errors.New("provider rate limited")

	// Permanent
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrUnsubscribed     = errors.New("recipient unsubscribed")
	ErrBounced          = errors.New("recipient permanently bounced")
	ErrRejected         = errors.New("provider rejected message")
	ErrUnknownChannel   = errors.New("unknown channel")

	// Configuration; retrying cannot help until an operator intervenes
	ErrAuth   = errors.New("provider authentication failed")
	ErrConfig = errors.New("channel misconfigured")

	ErrAdapterNil       = errors.New("adapter cannot be nil")
	ErrDuplicateAdapter = errors.New("adapter already registered")
)
