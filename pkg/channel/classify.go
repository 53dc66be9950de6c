package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Classify maps a delivery error to a Status.
//
//	timeout, network, provider 5xx, provider throttling -> retryable
//	invalid recipient, unsubscribed, bounced, rejected  -> permanent
//	authentication and configuration failures           -> permanent
//	anything unrecognised                               -> retryable
func Classify(err error) Status {
	if err == nil {
		return StatusSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrUnsubscribed),
		errors.Is(err, ErrBounced),
		errors.Is(err, ErrRejected),
		errors.Is(err, ErrUnknownChannel),
		errors.Is(err, ErrAuth),
		errors.Is(err, ErrConfig):
		return StatusPermanent
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrNetwork),
		errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrRateLimited):
		return StatusRetryable
	}
	return StatusRetryable
}

// HTTPStatusError converts an HTTP response status into a delivery error,
// or nil for 2xx.
func HTTPStatusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuth, code)
	case code == http.StatusNotFound, code == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrInvalidRecipient, code)
	case code == http.StatusRequestTimeout:
		return fmt.Errorf("%w: status %d", ErrTimeout, code)
	case code == http.StatusTooEarly, code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	case code >= 400 && code < 500:
		return fmt.Errorf("%w: status %d", ErrRejected, code)
	default:
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, code)
	}
}
