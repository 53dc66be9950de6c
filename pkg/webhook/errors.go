package webhook

import "errors"

// Webhook errors. Delivery failures are additionally wrapped with a
// channel error so the dispatcher can classify them.
var (
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrInvalidURL           = errors.New("invalid webhook URL")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrCircuitOpen          = errors.New("webhook circuit breaker is open")
)

// IsCircuitOpen checks if an error indicates the circuit breaker is open
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
