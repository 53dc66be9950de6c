package webhook

import (
	"sync"
	"time"
)

// CircuitState represents the current state of a circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calls to an endpoint after consecutive failures and
// lets a probe through once recoveryTimeout has passed.
type CircuitBreaker struct {
	mu  sync.Mutex
	now func() time.Time

	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration

	state           CircuitState
	failures        int
	successCount    int
	lastFailureTime time.Time
}

// NewCircuitBreaker creates a circuit breaker. Non-positive values fall
// back to 5 failures, 2 successes and 30 seconds.
func NewCircuitBreaker(failureThreshold, successThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 2
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}

	return &CircuitBreaker{
		now:              time.Now,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// Allow reports whether a request may proceed. An open circuit past its
// recovery timeout moves to half-open and allows the probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.recoveryTimeout {
			cb.state = CircuitHalfOpen
			cb.successCount = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = CircuitClosed
			cb.failures = 0
			cb.successCount = 0
		}
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = CircuitOpen
		}
	case CircuitHalfOpen:
		cb.state = CircuitOpen
		cb.successCount = 0
	}
}

// State returns the current state. An open circuit past its recovery
// timeout reports half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailureTime) > cb.recoveryTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.successCount = 0
	cb.lastFailureTime = time.Time{}
}

// breakers keeps one circuit breaker per endpoint host.
type breakers struct {
	mu       sync.Mutex
	byHost   map[string]*CircuitBreaker
	failures int
	success  int
	recovery time.Duration
	now      func() time.Time
}

func (b *breakers) get(host string) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	cb, ok := b.byHost[host]
	if !ok {
		cb = NewCircuitBreaker(b.failures, b.success, b.recovery)
		if b.now != nil {
			cb.now = b.now
		}
		b.byHost[host] = cb
	}
	return cb
}
