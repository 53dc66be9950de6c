package webhook

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithName sets the channel name the adapter registers under. Default "webhook".
func WithName(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.name = name
		}
	}
}

// WithSecret enables HMAC-SHA256 request signing.
func WithSecret(secret string) Option {
	return func(a *Adapter) {
		a.secret = secret
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) {
		if client != nil {
			a.client = client
		}
	}
}

// WithTimeout bounds a single request. Default 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(a *Adapter) {
		if key != "" && value != "" {
			a.headers.Set(key, value)
		}
	}
}

// WithCircuitBreaker configures the per-host circuit breakers.
func WithCircuitBreaker(failureThreshold, successThreshold int, recoveryTimeout time.Duration) Option {
	return func(a *Adapter) {
		a.breakers.failures = failureThreshold
		a.breakers.success = successThreshold
		a.breakers.recovery = recoveryTimeout
	}
}

// WithClock overrides the time source for signatures and breakers.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
			a.breakers.now = now
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}
