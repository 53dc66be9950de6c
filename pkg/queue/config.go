package queue

import "time"

// Config holds the tunables of the queue store.
type Config struct {
	LeaseDuration      time.Duration `env:"QUEUE_LEASE_DURATION" envDefault:"2m"`
	BackoffBase        time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"5s"`
	BackoffMax         time.Duration `env:"QUEUE_BACKOFF_MAX" envDefault:"30m"`
	BackoffJitter      float64       `env:"QUEUE_BACKOFF_JITTER" envDefault:"0.2"`
	ThrottleDelay      time.Duration `env:"QUEUE_THROTTLE_DELAY" envDefault:"2s"`
	DefaultMaxAttempts int           `env:"QUEUE_DEFAULT_MAX_ATTEMPTS" envDefault:"5"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		LeaseDuration:      2 * time.Minute,
		BackoffBase:        5 * time.Second,
		BackoffMax:         30 * time.Minute,
		BackoffJitter:      0.2,
		ThrottleDelay:      2 * time.Second,
		DefaultMaxAttempts: 5,
	}
}

// Backoff returns the retry backoff described by the config.
func (c Config) Backoff() Backoff {
	return Backoff{Base: c.BackoffBase, Max: c.BackoffMax, Jitter: c.BackoffJitter}
}
