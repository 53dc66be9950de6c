package webhook

import "time"

// Config holds webhook channel settings.
type Config struct {
	Secret           string        `env:"WEBHOOK_SECRET"`
	Timeout          time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
	FailureThreshold int           `env:"WEBHOOK_BREAKER_FAILURES" envDefault:"5"`
	SuccessThreshold int           `env:"WEBHOOK_BREAKER_SUCCESSES" envDefault:"2"`
	RecoveryTimeout  time.Duration `env:"WEBHOOK_BREAKER_RECOVERY" envDefault:"30s"`
}

// Options converts the config into adapter options.
func (c Config) Options() []Option {
	return []Option{
		WithSecret(c.Secret),
		WithTimeout(c.Timeout),
		WithCircuitBreaker(c.FailureThreshold, c.SuccessThreshold, c.RecoveryTimeout),
	}
}
