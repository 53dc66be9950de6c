package schedule

import "time"

// Config holds scheduler tunables.
type Config struct {
	CheckInterval time.Duration `env:"SCHEDULER_CHECK_INTERVAL" envDefault:"1m"`
	BatchSize     int           `env:"SCHEDULER_BATCH_SIZE" envDefault:"100"`
}

// WithConfig applies cfg. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		WithCheckInterval(cfg.CheckInterval)(s)
		WithBatchSize(cfg.BatchSize)(s)
	}
}
