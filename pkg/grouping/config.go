package grouping

import "time"

// Config holds grouping engine tunables.
type Config struct {
	// SweepInterval is how often Run looks for windows past their end.
	SweepInterval time.Duration `env:"GROUPING_SWEEP_INTERVAL" envDefault:"15s"`
	// FlushTimeout bounds a single timer-driven flush.
	FlushTimeout time.Duration `env:"GROUPING_FLUSH_TIMEOUT" envDefault:"30s"`
	// StaleFlushAfter is how long a window may stay flushing before a sweep
	// resumes the flush.
	StaleFlushAfter time.Duration `env:"GROUPING_STALE_FLUSH_AFTER" envDefault:"1m"`
	// SweepBatchSize limits windows flushed per sweep.
	SweepBatchSize int `env:"GROUPING_SWEEP_BATCH_SIZE" envDefault:"100"`
	// Retention is how long a MemoryStore keeps flushed windows for status
	// lookups. Zero keeps them forever.
	Retention time.Duration `env:"GROUPING_RETENTION" envDefault:"24h"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		SweepInterval:   15 * time.Second,
		FlushTimeout:    30 * time.Second,
		StaleFlushAfter: time.Minute,
		SweepBatchSize:  100,
		Retention:       DefaultRetention,
	}
}
