package dispatcher

import "time"

// Config holds the worker pool tunables. Worker count and batch size are
// fixed for the life of the pool.
type Config struct {
	Workers         int           `env:"DISPATCHER_WORKERS" envDefault:"4"`
	BatchSize       int           `env:"DISPATCHER_BATCH_SIZE" envDefault:"10"`
	IdleMin         time.Duration `env:"DISPATCHER_IDLE_MIN" envDefault:"100ms"`
	IdleMax         time.Duration `env:"DISPATCHER_IDLE_MAX" envDefault:"5s"`
	DeliveryTimeout time.Duration `env:"DISPATCHER_DELIVERY_TIMEOUT" envDefault:"30s"`
	ReapInterval    time.Duration `env:"DISPATCHER_REAP_INTERVAL" envDefault:"30s"`
	RecoverBatch    int           `env:"DISPATCHER_RECOVER_BATCH" envDefault:"100"`
	// NodeID prefixes worker ids. Empty means a random id per pool.
	NodeID string `env:"DISPATCHER_NODE_ID"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		BatchSize:       10,
		IdleMin:         100 * time.Millisecond,
		IdleMax:         5 * time.Second,
		DeliveryTimeout: 30 * time.Second,
		ReapInterval:    30 * time.Second,
		RecoverBatch:    100,
	}
}
