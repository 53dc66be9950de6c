package redis

import "time"

// Config configures the Redis connection. An empty ConnectionURL leaves Redis
// disabled; rate limits then stay process-local and workers are woken only
// by enqueues in their own process.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                            // ConnectionURL in the form "redis://:password@localhost:6379/0".
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`  // RetryAttempts is the number of connection attempts.
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"` // RetryInterval is the pause between attempts.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	WakeChannel    string        `env:"REDIS_WAKE_CHANNEL" envDefault:"notifykit:wake"` // WakeChannel carries enqueue notifications between processes.
}

// Enabled reports whether a connection URL is configured.
func (c Config) Enabled() bool {
	return c.ConnectionURL != ""
}
