package logger

import "log/slog"

// Config holds logger settings loaded from the environment.
type Config struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"APP_NAME" envDefault:"notifyd"`
	Level   string `env:"LOG_LEVEL"`
	Format  Format `env:"LOG_FORMAT"`
	Source  bool   `env:"LOG_SOURCE"`
}

// FromConfig builds a logger from cfg. Environment defaults are applied
// first; explicit Level and Format override them. Job and worker ids stored
// in the context are added to every record.
func FromConfig(cfg Config, opts ...Option) *slog.Logger {
	all := []Option{WithEnvironment(cfg.Env, cfg.Service)}
	if cfg.Level != "" {
		all = append(all, WithLevel(ParseLevel(cfg.Level)))
	}
	if cfg.Format != "" {
		all = append(all, WithFormat(cfg.Format))
	}
	if cfg.Source {
		all = append(all, WithSource())
	}
	all = append(all, WithContextExtractors(JobExtractor, WorkerExtractor))
	return New(append(all, opts...)...)
}
