package commands

import (
	"context"
	"io"
	"log/slog"

	"github.com/dmitrymomot/notifykit/internal/service"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

type Flags struct {
	EnvFiles   []string
	PolicyFile string
	LogLevel   string

	// Config, Policy and Logger are set by Load in the Before hook and
	// available to all commands.
	Config *config.Service
	Policy *config.Policy
	Logger *slog.Logger
}

// Load reads the .env files and environment into Config, loads the policy
// file and builds the logger, which writes to logOut. Flag values override
// the environment.
func (f *Flags) Load(logOut io.Writer) error {
	if err := config.LoadEnv(f.EnvFiles...); err != nil {
		return err
	}

	var cfg config.Service
	if err := config.Load(&cfg); err != nil {
		return err
	}
	if f.PolicyFile != "" {
		cfg.PolicyFile = f.PolicyFile
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return err
	}

	f.Config = &cfg
	f.Policy = policy
	f.Logger = logger.FromConfig(cfg.Log, logger.WithOutput(logOut))
	return nil
}

func (f *Flags) requirePostgres() error {
	if f.Config == nil {
		return ErrNotLoaded
	}
	if !f.Config.Postgres.Enabled() {
		return ErrPostgresRequired
	}
	return nil
}

// open builds the service for a one-shot command. Background loops are not
// started.
func (f *Flags) open(ctx context.Context) (*service.App, error) {
	if err := f.requirePostgres(); err != nil {
		return nil, err
	}
	return service.New(ctx, *f.Config, f.Policy, f.Logger)
}
