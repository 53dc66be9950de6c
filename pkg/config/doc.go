// Package config loads notifyd configuration.
//
// Load parses environment variables into any struct with env tags using
// caarlos0/env, reading a .env file first when present, and caches one value
// per type. Service aggregates the sections of every notifykit component:
//
//	var cfg config.Service
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Operational policy that does not fit flat variables (rate limits per
// channel, grouping rules, holiday calendars, inline templates) lives in a
// YAML file read with LoadPolicy.
//
// ResetCache clears cached values, which tests use after changing the
// environment.
package config
