package schedule

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Scheduler
type Option func(*Scheduler)

// WithCalendar sets the holiday calendar consulted for SkipHolidays specs.
func WithCalendar(cal HolidayCalendar) Option {
	return func(s *Scheduler) {
		s.calendar = cal
	}
}

// WithCheckInterval sets how often the scheduler looks for due specs
func WithCheckInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBatchSize limits how many due specs a single tick materializes.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger for the scheduler
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}
