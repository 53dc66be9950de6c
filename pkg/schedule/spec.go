package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// jobNamespace seeds the deterministic ids of materialized jobs.
var jobNamespace = uuid.MustParse("5f0e4a52-2b8c-4d0e-8f7a-6c1b9d3e2a10")

// maxSkippedDays bounds the search for a day that is neither a weekend
// nor a holiday.
const maxSkippedDays = 400

// Spec describes when a notification template turns into jobs.
// Exactly one of CronExpression and FireAt is set.
type Spec struct {
	ID               string     `json:"id"`
	CronExpression   string     `json:"cron_expression,omitempty"`
	FireAt           *time.Time `json:"fire_at,omitempty"`
	Timezone         string     `json:"timezone"`
	SkipWeekends     bool       `json:"skip_weekends"`
	SkipHolidays     bool       `json:"skip_holidays"`
	HolidayRegion    string     `json:"holiday_region,omitempty"`
	MaxOccurrences   *int       `json:"max_occurrences,omitempty"`
	OccurrencesSoFar int        `json:"occurrences_so_far"`
	NextFireAt       *time.Time `json:"next_fire_at,omitempty"`
	Retired          bool       `json:"retired"`
	Template         queue.Job  `json:"template"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of the spec.
func (s *Spec) Clone() *Spec {
	c := *s
	if s.FireAt != nil {
		t := *s.FireAt
		c.FireAt = &t
	}
	if s.NextFireAt != nil {
		t := *s.NextFireAt
		c.NextFireAt = &t
	}
	if s.MaxOccurrences != nil {
		n := *s.MaxOccurrences
		c.MaxOccurrences = &n
	}
	c.Template = *s.Template.Clone()
	return &c
}

// Validate checks that the spec is complete.
func (s *Spec) Validate() error {
	switch {
	case s.CronExpression == "" && s.FireAt == nil:
		return fmt.Errorf("%w: cron expression or fire time is required", ErrInvalidSpec)
	case s.CronExpression != "" && s.FireAt != nil:
		return fmt.Errorf("%w: cron expression and fire time are mutually exclusive", ErrInvalidSpec)
	case s.MaxOccurrences != nil && *s.MaxOccurrences <= 0:
		return fmt.Errorf("%w: max occurrences must be positive", ErrInvalidSpec)
	case len(s.Template.Payload.Channels) == 0:
		return fmt.Errorf("%w: template has no channels", ErrInvalidSpec)
	}

	if s.CronExpression != "" {
		if _, err := ParseCron(s.CronExpression); err != nil {
			return err
		}
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the spec timezone. Empty means UTC.
func (s *Spec) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidTimezone, s.Timezone, err)
	}
	return loc, nil
}

// Exhausted reports whether the spec emitted all its occurrences.
func (s *Spec) Exhausted() bool {
	return s.MaxOccurrences != nil && s.OccurrencesSoFar >= *s.MaxOccurrences
}

// Due reports whether the spec should be materialized at now.
func (s *Spec) Due(now time.Time) bool {
	return !s.Retired && s.NextFireAt != nil && !s.NextFireAt.After(now)
}

// JobID derives the id of the job materialized for one occurrence.
// The same spec and fire time always produce the same id.
func JobID(specID string, fireAt time.Time) string {
	return uuid.NewSHA1(jobNamespace, []byte(specID+"|"+fireAt.UTC().Format(time.RFC3339Nano))).String()
}

// ComputeNextFire returns the next fire time strictly after after, in UTC.
//
// Cron fields are evaluated in the spec timezone using the offset at the
// candidate instant, so a 09:00 job stays at 09:00 local across DST changes.
// A candidate on a skipped day (weekend or holiday) restarts the search at
// the next local midnight. A one-shot FireAt on a skipped day moves to the
// same wall clock time on the next valid day. cal may be nil.
func ComputeNextFire(spec *Spec, after time.Time, cal HolidayCalendar) (time.Time, error) {
	loc, err := spec.Location()
	if err != nil {
		return time.Time{}, err
	}

	skipped := func(t time.Time) bool {
		if spec.SkipWeekends && (t.Weekday() == time.Saturday || t.Weekday() == time.Sunday) {
			return true
		}
		return spec.SkipHolidays && cal != nil && cal.IsHoliday(t, spec.HolidayRegion)
	}

	if spec.FireAt != nil {
		t := spec.FireAt.In(loc)
		for range maxSkippedDays {
			if !t.After(after) {
				return time.Time{}, ErrNoNextFire
			}
			if !skipped(t) {
				return t.UTC(), nil
			}
			t = time.Date(t.Year(), t.Month(), t.Day()+1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
		}
		return time.Time{}, ErrNoNextFire
	}

	expr, err := ParseCron(spec.CronExpression)
	if err != nil {
		return time.Time{}, err
	}

	from := after.In(loc)
	for range maxSkippedDays {
		t := expr.Next(from)
		if t.IsZero() {
			return time.Time{}, ErrNoNextFire
		}
		if repeatedWallTime(t) {
			from = t
			continue
		}
		if skipped(t) {
			from = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
			continue
		}
		return t.UTC(), nil
	}
	return time.Time{}, ErrNoNextFire
}

// dstShifts covers the offset changes in use: 30 minutes (Lord Howe), one
// hour, and two hours (Troll).
var dstShifts = []time.Duration{30 * time.Minute, time.Hour, 2 * time.Hour}

// repeatedWallTime reports whether the wall clock of t already occurred at
// an earlier instant, which happens in the hour after a DST fall-back.
// Only the first instant of an ambiguous wall time is a fire time.
func repeatedWallTime(t time.Time) bool {
	for _, d := range dstShifts {
		if sameWallClock(t.Add(-d), t) {
			return true
		}
	}
	return false
}

func sameWallClock(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}
