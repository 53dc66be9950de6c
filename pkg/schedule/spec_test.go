package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/schedule"
)

func template() queue.Job {
	return queue.Job{
		UserID:  "user-1",
		Type:    "daily_digest",
		Payload: queue.Payload{Subject: "Your day", Channels: []string{"email"}},
	}
}

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts.UTC()
}

func TestComputeNextFireSkipWeekends(t *testing.T) {
	t.Parallel()

	spec := &schedule.Spec{
		CronExpression: "0 9 * * *",
		Timezone:       "America/New_York",
		SkipWeekends:   true,
		Template:       template(),
	}

	// Friday 10:00 EDT; Saturday 09:00 is skipped, Sunday too.
	got, err := schedule.ComputeNextFire(spec, mustUTC(t, "2025-03-14T14:00:00Z"), nil)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-03-17T13:00:00Z"), got)
	assert.Equal(t, time.UTC, got.Location())

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	local := got.In(ny)
	assert.Equal(t, time.Monday, local.Weekday())
	assert.Equal(t, 9, local.Hour())
}

func TestComputeNextFireWithoutSkip(t *testing.T) {
	t.Parallel()

	spec := &schedule.Spec{CronExpression: "0 9 * * *", Timezone: "America/New_York", Template: template()}
	got, err := schedule.ComputeNextFire(spec, mustUTC(t, "2025-03-14T14:00:00Z"), nil)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-03-15T13:00:00Z"), got)
}

func TestComputeNextFireKeepsLocalTimeAcrossDST(t *testing.T) {
	t.Parallel()

	spec := &schedule.Spec{CronExpression: "0 9 * * *", Timezone: "America/New_York", Template: template()}

	// Before the change 09:00 EST is 14:00 UTC, after it 09:00 EDT is 13:00 UTC.
	first, err := schedule.ComputeNextFire(spec, mustUTC(t, "2025-03-07T15:00:00Z"), nil)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-03-08T14:00:00Z"), first)

	second, err := schedule.ComputeNextFire(spec, first, nil)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-03-09T13:00:00Z"), second)
	assert.Equal(t, 23*time.Hour, second.Sub(first))
}

func TestComputeNextFireFallBackFiresOnce(t *testing.T) {
	t.Parallel()

	spec := &schedule.Spec{CronExpression: "30 1 * * *", Timezone: "America/New_York", Template: template()}

	first, err := schedule.ComputeNextFire(spec, mustUTC(t, "2025-11-01T06:00:00Z"), nil)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-11-02T05:30:00Z"), first)

	// 01:30 happens twice on 2025-11-02; the repeat is not a new occurrence.
	second, err := schedule.ComputeNextFire(spec, first, nil)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-11-03T06:30:00Z"), second)

	// Any instant inside the repeated hour skips the EST 01:30 as well.
	for _, after := range []string{"2025-11-02T05:31:00Z", "2025-11-02T05:59:59Z", "2025-11-02T06:00:00Z", "2025-11-02T06:29:00Z"} {
		next, err := schedule.ComputeNextFire(spec, mustUTC(t, after), nil)
		require.NoError(t, err)
		assert.Equal(t, mustUTC(t, "2025-11-03T06:30:00Z"), next, "after %s", after)
	}
}

func TestComputeNextFireFallBackInsideRepeatedHour(t *testing.T) {
	t.Parallel()

	// 01:00 EDT fires; the second 01:00 (EST) is a repeat.
	spec := &schedule.Spec{CronExpression: "0 1 * * *", Timezone: "America/New_York", Template: template()}
	next, err := schedule.ComputeNextFire(spec, mustUTC(t, "2025-11-02T05:00:00Z"), nil)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-11-03T06:00:00Z"), next)

	// Wall times outside the repeated hour are unaffected.
	spec.CronExpression = "30 2 * * *"
	next, err = schedule.ComputeNextFire(spec, mustUTC(t, "2025-11-02T05:31:00Z"), nil)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-11-02T07:30:00Z"), next)
}

func TestComputeNextFireSkipHolidays(t *testing.T) {
	t.Parallel()

	cal, err := schedule.NewStaticCalendar(map[string][]string{
		"US":                {"2025-07-04"},
		schedule.AllRegions: {"2025-12-25"},
	})
	require.NoError(t, err)

	spec := &schedule.Spec{
		CronExpression: "0 9 * * *",
		Timezone:       "America/New_York",
		SkipHolidays:   true,
		HolidayRegion:  "US",
		Template:       template(),
	}

	got, err := schedule.ComputeNextFire(spec, mustUTC(t, "2025-07-03T14:00:00Z"), cal)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-07-05T13:00:00Z"), got)

	spec.SkipWeekends = true
	got, err = schedule.ComputeNextFire(spec, mustUTC(t, "2025-07-03T14:00:00Z"), cal)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-07-07T13:00:00Z"), got)

	got, err = schedule.ComputeNextFire(spec, mustUTC(t, "2025-12-24T15:00:00Z"), cal)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-12-26T14:00:00Z"), got)

	// Another region does not see the US holiday.
	spec.HolidayRegion = "DE"
	got, err = schedule.ComputeNextFire(spec, mustUTC(t, "2025-07-03T14:00:00Z"), cal)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-07-04T13:00:00Z"), got)
}

func TestComputeNextFireNeverValid(t *testing.T) {
	t.Parallel()

	spec := &schedule.Spec{CronExpression: "0 9 * * sat", SkipWeekends: true, Template: template()}
	_, err := schedule.ComputeNextFire(spec, mustUTC(t, "2025-03-10T00:00:00Z"), nil)
	assert.ErrorIs(t, err, schedule.ErrNoNextFire)
}

func TestComputeNextFireOneShot(t *testing.T) {
	t.Parallel()

	fireAt := mustUTC(t, "2025-03-15T14:00:00Z")
	spec := &schedule.Spec{FireAt: &fireAt, Timezone: "America/New_York", Template: template()}

	got, err := schedule.ComputeNextFire(spec, mustUTC(t, "2025-03-10T00:00:00Z"), nil)
	require.NoError(t, err)
	assert.Equal(t, fireAt, got)

	// Saturday 10:00 local moves to Monday 10:00 local.
	spec.SkipWeekends = true
	got, err = schedule.ComputeNextFire(spec, mustUTC(t, "2025-03-10T00:00:00Z"), nil)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2025-03-17T14:00:00Z"), got)

	_, err = schedule.ComputeNextFire(spec, fireAt, nil)
	assert.ErrorIs(t, err, schedule.ErrNoNextFire)
}

func TestComputeNextFireInvalidTimezone(t *testing.T) {
	t.Parallel()

	spec := &schedule.Spec{CronExpression: "0 9 * * *", Timezone: "Mars/Olympus", Template: template()}
	_, err := schedule.ComputeNextFire(spec, time.Now(), nil)
	assert.ErrorIs(t, err, schedule.ErrInvalidTimezone)
}

func TestSpecValidate(t *testing.T) {
	t.Parallel()

	at := time.Now()
	zero := 0
	tests := []struct {
		name string
		spec schedule.Spec
		err  error
	}{
		{"cron", schedule.Spec{CronExpression: "0 9 * * *", Template: template()}, nil},
		{"one-shot", schedule.Spec{FireAt: &at, Template: template()}, nil},
		{"neither", schedule.Spec{Template: template()}, schedule.ErrInvalidSpec},
		{"both", schedule.Spec{CronExpression: "0 9 * * *", FireAt: &at, Template: template()}, schedule.ErrInvalidSpec},
		{"zero max", schedule.Spec{CronExpression: "0 9 * * *", MaxOccurrences: &zero, Template: template()}, schedule.ErrInvalidSpec},
		{"no channels", schedule.Spec{CronExpression: "0 9 * * *"}, schedule.ErrInvalidSpec},
		{"bad cron", schedule.Spec{CronExpression: "0 25 * * *", Template: template()}, schedule.ErrInvalidCron},
		{"bad timezone", schedule.Spec{CronExpression: "0 9 * * *", Timezone: "Nowhere/Land", Template: template()}, schedule.ErrInvalidTimezone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.spec.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestJobIDDeterministic(t *testing.T) {
	t.Parallel()

	at := mustUTC(t, "2025-03-10T09:00:00Z")
	assert.Equal(t, schedule.JobID("spec-1", at), schedule.JobID("spec-1", at.In(time.FixedZone("X", 3600))))
	assert.NotEqual(t, schedule.JobID("spec-1", at), schedule.JobID("spec-1", at.Add(time.Minute)))
	assert.NotEqual(t, schedule.JobID("spec-1", at), schedule.JobID("spec-2", at))
}
