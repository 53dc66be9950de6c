package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/schedule"
)

func TestParseCron(t *testing.T) {
	t.Parallel()

	valid := []string{
		"* * * * *",
		"*/15 * * * *",
		"0 9 * * mon-fri",
		"30 1 1,15 * *",
		"0 0 1 jan,jul *",
		"0 12 13 * 5",
		"5-10/2 * * * *",
		"0 0 * * 7",
		"? * * * ?",
		"@daily",
		"@Hourly",
		"  0 9 * * *  ",
	}
	for _, expr := range valid {
		t.Run(expr, func(t *testing.T) {
			t.Parallel()
			e, err := schedule.ParseCron(expr)
			require.NoError(t, err)
			assert.NotNil(t, e)
		})
	}

	invalid := []string{
		"",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 8",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
		"@fortnightly",
	}
	for _, expr := range invalid {
		t.Run("invalid "+expr, func(t *testing.T) {
			t.Parallel()
			_, err := schedule.ParseCron(expr)
			assert.ErrorIs(t, err, schedule.ErrInvalidCron)
		})
	}
}

func TestMustParseCron(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { schedule.MustParseCron("0 9 * * *") })
	assert.Panics(t, func() { schedule.MustParseCron("bogus") })
	assert.Equal(t, "@daily", schedule.MustParseCron("@daily").String())
}

func TestExpressionNext(t *testing.T) {
	t.Parallel()

	utc := func(s string) time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return ts.UTC()
	}

	tests := []struct {
		name string
		expr string
		from string
		want string
	}{
		{"every quarter hour", "*/15 * * * *", "2025-03-10T10:07:00Z", "2025-03-10T10:15:00Z"},
		{"strictly after", "*/15 * * * *", "2025-03-10T10:15:00Z", "2025-03-10T10:30:00Z"},
		{"seconds truncated", "*/15 * * * *", "2025-03-10T10:14:59Z", "2025-03-10T10:15:00Z"},
		{"hourly descriptor", "@hourly", "2025-03-10T10:30:00Z", "2025-03-10T11:00:00Z"},
		{"yearly rolls over", "0 0 1 1 *", "2025-03-10T00:00:00Z", "2026-01-01T00:00:00Z"},
		{"weekdays skip weekend", "0 9 * * mon-fri", "2025-03-14T10:00:00Z", "2025-03-17T09:00:00Z"},
		{"seven is sunday", "0 0 * * 7", "2025-03-10T00:00:00Z", "2025-03-16T00:00:00Z"},
		{"dom or dow", "0 12 13 * 5", "2025-06-01T00:00:00Z", "2025-06-06T12:00:00Z"},
		{"month end", "0 0 31 * *", "2025-04-01T00:00:00Z", "2025-05-31T00:00:00Z"},
		{"leap day", "0 0 29 2 *", "2025-01-01T00:00:00Z", "2028-02-29T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := schedule.MustParseCron(tt.expr)
			got := e.Next(utc(tt.from))
			assert.Equal(t, utc(tt.want), got.UTC())
			assert.True(t, e.Match(got))
		})
	}
}

func TestExpressionNextImpossible(t *testing.T) {
	t.Parallel()

	e := schedule.MustParseCron("0 0 30 2 *")
	assert.True(t, e.Next(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)).IsZero())
}

func TestExpressionNextSpringForward(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:30 does not exist on 2025-03-09 in New York.
	e := schedule.MustParseCron("30 2 * * *")
	got := e.Next(time.Date(2025, 3, 8, 12, 0, 0, 0, ny))
	assert.Equal(t, time.Date(2025, 3, 10, 2, 30, 0, 0, ny).UTC(), got.UTC())
}
