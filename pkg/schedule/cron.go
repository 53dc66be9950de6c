package schedule

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// Schedule determines when a recurring notification fires.
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// Expression is a parsed 5-field cron expression:
//
//	minute hour day-of-month month day-of-week
//
// Fields accept *, ?, single values, ranges (a-b), steps (*/n, a-b/n, a/n),
// comma separated lists, month names (JAN-DEC) and weekday names (SUN-SAT).
// Day-of-week 7 is Sunday. When both day fields are restricted a day matches
// if either matches.
type Expression struct {
	minute, hour, dom, month, dow uint64
	domAny, dowAny                bool
	source                        string
}

var descriptors = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

type bounds struct {
	min, max uint
	names    map[string]uint
}

var (
	minuteBounds = bounds{min: 0, max: 59}
	hourBounds   = bounds{min: 0, max: 23}
	domBounds    = bounds{min: 1, max: 31}
	monthBounds  = bounds{min: 1, max: 12, names: map[string]uint{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}}
	dowBounds = bounds{min: 0, max: 7, names: map[string]uint{
		"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
	}}
)

// searchHorizon bounds Next so impossible expressions such as "0 0 30 2 *"
// terminate.
const searchHorizon = 5

// ParseCron parses a 5-field cron expression or a descriptor.
func ParseCron(expr string) (*Expression, error) {
	source := strings.TrimSpace(expr)
	spec := source
	if d, ok := descriptors[strings.ToLower(spec)]; ok {
		spec = d
	}

	fields := strings.Fields(spec)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d in %q", ErrInvalidCron, len(fields), expr)
	}

	e := &Expression{source: source}
	var err error
	if e.minute, err = parseField(fields[0], minuteBounds); err != nil {
		return nil, err
	}
	if e.hour, err = parseField(fields[1], hourBounds); err != nil {
		return nil, err
	}
	if e.dom, err = parseField(fields[2], domBounds); err != nil {
		return nil, err
	}
	if e.month, err = parseField(fields[3], monthBounds); err != nil {
		return nil, err
	}
	if e.dow, err = parseField(fields[4], dowBounds); err != nil {
		return nil, err
	}

	// 7 is an alias for Sunday.
	if e.dow&(1<<7) != 0 {
		e.dow = e.dow&^(1<<7) | 1
	}

	e.domAny = isWildcard(fields[2])
	e.dowAny = isWildcard(fields[4])
	return e, nil
}

// MustParseCron is like ParseCron but panics on error.
func MustParseCron(expr string) *Expression {
	e, err := ParseCron(expr)
	if err != nil {
		panic(err)
	}
	return e
}

func isWildcard(field string) bool {
	return strings.HasPrefix(field, "*") || strings.HasPrefix(field, "?")
}

func parseField(field string, b bounds) (uint64, error) {
	var set uint64
	for part := range strings.SplitSeq(field, ",") {
		bitsOf, err := parseRange(part, b)
		if err != nil {
			return 0, err
		}
		set |= bitsOf
	}
	return set, nil
}

func parseRange(expr string, b bounds) (uint64, error) {
	rangePart, stepPart, hasStep := strings.Cut(expr, "/")

	var lo, hi uint
	switch {
	case rangePart == "*" || rangePart == "?":
		lo, hi = b.min, b.max
		if b.max == 7 {
			hi = 6
		}
	default:
		loStr, hiStr, isRange := strings.Cut(rangePart, "-")
		var err error
		if lo, err = parseValue(loStr, b); err != nil {
			return 0, err
		}
		switch {
		case isRange:
			if hi, err = parseValue(hiStr, b); err != nil {
				return 0, err
			}
		case hasStep:
			hi = b.max
		default:
			hi = lo
		}
	}

	step := uint(1)
	if hasStep {
		n, err := strconv.ParseUint(stepPart, 10, 8)
		if err != nil || n == 0 {
			return 0, fmt.Errorf("%w: bad step in %q", ErrInvalidCron, expr)
		}
		step = uint(n)
	}

	if lo < b.min || hi > b.max || lo > hi {
		return 0, fmt.Errorf("%w: %q out of range %d-%d", ErrInvalidCron, expr, b.min, b.max)
	}

	var set uint64
	for v := lo; v <= hi; v += step {
		set |= 1 << v
	}
	return set, nil
}

func parseValue(s string, b bounds) (uint, error) {
	if v, ok := b.names[strings.ToLower(s)]; ok {
		return v, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: bad value %q", ErrInvalidCron, s)
	}
	return uint(n), nil
}

// String returns the expression as given to ParseCron.
func (e *Expression) String() string {
	return e.source
}

// Match reports whether t, in its own location, matches the expression.
func (e *Expression) Match(t time.Time) bool {
	return e.minute&(1<<uint(t.Minute())) != 0 &&
		e.hour&(1<<uint(t.Hour())) != 0 &&
		e.month&(1<<uint(t.Month())) != 0 &&
		e.dayMatches(t)
}

func (e *Expression) dayMatches(t time.Time) bool {
	domMatch := e.dom&(1<<uint(t.Day())) != 0
	dowMatch := e.dow&(1<<uint(t.Weekday())) != 0
	if e.domAny || e.dowAny {
		return domMatch && dowMatch
	}
	return domMatch || dowMatch
}

// Next returns the first matching minute strictly after from, evaluated in
// from's location. Wall times skipped by a DST transition never match.
// Returns the zero time when nothing matches within five years.
func (e *Expression) Next(from time.Time) time.Time {
	loc := from.Location()
	t := from.Add(time.Minute - time.Duration(from.Second())*time.Second - time.Duration(from.Nanosecond()))
	limit := from.AddDate(searchHorizon, 0, 0)

	for t.Before(limit) {
		prev := t
		switch {
		case e.month&(1<<uint(t.Month())) == 0:
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
		case !e.dayMatches(t):
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
		case e.hour&(1<<uint(t.Hour())) == 0:
			t = t.Add(time.Duration(60-t.Minute()) * time.Minute)
		case e.minute&(1<<uint(t.Minute())) == 0:
			t = t.Add(time.Duration(nextSetBit(e.minute, uint(t.Minute()))) * time.Minute)
		default:
			return t
		}
		if !t.After(prev) {
			t = prev.Add(time.Minute)
		}
	}
	return time.Time{}
}

// nextSetBit returns the distance from cur to the next set minute bit,
// or to the top of the hour when none remains.
func nextSetBit(set uint64, cur uint) uint {
	rest := set >> (cur + 1)
	if rest == 0 {
		return 60 - cur
	}
	return uint(bits.TrailingZeros64(rest)) + 1
}
