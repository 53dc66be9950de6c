package schedule

import (
	"fmt"
	"sync"
	"time"
)

// HolidayCalendar tells the scheduler which local dates are holidays in a region.
type HolidayCalendar interface {
	IsHoliday(date time.Time, region string) bool
}

// AllRegions marks holidays that apply regardless of region.
const AllRegions = "*"

const dateLayout = "2006-01-02"

// StaticCalendar is a HolidayCalendar backed by a fixed list of dates.
type StaticCalendar struct {
	mu   sync.RWMutex
	days map[string]map[string]struct{}
}

// NewStaticCalendar builds a calendar from region -> dates (YYYY-MM-DD).
func NewStaticCalendar(holidays map[string][]string) (*StaticCalendar, error) {
	c := &StaticCalendar{days: make(map[string]map[string]struct{})}
	for region, dates := range holidays {
		for _, d := range dates {
			t, err := time.Parse(dateLayout, d)
			if err != nil {
				return nil, fmt.Errorf("invalid holiday %q for region %q: %w", d, region, err)
			}
			c.Add(region, t)
		}
	}
	return c, nil
}

// Add registers dates as holidays in region. Only the calendar date is used.
func (c *StaticCalendar) Add(region string, dates ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.days == nil {
		c.days = make(map[string]map[string]struct{})
	}
	if c.days[region] == nil {
		c.days[region] = make(map[string]struct{})
	}
	for _, d := range dates {
		c.days[region][d.Format(dateLayout)] = struct{}{}
	}
}

// IsHoliday reports whether date's calendar day, in date's own location,
// is a holiday in region or in AllRegions.
func (c *StaticCalendar) IsHoliday(date time.Time, region string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := date.Format(dateLayout)
	if _, ok := c.days[region][key]; ok {
		return true
	}
	_, ok := c.days[AllRegions][key]
	return ok
}
