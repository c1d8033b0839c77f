// Package schedule decides whether a time-of-day window is open and
// drives schedule sessions on the coordinator from a periodic poll.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// MinutesPerDay bounds StartMinute and EndMinute.
const MinutesPerDay = 24 * 60

// WeekdaySet is a bitmask of time.Weekday values.
type WeekdaySet uint8

// Weekdays is Monday through Friday.
const Weekdays = WeekdaySet(1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday | 1<<time.Friday)

// NewWeekdaySet returns a set containing days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// With returns s with d added. Out-of-range days are ignored.
func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<d
}

// Contains reports whether d is in s.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<d) != 0
}

// Days returns the members of s in Sunday-first order.
func (s WeekdaySet) Days() []time.Weekday {
	var out []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts full or abbreviated English day names, any case.
func ParseWeekday(v string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(v))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", v)
	}
	return d, nil
}

// ParseClock converts "HH:MM" to a minute of the day.
func ParseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts a minute of the day to "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// Rule is one recurring time window.
type Rule struct {
	Enabled     bool
	Days        WeekdaySet
	StartMinute int
	EndMinute   int
}

// Matches reports whether now falls in the rule's half-open window
// [StartMinute, EndMinute) on one of its days. Windows that cross
// midnight (StartMinute >= EndMinute) never match.
func (r Rule) Matches(now time.Time) bool {
	if !r.Enabled || !r.Days.Contains(now.Weekday()) {
		return false
	}
	if r.StartMinute < 0 || r.EndMinute > MinutesPerDay || r.StartMinute >= r.EndMinute {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	return r.StartMinute <= minute && minute < r.EndMinute
}

// IsActive reports whether any rule matches now, in now's location.
func IsActive(rules []Rule, now time.Time) bool {
	for _, r := range rules {
		if r.Matches(now) {
			return true
		}
	}
	return false
}
