package timeperiod

import (
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date without time of day or zone. The zero value is not a
// valid day; use IsZero to detect it. Days compare with == and can key maps.
type Day struct {
	t time.Time // always midnight UTC
}

func newDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Date builds a Day from its calendar components. Out-of-range values are
// normalized the way time.Date does (e.g. June 31 becomes July 1).
func Date(year int, month time.Month, day int) Day {
	return newDay(year, month, day)
}

// DayIn returns the calendar date t falls on when observed in loc.
func DayIn(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return newDay(y, m, d)
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return newDay(y, m, d)
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) Day {
	return DayIn(time.Now(), loc)
}

// ParseDay parses a "2006-01-02" date.
func ParseDay(value string) (Day, error) {
	t, err := time.Parse(dayLayout, strings.TrimSpace(value))
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", value, err)
	}
	return DayOf(t), nil
}

// ParseInstant accepts an RFC 3339 date-time or a bare date and returns the
// calendar day it denotes in loc.
func ParseInstant(value string, loc *time.Location) (Day, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Day{}, fmt.Errorf("empty date")
	}
	if len(trimmed) == len(dayLayout) {
		return ParseDay(trimmed)
	}
	t, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return Day{}, fmt.Errorf("parse date-time %q: %w", value, err)
	}
	return DayIn(t, loc), nil
}

func (d Day) IsZero() bool {
	return d.t.IsZero()
}

func (d Day) Year() int { return d.t.Year() }

func (d Day) Month() time.Month { return d.t.Month() }

func (d Day) DayOfMonth() int { return d.t.Day() }

// Midnight returns local midnight of the day in loc.
func (d Day) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.t.Year(), d.t.Month(), d.t.Day(), 0, 0, 0, 0, loc)
}

// AddDays moves the day by n calendar days.
func (d Day) AddDays(n int) Day {
	return newDay(d.t.Year(), d.t.Month(), d.t.Day()+n)
}

func (d Day) Before(other Day) bool { return d.t.Before(other.t) }

func (d Day) After(other Day) bool { return d.t.After(other.t) }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dayLayout)
}

// MarshalText renders the day as "2006-01-02".
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts "2006-01-02" or an RFC 3339 date-time (read in its
// own offset).
func (d *Day) UnmarshalText(text []byte) error {
	value := strings.TrimSpace(string(text))
	if value == "" {
		*d = Day{}
		return nil
	}
	if len(value) == len(dayLayout) {
		parsed, err := ParseDay(value)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return fmt.Errorf("parse day %q: %w", value, err)
	}
	*d = DayOf(t)
	return nil
}

// DaysBetween returns the number of calendar days from a to b; negative when b
// is before a.
func DaysBetween(a, b Day) int {
	return int((b.t.Unix() - a.t.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60
