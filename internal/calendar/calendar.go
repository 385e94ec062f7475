// Package calendar provides weekday and business-hour predicates plus the
// date arithmetic used when stepping through recurring reservations.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

const (
	// DefaultOpenHour is the first hour a room may be booked.
	DefaultOpenHour = 9
	// DefaultCloseHour is the hour by which every reservation must end.
	DefaultCloseHour = 18
)

// Calendar evaluates business-day rules in a fixed location.
type Calendar struct {
	location  *time.Location
	openHour  int
	closeHour int
}

// New constructs a Calendar for loc with the default 09:00-18:00 window.
// A nil location falls back to UTC.
func New(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{location: loc, openHour: DefaultOpenHour, closeHour: DefaultCloseHour}
}

// Location reports the location used for all predicates.
func (c Calendar) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// In converts t into the calendar location.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.Location())
}

// IsWeekday reports whether t falls Monday through Friday.
func (c Calendar) IsWeekday(t time.Time) bool {
	return IsWeekday(c.In(t).Weekday())
}

// IsWeekday reports whether day is Monday through Friday.
func IsWeekday(day time.Weekday) bool {
	return day != time.Saturday && day != time.Sunday
}

// StartOfDay truncates t to midnight in the calendar location.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	local := c.In(t)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.Location())
}

// BusinessHours returns the opening window of the day containing t.
func (c Calendar) BusinessHours(t time.Time) (opens, closes time.Time) {
	y, m, d := c.StartOfDay(t).Date()
	opens = time.Date(y, m, d, c.openHour, 0, 0, 0, c.Location())
	closes = time.Date(y, m, d, c.closeHour, 0, 0, 0, c.Location())
	return opens, closes
}

// WithinBusinessHours reports whether [start, end] sits inside the opening
// window of the start date, with both endpoints on a weekday. Ending exactly
// at closing time is allowed.
func (c Calendar) WithinBusinessHours(start, end time.Time) bool {
	if !c.IsWeekday(start) || !c.IsWeekday(end) {
		return false
	}
	opens, closes := c.BusinessHours(start)
	return !start.Before(opens) && !end.After(closes)
}

// SameDate reports whether a and b share a calendar date.
func (c Calendar) SameDate(a, b time.Time) bool {
	return c.StartOfDay(a).Equal(c.StartOfDay(b))
}

// DateBefore reports whether a's date is strictly before b's date.
func (c Calendar) DateBefore(a, b time.Time) bool {
	return c.StartOfDay(a).Before(c.StartOfDay(b))
}

// AddDays moves t forward by n calendar days keeping its wall-clock time.
func (c Calendar) AddDays(t time.Time, n int) time.Time {
	local := c.In(t)
	y, m, d := local.Date()
	return time.Date(y, m, d+n, local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), c.Location())
}

// NextWeekday returns the first weekday strictly after t, keeping wall-clock time.
func (c Calendar) NextWeekday(t time.Time) time.Time {
	next := c.AddDays(t, 1)
	for !c.IsWeekday(next) {
		next = c.AddDays(next, 1)
	}
	return next
}

// ParseDate parses a YYYY-MM-DD string as midnight in the calendar location.
func (c Calendar) ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: invalid date %q: %w", value, err)
	}
	return t, nil
}

// FormatDate renders the calendar date of t.
func (c Calendar) FormatDate(t time.Time) string {
	return c.In(t).Format(DateLayout)
}
