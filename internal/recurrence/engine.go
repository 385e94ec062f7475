package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/calendar"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily generates one occurrence per weekday.
	FrequencyDaily
	// FrequencyWeekly generates one occurrence per week on the seed weekday.
	FrequencyWeekly
)

// String returns the persisted name of the frequency.
func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "daily"
	case FrequencyWeekly:
		return "weekly"
	default:
		return "none"
	}
}

// ParseFrequency maps a persisted recurrence name onto a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	default:
		return FrequencyUnspecified, fmt.Errorf("%w: %q", ErrInvalidFrequency, value)
	}
}

// DefaultMaxOccurrences bounds a single expansion.
const DefaultMaxOccurrences = 366

// Occurrence is one concrete dated instance of a recurring reservation.
// Index is 1-based in generation order.
type Occurrence struct {
	Index int
	Start time.Time
	End   time.Time
}

// Engine expands recurring reservations into occurrences.
type Engine struct {
	calendar       calendar.Calendar
	maxOccurrences int
}

// NewEngine constructs an Engine stepping dates in cal's location.
// A non-positive maxOccurrences uses DefaultMaxOccurrences.
func NewEngine(cal calendar.Calendar, maxOccurrences int) *Engine {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return &Engine{calendar: cal, maxOccurrences: maxOccurrences}
}

// ErrInvalidFrequency indicates the recurrence frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidWindow indicates the recurrence end date precedes the first occurrence.
var ErrInvalidWindow = errors.New("recurrence: recurring_until is before the first occurrence")

// ErrInvalidDuration indicates the seed duration is not positive.
var ErrInvalidDuration = errors.New("recurrence: ends_at must be after starts_at")

// ErrTooManyOccurrences indicates the expansion exceeded the configured bound.
var ErrTooManyOccurrences = errors.New("recurrence: too many occurrences")

// Expand produces the ordered occurrences of a series seeded at
// [seedStart, seedEnd) and bounded by the date of until (inclusive).
//
// The seed is always the first occurrence. Daily stepping skips dates that
// land on a weekend; weekly stepping keeps the seed weekday. Every occurrence
// keeps the seed's wall-clock start and duration.
func (e *Engine) Expand(freq Frequency, seedStart, seedEnd, until time.Time) ([]Occurrence, error) {
	if freq != FrequencyDaily && freq != FrequencyWeekly {
		return nil, ErrInvalidFrequency
	}
	if !seedEnd.After(seedStart) {
		return nil, ErrInvalidDuration
	}
	if e.calendar.DateBefore(until, seedStart) {
		return nil, ErrInvalidWindow
	}

	duration := seedEnd.Sub(seedStart)
	lastDay := e.calendar.StartOfDay(until)

	occurrences := make([]Occurrence, 0, 8)
	current := e.calendar.In(seedStart)
	for !e.calendar.StartOfDay(current).After(lastDay) {
		if len(occurrences) == e.maxOccurrences {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManyOccurrences, e.maxOccurrences)
		}
		occurrences = append(occurrences, Occurrence{
			Index: len(occurrences) + 1,
			Start: current,
			End:   current.Add(duration),
		})
		current = e.step(freq, current)
	}

	return occurrences, nil
}

func (e *Engine) step(freq Frequency, current time.Time) time.Time {
	if freq == FrequencyWeekly {
		return e.calendar.AddDays(current, 7)
	}
	return e.calendar.NextWeekday(current)
}
