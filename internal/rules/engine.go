// Package rules implements the admission rules applied to a candidate
// reservation against the current state of its room and user.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/calendar"
)

// Room is the slice of a room the rules need.
type Room struct {
	ID       string
	Capacity int
}

// User is the slice of a user the rules need.
type User struct {
	ID                 string
	MaxCapacityAllowed int
	IsAdmin            bool
}

// Candidate is a reservation proposed for admission. Zero times and an empty
// title are treated as absent.
type Candidate struct {
	ID       string
	RoomID   string
	UserID   string
	Title    string
	StartsAt time.Time
	EndsAt   time.Time
}

// State is the view of persisted data a candidate is evaluated against.
// A nil Room or User means the reference could not be resolved.
// RoomReservations holds active reservations of the candidate's room;
// ActiveFutureCount is the number of the user's active reservations starting
// after the evaluation instant, excluding the candidate.
type State struct {
	Room              *Room
	User              *User
	RoomReservations  []Reservation
	ActiveFutureCount int
}

// Limits configures the numeric bounds of the rule set.
type Limits struct {
	MaxDuration time.Duration
	MaxActive   int
}

// DefaultLimits returns the standard four hour / three reservation bounds.
func DefaultLimits() Limits {
	return Limits{MaxDuration: 4 * time.Hour, MaxActive: 3}
}

// Engine evaluates the rule set.
type Engine struct {
	calendar calendar.Calendar
	limits   Limits
}

// NewEngine constructs an Engine. Zero limits fall back to DefaultLimits.
func NewEngine(cal calendar.Calendar, limits Limits) *Engine {
	defaults := DefaultLimits()
	if limits.MaxDuration <= 0 {
		limits.MaxDuration = defaults.MaxDuration
	}
	if limits.MaxActive <= 0 {
		limits.MaxActive = defaults.MaxActive
	}
	return &Engine{calendar: cal, limits: limits}
}

// Limits reports the bounds in effect.
func (e *Engine) Limits() Limits {
	return e.limits
}

// Evaluate runs every rule and returns all violations; an empty result means
// the candidate is admissible. Rules whose inputs are absent pass silently so
// that presence failures are reported once.
func (e *Engine) Evaluate(candidate Candidate, state State) []Violation {
	var violations []Violation
	add := func(rule Rule, format string, args ...any) {
		violations = append(violations, Violation{Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	hasStart := !candidate.StartsAt.IsZero()
	hasEnd := !candidate.EndsAt.IsZero()

	if strings.TrimSpace(candidate.Title) == "" {
		add(RulePresence, "title is required")
	}
	if !hasStart {
		add(RulePresence, "starts_at is required")
	}
	if !hasEnd {
		add(RulePresence, "ends_at is required")
	}

	ordered := hasStart && hasEnd && candidate.EndsAt.After(candidate.StartsAt)
	if hasStart && hasEnd && !ordered {
		add(RuleOrdering, "ends_at must be after starts_at")
	}

	if ordered {
		conflicts := DetectConflicts(state.RoomReservations, Reservation{
			ID:     candidate.ID,
			RoomID: candidate.RoomID,
			Start:  candidate.StartsAt,
			End:    candidate.EndsAt,
		})
		for _, other := range conflicts {
			add(RuleOverlap, "overlaps an existing reservation from %s to %s",
				e.calendar.In(other.Start).Format(time.DateTime), e.calendar.In(other.End).Format(time.DateTime))
		}

		if candidate.EndsAt.Sub(candidate.StartsAt) > e.limits.MaxDuration {
			add(RuleDuration, "reservation may not last longer than %s", formatDuration(e.limits.MaxDuration))
		}

		if !e.calendar.WithinBusinessHours(candidate.StartsAt, candidate.EndsAt) {
			add(RuleBusinessHours, "reservation must be on a weekday between %02d:00 and %02d:00",
				calendar.DefaultOpenHour, calendar.DefaultCloseHour)
		}
	}

	if state.Room != nil && state.User != nil && !state.User.IsAdmin {
		if state.Room.Capacity > state.User.MaxCapacityAllowed {
			add(RuleCapacity, "room capacity %d exceeds the %d allowed for this user",
				state.Room.Capacity, state.User.MaxCapacityAllowed)
		}
	}

	if state.User != nil && !state.User.IsAdmin {
		if state.ActiveFutureCount >= e.limits.MaxActive {
			add(RuleActiveLimit, "user already has %d active upcoming reservations (limit %d)",
				state.ActiveFutureCount, e.limits.MaxActive)
		}
	}

	return violations
}

// SeriesLimit checks the cumulative active-reservation limit for a batch of
// size batch on top of existing active future reservations. It returns at most
// one untagged violation.
func (e *Engine) SeriesLimit(user *User, existing, batch int) []Violation {
	if user == nil || user.IsAdmin {
		return nil
	}
	if existing+batch <= e.limits.MaxActive {
		return nil
	}
	return []Violation{{
		Rule: RuleSeriesLimit,
		Message: fmt.Sprintf("series of %d reservations plus %d existing exceeds the limit of %d active upcoming reservations",
			batch, existing, e.limits.MaxActive),
	}}
}

func formatDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}
