package persistence

import "time"

// Recurrence names persisted in the reservations.recurring column.
const (
	RecurrenceNone   = "none"
	RecurrenceDaily  = "daily"
	RecurrenceWeekly = "weekly"
)

// Equipment lists the fixed fittings of a room.
type Equipment struct {
	Projector       bool
	Whiteboard      bool
	VideoConference bool
}

// Room represents a bookable meeting room.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	Floor     int
	Equipment Equipment
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User represents an employee who books rooms.
type User struct {
	ID                 string
	Name               string
	Email              string
	Department         string
	MaxCapacityAllowed int
	IsAdmin            bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Reservation represents a booked interval of a room. A non-nil CancelledAt
// marks the reservation inactive.
type Reservation struct {
	ID             string
	RoomID         string
	UserID         string
	Title          string
	StartsAt       time.Time
	EndsAt         time.Time
	Recurring      string
	RecurringUntil *time.Time
	SeriesID       *string
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Active reports whether the reservation has not been cancelled.
func (r Reservation) Active() bool {
	return r.CancelledAt == nil
}

// Clone returns a deep copy of the reservation.
func (r Reservation) Clone() Reservation {
	out := r
	if r.RecurringUntil != nil {
		until := *r.RecurringUntil
		out.RecurringUntil = &until
	}
	if r.SeriesID != nil {
		series := *r.SeriesID
		out.SeriesID = &series
	}
	if r.CancelledAt != nil {
		cancelled := *r.CancelledAt
		out.CancelledAt = &cancelled
	}
	return out
}
