package application

import (
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// Principal represents the user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// ReservationInput captures caller provided fields of a single reservation.
type ReservationInput struct {
	RoomID   string
	UserID   string
	Title    string
	StartsAt time.Time
	EndsAt   time.Time
}

// CreateReservationParams wraps the data required to admit one reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// RecurringInput captures a recurring request: the first occurrence plus the
// frequency and the last date occurrences may fall on.
type RecurringInput struct {
	RoomID         string
	UserID         string
	Title          string
	StartsAt       time.Time
	EndsAt         time.Time
	Recurring      string
	RecurringUntil *time.Time
}

// CreateRecurringParams wraps the data required to admit a recurring series.
type CreateRecurringParams struct {
	Principal Principal
	Input     RecurringInput
}

// CancelReservationParams wraps the data required to cancel a reservation.
type CancelReservationParams struct {
	Principal     Principal
	ReservationID string
}

// ListReservationsParams narrows reservation listings.
type ListReservationsParams struct {
	Principal  Principal
	RoomID     string
	UserID     string
	SeriesID   string
	ActiveOnly bool
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name      string
	Capacity  int
	Floor     int
	Equipment persistence.Equipment
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Name               string
	Email              string
	Department         string
	MaxCapacityAllowed int
	IsAdmin            bool
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// Slot is a free window within business hours.
type Slot struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// Availability is the free/busy view of a room on one calendar date.
type Availability struct {
	RoomID       string                    `json:"room_id"`
	Date         string                    `json:"date"`
	Slots        []Slot                    `json:"slots"`
	Reservations []persistence.Reservation `json:"reservations"`
}
