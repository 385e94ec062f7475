package persistence

import (
	"context"
	"time"
)

// UserRepository exposes catalog operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// RoomRepository exposes catalog operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// ReservationFilter narrows reservation queries. Zero fields do not filter.
// StartsBefore and EndsAfter together select reservations intersecting the
// half-open window [EndsAfter, StartsBefore).
type ReservationFilter struct {
	RoomID       string
	UserID       string
	SeriesID     string
	ActiveOnly   bool
	StartsAfter  *time.Time
	StartsBefore *time.Time
	EndsAfter    *time.Time
}

// ReservationReader reads reservations. Results are ordered by starts_at, then id.
type ReservationReader interface {
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	// CountActiveFutureReservations counts the user's active reservations
	// starting strictly after the given instant.
	CountActiveFutureReservations(ctx context.Context, userID string, after time.Time) (int, error)
}

// Tx is the unit of work handed to Store.WithTx. Locks taken through it are
// released when the transaction ends.
type Tx interface {
	ReservationReader

	GetRoom(ctx context.Context, id string) (Room, error)
	GetUser(ctx context.Context, id string) (User, error)

	// LockRoom serializes writers touching the room's active reservations.
	LockRoom(ctx context.Context, roomID string) error
	// LockUser serializes writers touching the user's active reservations.
	LockUser(ctx context.Context, userID string) error
	// LockReservation loads a reservation and holds it until the transaction ends.
	LockReservation(ctx context.Context, id string) (Reservation, error)

	CreateReservation(ctx context.Context, reservation Reservation) error
	CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error
}

// TxFunc runs inside a transaction. Returning an error rolls back every write.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the transactional persistence boundary of the booking engine.
type Store interface {
	UserRepository
	RoomRepository
	ReservationReader

	// WithTx runs fn in one transaction, committing when fn returns nil and
	// rolling back on error or panic.
	WithTx(ctx context.Context, fn TxFunc) error
	Close() error
}

// Matches reports whether reservation satisfies the filter.
func (f ReservationFilter) Matches(reservation Reservation) bool {
	if f.RoomID != "" && reservation.RoomID != f.RoomID {
		return false
	}
	if f.UserID != "" && reservation.UserID != f.UserID {
		return false
	}
	if f.SeriesID != "" && (reservation.SeriesID == nil || *reservation.SeriesID != f.SeriesID) {
		return false
	}
	if f.ActiveOnly && !reservation.Active() {
		return false
	}
	if f.StartsAfter != nil && !reservation.StartsAt.After(*f.StartsAfter) {
		return false
	}
	if f.StartsBefore != nil && !reservation.StartsAt.Before(*f.StartsBefore) {
		return false
	}
	if f.EndsAfter != nil && !reservation.EndsAt.After(*f.EndsAfter) {
		return false
	}
	return true
}
