package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
)

var (
	userCounter        uint64
	roomCounter        uint64
	reservationCounter uint64
)

// referenceTime is a Friday morning; Monday() is the following business day.
var referenceTime = time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Monday returns midnight of the Monday after ReferenceTime.
func Monday() time.Time {
	return time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
}

// At returns hour:minute on the date of day.
func At(day time.Time, hour, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location())
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record.
type UserFixture struct {
	ID                 string
	Name               string
	Email              string
	Department         string
	MaxCapacityAllowed int
	IsAdmin            bool
	CreatedAt          time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:                 id,
		Name:               fmt.Sprintf("User %03d", idx),
		Email:              fmt.Sprintf("%s@example.com", id),
		Department:         "Engineering",
		MaxCapacityAllowed: 10,
		CreatedAt:          referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserMaxCapacity sets the largest room the user may book.
func WithUserMaxCapacity(capacity int) UserOption {
	return func(f *UserFixture) {
		f.MaxCapacityAllowed = capacity
	}
}

// WithUserAdmin sets the admin flag on the generated fixture.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsAdmin: f.IsAdmin}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:                 f.ID,
		Name:               f.Name,
		Email:              f.Email,
		Department:         f.Department,
		MaxCapacityAllowed: f.MaxCapacityAllowed,
		IsAdmin:            f.IsAdmin,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.CreatedAt,
	}
}

// Input returns the fixture as an application.UserInput.
func (f UserFixture) Input() application.UserInput {
	return application.UserInput{
		Name:               f.Name,
		Email:              f.Email,
		Department:         f.Department,
		MaxCapacityAllowed: f.MaxCapacityAllowed,
		IsAdmin:            f.IsAdmin,
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic meeting room record.
type RoomFixture struct {
	ID        string
	Name      string
	Capacity  int
	Floor     int
	Equipment persistence.Equipment
	CreatedAt time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	id := fmt.Sprintf("room-%03d", idx)
	fixture := RoomFixture{
		ID:        id,
		Name:      fmt.Sprintf("Room %03d", idx),
		Capacity:  10,
		Floor:     int(1 + idx%5),
		Equipment: persistence.Equipment{Whiteboard: true},
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:        f.ID,
		Name:      f.Name,
		Capacity:  f.Capacity,
		Floor:     f.Floor,
		Equipment: f.Equipment,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// Input returns the fixture as an application.RoomInput.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:      f.Name,
		Capacity:  f.Capacity,
		Floor:     f.Floor,
		Equipment: f.Equipment,
	}
}

// -------------------------- Reservation fixtures --------------------------

// ReservationFixture represents a deterministic reservation record.
type ReservationFixture struct {
	ID          string
	RoomID      string
	UserID      string
	Title       string
	StartsAt    time.Time
	EndsAt      time.Time
	CancelledAt *time.Time
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a one hour reservation of room by user,
// starting at 10:00 on Monday() unless overridden.
func NewReservationFixture(roomID, userID string, opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	start := At(Monday(), 10, 0)
	fixture := ReservationFixture{
		ID:       fmt.Sprintf("reservation-%03d", idx),
		RoomID:   roomID,
		UserID:   userID,
		Title:    fmt.Sprintf("Meeting %03d", idx),
		StartsAt: start,
		EndsAt:   start.Add(time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationWindow sets the start and end times.
func WithReservationWindow(start, end time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.StartsAt = start
		f.EndsAt = end
	}
}

// WithReservationCancelledAt marks the fixture cancelled.
func WithReservationCancelledAt(t time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		at := t
		f.CancelledAt = &at
	}
}

// Persistence returns the fixture as a persistence.Reservation value.
func (f ReservationFixture) Persistence() persistence.Reservation {
	var cancelled *time.Time
	if f.CancelledAt != nil {
		at := *f.CancelledAt
		cancelled = &at
	}
	return persistence.Reservation{
		ID:          f.ID,
		RoomID:      f.RoomID,
		UserID:      f.UserID,
		Title:       f.Title,
		StartsAt:    f.StartsAt,
		EndsAt:      f.EndsAt,
		Recurring:   persistence.RecurrenceNone,
		CancelledAt: cancelled,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
}

// Input returns the fixture as an application.ReservationInput.
func (f ReservationFixture) Input() application.ReservationInput {
	return application.ReservationInput{
		RoomID:   f.RoomID,
		UserID:   f.UserID,
		Title:    f.Title,
		StartsAt: f.StartsAt,
		EndsAt:   f.EndsAt,
	}
}
