// Package memory provides an in-process persistence.Store. Transactions stage
// their writes and hold per-room and per-user locks until commit or rollback,
// mirroring the row-level locking of the SQL stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// Store is an in-memory implementation of persistence.Store.
type Store struct {
	mu           sync.RWMutex
	users        map[string]persistence.User
	rooms        map[string]persistence.Room
	reservations map[string]persistence.Reservation

	locks *keyedLocks
}

var _ persistence.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:        make(map[string]persistence.User),
		rooms:        make(map[string]persistence.Room),
		reservations: make(map[string]persistence.Reservation),
		locks:        newKeyedLocks(),
	}
}

// Close releases resources held by the store. No-op for the in-memory implementation.
func (s *Store) Close() error {
	return nil
}

// --- UserRepository implementation ---

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("memory: user %s: %w", user.ID, persistence.ErrDuplicate)
	}

	lower := strings.ToLower(user.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == lower {
			return fmt.Errorf("memory: email %s: %w", user.Email, persistence.ErrDuplicate)
		}
	}

	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == lower {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users ordered by CreatedAt ascending.
func (s *Store) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room. Names are unique.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("memory: room %s: %w", room.ID, persistence.ErrDuplicate)
	}
	for _, existing := range s.rooms {
		if existing.Name == room.Name {
			return fmt.Errorf("memory: room name %s: %w", room.Name, persistence.ErrDuplicate)
		}
	}

	s.rooms[room.ID] = room
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

// --- ReservationReader implementation ---

// GetReservation retrieves a reservation by ID.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return reservation.Clone(), nil
}

// ListReservations returns the reservations matching filter.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filterReservations(s.reservations, nil, nil, filter), nil
}

// CountActiveFutureReservations counts the user's active reservations starting after the instant.
func (s *Store) CountActiveFutureReservations(ctx context.Context, userID string, after time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(filterReservations(s.reservations, nil, nil, futureFilter(userID, after))), nil
}

// WithTx runs fn inside a transaction. Writes become visible on commit only.
func (s *Store) WithTx(ctx context.Context, fn persistence.TxFunc) (err error) {
	tx := &transaction{store: s, cancels: make(map[string]time.Time)}
	defer func() {
		if p := recover(); p != nil {
			tx.release()
			panic(p)
		}
		if err != nil {
			tx.release()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func futureFilter(userID string, after time.Time) persistence.ReservationFilter {
	return persistence.ReservationFilter{UserID: userID, ActiveOnly: true, StartsAfter: &after}
}

// filterReservations applies filter to committed rows overlaid with staged writes.
func filterReservations(
	committed map[string]persistence.Reservation,
	created []persistence.Reservation,
	cancels map[string]time.Time,
	filter persistence.ReservationFilter,
) []persistence.Reservation {
	result := make([]persistence.Reservation, 0)
	visit := func(reservation persistence.Reservation) {
		if at, ok := cancels[reservation.ID]; ok && reservation.CancelledAt == nil {
			reservation = reservation.Clone()
			reservation.CancelledAt = &at
		}
		if filter.Matches(reservation) {
			result = append(result, reservation.Clone())
		}
	}
	for _, reservation := range committed {
		visit(reservation)
	}
	for _, reservation := range created {
		visit(reservation)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartsAt.Equal(result[j].StartsAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartsAt.Before(result[j].StartsAt)
	})
	return result
}
