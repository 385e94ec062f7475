package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

type transaction struct {
	store   *Store
	held    []string
	created []persistence.Reservation
	cancels map[string]time.Time
	done    bool
}

var _ persistence.Tx = (*transaction)(nil)

func roomKey(id string) string        { return "room:" + id }
func userKey(id string) string        { return "user:" + id }
func reservationKey(id string) string { return "reservation:" + id }

func (t *transaction) lock(ctx context.Context, key string) error {
	for _, held := range t.held {
		if held == key {
			return nil
		}
	}
	if err := t.store.locks.lock(ctx, key); err != nil {
		return err
	}
	t.held = append(t.held, key)
	return nil
}

func (t *transaction) release() {
	if t.done {
		return
	}
	t.done = true
	for i := len(t.held) - 1; i >= 0; i-- {
		t.store.locks.unlock(t.held[i])
	}
	t.held = nil
}

func (t *transaction) commit() error {
	defer t.release()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, reservation := range t.created {
		if _, ok := s.reservations[reservation.ID]; ok {
			return fmt.Errorf("memory: reservation %s: %w", reservation.ID, persistence.ErrDuplicate)
		}
		if _, ok := s.rooms[reservation.RoomID]; !ok {
			return fmt.Errorf("memory: room %s: %w", reservation.RoomID, persistence.ErrForeignKeyViolation)
		}
		if _, ok := s.users[reservation.UserID]; !ok {
			return fmt.Errorf("memory: user %s: %w", reservation.UserID, persistence.ErrForeignKeyViolation)
		}
	}

	for _, reservation := range t.created {
		s.reservations[reservation.ID] = reservation.Clone()
	}
	for id, at := range t.cancels {
		reservation, ok := s.reservations[id]
		if !ok || reservation.CancelledAt != nil {
			continue
		}
		reservation = reservation.Clone()
		cancelled := at
		reservation.CancelledAt = &cancelled
		reservation.UpdatedAt = at
		s.reservations[id] = reservation
	}
	return nil
}

func (t *transaction) LockRoom(ctx context.Context, roomID string) error {
	if _, err := t.GetRoom(ctx, roomID); err != nil {
		return err
	}
	return t.lock(ctx, roomKey(roomID))
}

func (t *transaction) LockUser(ctx context.Context, userID string) error {
	if _, err := t.GetUser(ctx, userID); err != nil {
		return err
	}
	return t.lock(ctx, userKey(userID))
}

func (t *transaction) LockReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if err := t.lock(ctx, reservationKey(id)); err != nil {
		return persistence.Reservation{}, err
	}
	return t.GetReservation(ctx, id)
}

func (t *transaction) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	return t.store.GetRoom(ctx, id)
}

func (t *transaction) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return t.store.GetUser(ctx, id)
}

func (t *transaction) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	for _, reservation := range t.created {
		if reservation.ID == id {
			return reservation.Clone(), nil
		}
	}

	reservation, err := t.store.GetReservation(ctx, id)
	if err != nil {
		return persistence.Reservation{}, err
	}
	if at, ok := t.cancels[id]; ok && reservation.CancelledAt == nil {
		reservation.CancelledAt = &at
	}
	return reservation, nil
}

func (t *transaction) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	return filterReservations(t.store.reservations, t.created, t.cancels, filter), nil
}

func (t *transaction) CountActiveFutureReservations(ctx context.Context, userID string, after time.Time) (int, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	return len(filterReservations(t.store.reservations, t.created, t.cancels, futureFilter(userID, after))), nil
}

func (t *transaction) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || reservation.Title == "" || !reservation.EndsAt.After(reservation.StartsAt) {
		return fmt.Errorf("memory: reservation %q: %w", reservation.ID, persistence.ErrConstraintViolation)
	}
	for _, staged := range t.created {
		if staged.ID == reservation.ID {
			return fmt.Errorf("memory: reservation %s: %w", reservation.ID, persistence.ErrDuplicate)
		}
	}
	t.created = append(t.created, reservation.Clone())
	return nil
}

func (t *transaction) CancelReservation(ctx context.Context, id string, cancelledAt time.Time) error {
	for i, staged := range t.created {
		if staged.ID == id {
			at := cancelledAt
			t.created[i].CancelledAt = &at
			return nil
		}
	}
	if _, err := t.store.GetReservation(ctx, id); err != nil {
		return err
	}
	t.cancels[id] = cancelledAt
	return nil
}

// keyedLocks hands out one exclusive lock per key. Waiters honor context cancellation.
type keyedLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{slots: make(map[string]chan struct{})}
}

func (k *keyedLocks) slot(key string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()

	ch, ok := k.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		k.slots[key] = ch
	}
	return ch
}

func (k *keyedLocks) lock(ctx context.Context, key string) error {
	select {
	case k.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *keyedLocks) unlock(key string) {
	<-k.slot(key)
}
