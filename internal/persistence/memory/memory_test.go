package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

var base = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store := New()
	if err := store.CreateRoom(ctx, persistence.Room{ID: "room-1", Name: "Orion", Capacity: 8}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if err := store.CreateUser(ctx, persistence.User{ID: "user-1", Name: "Alice", Email: "alice@example.com", MaxCapacityAllowed: 10}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return store
}

func reservation(id string, start time.Time) persistence.Reservation {
	return persistence.Reservation{
		ID:        id,
		RoomID:    "room-1",
		UserID:    "user-1",
		Title:     "Sync",
		StartsAt:  start,
		EndsAt:    start.Add(time.Hour),
		Recurring: persistence.RecurrenceNone,
	}
}

func TestStore_Catalog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seeded(t)

	if err := store.CreateRoom(ctx, persistence.Room{ID: "room-2", Name: "Orion", Capacity: 4}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected duplicate room name, got %v", err)
	}
	if err := store.CreateUser(ctx, persistence.User{ID: "user-2", Email: "ALICE@example.com"}); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if _, err := store.GetRoom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	user, err := store.GetUserByEmail(ctx, "Alice@Example.com")
	if err != nil || user.ID != "user-1" {
		t.Fatalf("GetUserByEmail = %+v, %v", user, err)
	}
}

func TestStore_WithTxCommitsAndRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seeded(t)

	rollback := errors.New("rollback")
	err := store.WithTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		if err := tx.CreateReservation(ctx, reservation("r-1", base)); err != nil {
			return err
		}
		count, err := tx.CountActiveFutureReservations(ctx, "user-1", base.Add(-time.Hour))
		if err != nil {
			return err
		}
		if count != 1 {
			t.Errorf("staged reservation not visible inside the transaction, count=%d", count)
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback error, got %v", err)
	}
	if _, err := store.GetReservation(ctx, "r-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("rolled back reservation must not persist, got %v", err)
	}

	err = store.WithTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		return tx.CreateReservation(ctx, reservation("r-1", base))
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	cancelledAt := base.Add(-2 * time.Hour)
	err = store.WithTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		if _, err := tx.LockReservation(ctx, "r-1"); err != nil {
			return err
		}
		return tx.CancelReservation(ctx, "r-1", cancelledAt)
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	stored, err := store.GetReservation(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if stored.Active() || !stored.CancelledAt.Equal(cancelledAt) {
		t.Fatalf("expected cancelled reservation, got %+v", stored)
	}

	active, _ := store.ListReservations(ctx, persistence.ReservationFilter{RoomID: "room-1", ActiveOnly: true})
	if len(active) != 0 {
		t.Fatalf("expected no active reservations, got %d", len(active))
	}
}

func TestStore_CommitRejectsUnknownReferences(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seeded(t)

	err := store.WithTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		r := reservation("r-1", base)
		r.RoomID = "missing"
		return tx.CreateReservation(ctx, r)
	})
	if !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
}

func TestStore_LockRoomSerializesTransactions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seeded(t)

	locked := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.WithTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
			if err := tx.LockRoom(ctx, "room-1"); err != nil {
				return err
			}
			close(locked)
			<-finish
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := store.WithTx(waitCtx, func(ctx context.Context, tx persistence.Tx) error {
		return tx.LockRoom(ctx, "room-1")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second locker to time out, got %v", err)
	}

	close(finish)
	if err := <-done; err != nil {
		t.Fatalf("first transaction failed: %v", err)
	}

	err = store.WithTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		return tx.LockRoom(ctx, "room-1")
	})
	if err != nil {
		t.Fatalf("lock should be free after commit: %v", err)
	}
}

func TestStore_LockUnknownRoom(t *testing.T) {
	t.Parallel()

	store := seeded(t)
	err := store.WithTx(context.Background(), func(ctx context.Context, tx persistence.Tx) error {
		return tx.LockRoom(ctx, "missing")
	})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListReservationsWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := seeded(t)
	err := store.WithTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		for i, id := range []string{"r-3", "r-1", "r-2"} {
			if err := tx.CreateReservation(ctx, reservation(id, base.Add(time.Duration(i)*2*time.Hour))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	from, to := base.Add(90*time.Minute), base.Add(4*time.Hour)
	got, err := store.ListReservations(ctx, persistence.ReservationFilter{RoomID: "room-1", EndsAfter: &from, StartsBefore: &to})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r-1" {
		t.Fatalf("unexpected window result %+v", got)
	}

	all, _ := store.ListReservations(ctx, persistence.ReservationFilter{})
	if len(all) != 3 || all[0].ID != "r-3" || all[2].ID != "r-2" {
		t.Fatalf("expected start-time ordering, got %+v", all)
	}
}
