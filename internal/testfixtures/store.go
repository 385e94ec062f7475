package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/sqlite"
)

// Seed describes catalog rows and reservations to preload into a store.
type Seed struct {
	Rooms        []RoomFixture
	Users        []UserFixture
	Reservations []ReservationFixture
}

// NewMemoryStore returns an in-memory store preloaded with seed.
func NewMemoryStore(tb testing.TB, seed Seed) *memory.Store {
	tb.Helper()

	store := memory.New()
	Load(tb, store, seed)
	return store
}

// NewSQLiteStore opens a migrated SQLite database in a temporary directory and
// preloads it with seed. The store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB, seed Seed) *sqlite.Store {
	tb.Helper()

	ctx := context.Background()
	store, err := sqlite.Open(ctx, sqlite.DefaultConfig(filepath.Join(tb.TempDir(), "booking.db")))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	Load(tb, store, seed)
	return store
}

// Load inserts seed into store. Reservations are written in one transaction
// without rule evaluation, so tests can stage any state.
func Load(tb testing.TB, store persistence.Store, seed Seed) {
	tb.Helper()

	ctx := context.Background()
	for _, room := range seed.Rooms {
		if err := store.CreateRoom(ctx, room.Persistence()); err != nil {
			tb.Fatalf("seed room %s: %v", room.ID, err)
		}
	}
	for _, user := range seed.Users {
		if err := store.CreateUser(ctx, user.Persistence()); err != nil {
			tb.Fatalf("seed user %s: %v", user.ID, err)
		}
	}
	if len(seed.Reservations) == 0 {
		return
	}

	err := store.WithTx(ctx, func(ctx context.Context, tx persistence.Tx) error {
		for _, reservation := range seed.Reservations {
			if err := tx.CreateReservation(ctx, reservation.Persistence()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tb.Fatalf("seed reservations: %v", err)
	}
}

// ActiveReservations lists the active reservations of room in start order.
func ActiveReservations(tb testing.TB, store persistence.ReservationReader, roomID string) []persistence.Reservation {
	tb.Helper()

	reservations, err := store.ListReservations(context.Background(), persistence.ReservationFilter{RoomID: roomID, ActiveOnly: true})
	if err != nil {
		tb.Fatalf("list reservations: %v", err)
	}
	return reservations
}
