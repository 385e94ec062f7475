package testfixtures

import (
	"context"
	"testing"

	"github.com/example/room-booking/internal/application"
)

func TestServiceFactoryNewUserService(t *testing.T) {
	factory := NewServiceFactory()
	store := NewMemoryStore(t, Seed{})

	svc := factory.NewUserService(store)
	fixture := NewUserFixture(WithUserAdmin(true))

	user, err := svc.CreateUser(context.Background(), application.CreateUserParams{Input: fixture.Input()})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	if user.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", user.ID)
	}
	if !user.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), user.CreatedAt)
	}
	if _, err := store.GetUser(context.Background(), user.ID); err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
}

func TestServiceFactoryNewReservationService(t *testing.T) {
	room := NewRoomFixture()
	user := NewUserFixture()
	store := NewMemoryStore(t, Seed{Rooms: []RoomFixture{room}, Users: []UserFixture{user}})

	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("reservation")))
	svc := factory.NewReservationService(ReservationServiceDeps{Store: store})

	reservation, err := svc.Create(context.Background(), application.CreateReservationParams{
		Principal: user.Principal(),
		Input:     NewReservationFixture(room.ID, user.ID).Input(),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if reservation.ID != "reservation-1" {
		t.Fatalf("expected reservation-1, got %q", reservation.ID)
	}
	if got := ActiveReservations(t, store, room.ID); len(got) != 1 {
		t.Fatalf("expected one active reservation, got %d", len(got))
	}
}

func TestNewSQLiteStoreLoadsSeed(t *testing.T) {
	room := NewRoomFixture()
	user := NewUserFixture()
	booked := NewReservationFixture(room.ID, user.ID)

	store := NewSQLiteStore(t, Seed{
		Rooms:        []RoomFixture{room},
		Users:        []UserFixture{user},
		Reservations: []ReservationFixture{booked},
	})

	got := ActiveReservations(t, store, room.ID)
	if len(got) != 1 || got[0].ID != booked.ID || !got[0].StartsAt.Equal(booked.StartsAt) {
		t.Fatalf("unexpected seeded reservations %+v", got)
	}
}
