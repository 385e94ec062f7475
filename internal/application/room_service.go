package application

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/rules"
)

// RoomService maintains the room catalog. Rooms are only added by
// administrators and are never edited by the booking flow.
type RoomService struct {
	rooms       persistence.RoomRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service. A nil logger falls back to the
// context logger or slog.Default.
func NewRoomService(rooms persistence.RoomRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// CreateRoom validates input and adds a room to the catalog. Room names are
// unique ignoring case; a clash is reported as ErrAlreadyExists.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room persistence.Room, err error) {
	logger := serviceLogger(ctx, s.logger, "RoomService", "CreateRoom",
		"principal_id", params.Principal.UserID,
		"room_name", params.Input.Name,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if !params.Principal.IsAdmin {
		return persistence.Room{}, ErrAdminRequired
	}

	candidate, vErr := s.newRoom(params.Input)
	if vErr.HasErrors() {
		return persistence.Room{}, vErr
	}
	if err = s.rooms.CreateRoom(ctx, candidate); err != nil {
		return persistence.Room{}, mapRoomRepoError(err)
	}
	return candidate, nil
}

// GetRoom returns a room by id.
func (s *RoomService) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return persistence.Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// ListRooms returns the catalog ordered by name, ignoring case, then id.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) (rooms []persistence.Room, err error) {
	logger := serviceLogger(ctx, s.logger, "RoomService", "ListRooms",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	}()

	stored, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}

	rooms = slices.Clone(stored)
	slices.SortFunc(rooms, func(a, b persistence.Room) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			strings.Compare(a.ID, b.ID),
		)
	})
	return rooms, nil
}

func (s *RoomService) newRoom(input RoomInput) (persistence.Room, *ValidationError) {
	vErr := &ValidationError{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		vErr.add(rules.RulePresence, "name is required")
	}
	if input.Capacity <= 0 {
		vErr.add(rules.RuleInvalid, "capacity must be positive")
	}
	if vErr.HasErrors() {
		return persistence.Room{}, vErr
	}

	created := s.now()
	return persistence.Room{
		ID:        s.idGenerator(),
		Name:      name,
		Capacity:  input.Capacity,
		Floor:     input.Floor,
		Equipment: input.Equipment,
		CreatedAt: created,
		UpdatedAt: created,
	}, vErr
}

// mapRoomRepoError treats a storage CHECK failure as the capacity rule, the
// only constraint the room table enforces beyond uniqueness.
func mapRoomRepoError(err error) error {
	if isConstraintViolation(err) {
		vErr := &ValidationError{}
		vErr.add(rules.RuleInvalid, "capacity must be positive")
		return vErr
	}
	return mapRepoError(err)
}
