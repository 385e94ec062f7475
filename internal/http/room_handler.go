package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/persistence"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (persistence.Room, error)
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
	ListRooms(ctx context.Context, principal application.Principal) ([]persistence.Room, error)
}

type availabilityService interface {
	Availability(ctx context.Context, roomID, date string) (application.Availability, error)
}

// RoomHandler serves the room catalog and the per-day availability view.
type RoomHandler struct {
	service      roomService
	availability availabilityService
	responder    responder
	logger       *slog.Logger
}

func NewRoomHandler(service roomService, availability availabilityService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, availability: availability, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req roomRequest
	if !h.responder.decodeJSON(w, r, &req) {
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("room_id", room.ID).InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	room, err := h.service.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	rooms, err := h.service.ListRooms(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID := r.PathValue("id")
	date := r.URL.Query().Get("date")
	if strings.TrimSpace(date) == "" {
		h.responder.handleServiceError(r.Context(), w, &application.InputFormatError{Field: "date", Value: date})
		return
	}

	view, err := h.availability.Availability(r.Context(), roomID, date)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	slots := make([]slotDTO, 0, len(view.Slots))
	for _, slot := range view.Slots {
		slots = append(slots, slotDTO{StartsAt: formatTimestamp(slot.StartsAt), EndsAt: formatTimestamp(slot.EndsAt)})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		RoomID:       view.RoomID,
		Date:         view.Date,
		Slots:        slots,
		Reservations: toReservationDTOs(view.Reservations),
	})
}

type roomRequest struct {
	Name      string       `json:"name"`
	Capacity  int          `json:"capacity"`
	Floor     int          `json:"floor"`
	Equipment equipmentDTO `json:"equipment"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:      strings.TrimSpace(r.Name),
		Capacity:  r.Capacity,
		Floor:     r.Floor,
		Equipment: persistence.Equipment(r.Equipment),
	}
}

type equipmentDTO struct {
	Projector       bool `json:"projector"`
	Whiteboard      bool `json:"whiteboard"`
	VideoConference bool `json:"video_conference"`
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Capacity  int          `json:"capacity"`
	Floor     int          `json:"floor"`
	Equipment equipmentDTO `json:"equipment"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
}

func toRoomDTO(room persistence.Room) roomDTO {
	return roomDTO{
		ID:        room.ID,
		Name:      room.Name,
		Capacity:  room.Capacity,
		Floor:     room.Floor,
		Equipment: equipmentDTO(room.Equipment),
		CreatedAt: formatTimestamp(room.CreatedAt),
		UpdatedAt: formatTimestamp(room.UpdatedAt),
	}
}

func toRoomDTOs(rooms []persistence.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}

type slotDTO struct {
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type availabilityResponse struct {
	RoomID       string           `json:"room_id"`
	Date         string           `json:"date"`
	Slots        []slotDTO        `json:"slots"`
	Reservations []reservationDTO `json:"reservations"`
}
