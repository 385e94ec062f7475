package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/calendar"
	"github.com/example/room-booking/internal/persistence"
)

type reservationService interface {
	Create(ctx context.Context, params application.CreateReservationParams) (persistence.Reservation, error)
	CreateRecurring(ctx context.Context, params application.CreateRecurringParams) ([]persistence.Reservation, error)
	Cancel(ctx context.Context, params application.CancelReservationParams) (persistence.Reservation, error)
	Get(ctx context.Context, principal application.Principal, id string) (persistence.Reservation, error)
	List(ctx context.Context, params application.ListReservationsParams) ([]persistence.Reservation, error)
}

// ReservationHandler serves the reservation endpoints.
type ReservationHandler struct {
	service   reservationService
	calendar  calendar.Calendar
	responder responder
	logger    *slog.Logger
}

// NewReservationHandler constructs a handler. cal interprets date-only inputs.
func NewReservationHandler(service reservationService, cal calendar.Calendar, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, calendar: cal, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req reservationRequest
	if !h.responder.decodeJSON(w, r, &req) {
		return
	}

	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_id", input.RoomID)

	reservation, err := h.service.Create(r.Context(), application.CreateReservationParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "reservation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req recurringRequest
	if !h.responder.decodeJSON(w, r, &req) {
		return
	}

	input, err := req.toInput(h.calendar)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger := h.log(r.Context(), "CreateRecurring", "principal_id", principal.UserID, "room_id", input.RoomID, "recurring", input.Recurring)

	reservations, err := h.service.CreateRecurring(r.Context(), application.CreateRecurringParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "recurring reservation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("occurrences", len(reservations)).InfoContext(r.Context(), "recurring reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, listReservationsResponse{Reservations: toReservationDTOs(reservations)})
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := r.PathValue("id")
	logger := h.log(r.Context(), "Cancel", "principal_id", principal.UserID, "reservation_id", id)

	reservation, err := h.service.Cancel(r.Context(), application.CancelReservationParams{
		Principal:     principal,
		ReservationID: id,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "cancellation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	reservation, err := h.service.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()

	params := application.ListReservationsParams{
		Principal: principal,
		RoomID:    strings.TrimSpace(query.Get("room_id")),
		UserID:    strings.TrimSpace(query.Get("user_id")),
		SeriesID:  strings.TrimSpace(query.Get("series_id")),
	}
	if raw := strings.TrimSpace(query.Get("active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, &application.InputFormatError{Field: "active", Value: raw})
			return
		}
		params.ActiveOnly = active
	}

	reservations, err := h.service.List(r.Context(), params)
	if err != nil {
		h.log(r.Context(), "List", "principal_id", principal.UserID).ErrorContext(r.Context(), "reservation list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: toReservationDTOs(reservations)})
}

type reservationRequest struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

func (r reservationRequest) toInput() (application.ReservationInput, error) {
	start, err := parseTimestamp("starts_at", r.StartsAt)
	if err != nil {
		return application.ReservationInput{}, err
	}
	end, err := parseTimestamp("ends_at", r.EndsAt)
	if err != nil {
		return application.ReservationInput{}, err
	}
	return application.ReservationInput{
		RoomID:   strings.TrimSpace(r.RoomID),
		UserID:   strings.TrimSpace(r.UserID),
		Title:    r.Title,
		StartsAt: start,
		EndsAt:   end,
	}, nil
}

type recurringRequest struct {
	reservationRequest
	Recurring      string `json:"recurring"`
	RecurringUntil string `json:"recurring_until"`
}

func (r recurringRequest) toInput(cal calendar.Calendar) (application.RecurringInput, error) {
	base, err := r.reservationRequest.toInput()
	if err != nil {
		return application.RecurringInput{}, err
	}

	input := application.RecurringInput{
		RoomID:    base.RoomID,
		UserID:    base.UserID,
		Title:     base.Title,
		StartsAt:  base.StartsAt,
		EndsAt:    base.EndsAt,
		Recurring: strings.TrimSpace(r.Recurring),
	}
	if raw := strings.TrimSpace(r.RecurringUntil); raw != "" {
		until, err := cal.ParseDate(raw)
		if err != nil {
			return application.RecurringInput{}, &application.InputFormatError{Field: "recurring_until", Value: r.RecurringUntil}
		}
		input.RecurringUntil = &until
	}
	return input, nil
}

// parseTimestamp accepts RFC 3339 values. An empty value is left zero so the
// presence rule reports it alongside any other violation.
func parseTimestamp(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &application.InputFormatError{Field: field, Value: value}
	}
	return t, nil
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type reservationDTO struct {
	ID             string  `json:"id"`
	RoomID         string  `json:"room_id"`
	UserID         string  `json:"user_id"`
	Title          string  `json:"title"`
	StartsAt       string  `json:"starts_at"`
	EndsAt         string  `json:"ends_at"`
	Recurring      string  `json:"recurring"`
	RecurringUntil *string `json:"recurring_until,omitempty"`
	SeriesID       *string `json:"series_id,omitempty"`
	CancelledAt    *string `json:"cancelled_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func toReservationDTO(reservation persistence.Reservation) reservationDTO {
	dto := reservationDTO{
		ID:        reservation.ID,
		RoomID:    reservation.RoomID,
		UserID:    reservation.UserID,
		Title:     reservation.Title,
		StartsAt:  formatTimestamp(reservation.StartsAt),
		EndsAt:    formatTimestamp(reservation.EndsAt),
		Recurring: reservation.Recurring,
		SeriesID:  reservation.SeriesID,
		CreatedAt: formatTimestamp(reservation.CreatedAt),
	}
	if reservation.RecurringUntil != nil {
		until := reservation.RecurringUntil.Format(calendar.DateLayout)
		dto.RecurringUntil = &until
	}
	if reservation.CancelledAt != nil {
		cancelled := formatTimestamp(*reservation.CancelledAt)
		dto.CancelledAt = &cancelled
	}
	return dto
}

func toReservationDTOs(reservations []persistence.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, toReservationDTO(reservation))
	}
	return out
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
