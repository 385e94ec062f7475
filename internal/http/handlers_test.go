package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	tf "github.com/example/room-booking/internal/testfixtures"
)

type apiEnv struct {
	handler http.Handler
	admin   tf.UserFixture
	user    tf.UserFixture
	rival   tf.UserFixture
	room    tf.RoomFixture
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	env := &apiEnv{
		admin: tf.NewUserFixture(tf.WithUserAdmin(true)),
		user:  tf.NewUserFixture(),
		rival: tf.NewUserFixture(),
		room:  tf.NewRoomFixture(),
	}
	store := tf.NewMemoryStore(t, tf.Seed{
		Rooms: []tf.RoomFixture{env.room},
		Users: []tf.UserFixture{env.admin, env.user, env.rival},
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := tf.NewServiceFactory()
	users := factory.NewUserService(store)

	env.handler = NewRouter(RouterConfig{
		Reservations: NewReservationHandler(factory.NewReservationService(tf.ReservationServiceDeps{Store: store}), factory.Calendar, logger),
		Rooms:        NewRoomHandler(factory.NewRoomService(store), factory.NewAvailabilityService(store, nil), logger),
		Users:        NewUserHandler(users, logger),
		Middleware: []func(http.Handler) http.Handler{
			RequestLogger(logger),
			Identify(users, logger),
		},
	})
	return env
}

func (e *apiEnv) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func mondayBooking(roomID string, startHour, endHour int) map[string]string {
	mon := tf.Monday()
	return map[string]string{
		"room_id":   roomID,
		"title":     "Design review",
		"starts_at": tf.At(mon, startHour, 0).Format("2006-01-02T15:04:05Z07:00"),
		"ends_at":   tf.At(mon, endHour, 0).Format("2006-01-02T15:04:05Z07:00"),
	}
}

func TestReservationHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create then reject an overlapping booking", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)

		rec := env.do(t, http.MethodPost, "/reservations", env.user.ID, mondayBooking(env.room.ID, 10, 11))
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		created := decode[reservationResponse](t, rec)
		if created.Reservation.UserID != env.user.ID || created.Reservation.Recurring != "none" {
			t.Fatalf("unexpected reservation %+v", created.Reservation)
		}

		rec = env.do(t, http.MethodPost, "/reservations", env.rival.ID, mondayBooking(env.room.ID, 10, 12))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decode[errorResponse](t, rec)
		if body.ErrorCode != "VALIDATION_FAILED" || len(body.Violations) != 1 || body.Violations[0].Rule != "overlap" {
			t.Fatalf("unexpected error body %+v", body)
		}
	})

	t.Run("reports every violation together", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)

		booking := mondayBooking(env.room.ID, 8, 13)
		booking["title"] = ""
		rec := env.do(t, http.MethodPost, "/reservations", env.user.ID, booking)
		body := decode[errorResponse](t, rec)
		if rec.Code != http.StatusUnprocessableEntity || len(body.Violations) < 3 {
			t.Fatalf("expected presence, duration and hours violations, got %d %+v", rec.Code, body)
		}
	})

	t.Run("malformed input is a bad request", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)

		if rec := env.do(t, http.MethodPost, "/reservations", env.user.ID, "{"); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for bad JSON, got %d", rec.Code)
		}

		booking := mondayBooking(env.room.ID, 10, 11)
		booking["starts_at"] = "monday morning"
		rec := env.do(t, http.MethodPost, "/reservations", env.user.ID, booking)
		if rec.Code != http.StatusBadRequest || decode[errorResponse](t, rec).ErrorCode != "INVALID_INPUT" {
			t.Fatalf("expected 400 INVALID_INPUT, got %d: %s", rec.Code, rec.Body.String())
		}

		if rec := env.do(t, http.MethodGet, "/reservations?active=maybe", env.user.ID, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for bad active flag, got %d", rec.Code)
		}
	})

	t.Run("booking for someone else is forbidden", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)

		booking := mondayBooking(env.room.ID, 10, 11)
		booking["user_id"] = env.rival.ID
		if rec := env.do(t, http.MethodPost, "/reservations", env.user.ID, booking); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if rec := env.do(t, http.MethodPost, "/reservations", "", mondayBooking(env.room.ID, 10, 11)); rec.Code != http.StatusForbidden {
			t.Fatalf("anonymous callers cannot book, got %d", rec.Code)
		}
	})

	t.Run("cancel twice conflicts", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)

		created := decode[reservationResponse](t, env.do(t, http.MethodPost, "/reservations", env.user.ID, mondayBooking(env.room.ID, 10, 11)))
		path := "/reservations/" + created.Reservation.ID + "/cancel"

		rec := env.do(t, http.MethodPost, path, env.user.ID, nil)
		if rec.Code != http.StatusOK || decode[reservationResponse](t, rec).Reservation.CancelledAt == nil {
			t.Fatalf("expected cancelled reservation, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = env.do(t, http.MethodPost, path, env.user.ID, nil)
		if rec.Code != http.StatusConflict || decode[errorResponse](t, rec).ErrorCode != "ALREADY_CANCELLED" {
			t.Fatalf("expected 409 ALREADY_CANCELLED, got %d: %s", rec.Code, rec.Body.String())
		}

		if rec := env.do(t, http.MethodPost, "/reservations/missing/cancel", env.user.ID, nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("recurring series and listing", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)

		booking := mondayBooking(env.room.ID, 10, 11)
		request := map[string]string{
			"room_id": booking["room_id"], "title": booking["title"],
			"starts_at": booking["starts_at"], "ends_at": booking["ends_at"],
			"recurring": "weekly", "recurring_until": "2024-03-25",
		}
		rec := env.do(t, http.MethodPost, "/reservations/recurring", env.admin.ID, request)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		series := decode[listReservationsResponse](t, rec).Reservations
		if len(series) != 4 || series[0].SeriesID == nil || series[0].RecurringUntil == nil || *series[0].RecurringUntil != "2024-03-25" {
			t.Fatalf("unexpected series %+v", series)
		}

		rec = env.do(t, http.MethodGet, "/reservations?series_id="+*series[0].SeriesID+"&active=true", env.user.ID, nil)
		if listed := decode[listReservationsResponse](t, rec).Reservations; rec.Code != http.StatusOK || len(listed) != 4 {
			t.Fatalf("expected the 4 series members, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = env.do(t, http.MethodGet, "/reservations/"+series[2].ID, env.user.ID, nil)
		if rec.Code != http.StatusOK || decode[reservationResponse](t, rec).Reservation.ID != series[2].ID {
			t.Fatalf("GET by id failed: %d", rec.Code)
		}

		request["recurring"] = "monthly"
		rec = env.do(t, http.MethodPost, "/reservations/recurring", env.admin.ID, request)
		if rec.Code != http.StatusUnprocessableEntity || decode[errorResponse](t, rec).Violations[0].Rule != "recurrence" {
			t.Fatalf("expected recurrence violation, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestRoomHandlers(t *testing.T) {
	t.Parallel()

	t.Run("require admin role for creation", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)
		room := map[string]any{"name": "Lyra", "capacity": 6, "equipment": map[string]bool{"projector": true}}

		rec := env.do(t, http.MethodPost, "/rooms", env.user.ID, room)
		if rec.Code != http.StatusForbidden || decode[errorResponse](t, rec).ErrorCode != "ADMIN_REQUIRED" {
			t.Fatalf("expected 403 ADMIN_REQUIRED, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = env.do(t, http.MethodPost, "/rooms", env.admin.ID, room)
		if rec.Code != http.StatusCreated || !decode[roomResponse](t, rec).Room.Equipment.Projector {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		if rec := env.do(t, http.MethodPost, "/rooms", env.admin.ID, room); rec.Code != http.StatusConflict {
			t.Fatalf("duplicate room names should conflict, got %d", rec.Code)
		}
	})

	t.Run("allow anyone to list and read rooms", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)

		rec := env.do(t, http.MethodGet, "/rooms", "", nil)
		if rooms := decode[listRoomsResponse](t, rec).Rooms; rec.Code != http.StatusOK || len(rooms) != 1 {
			t.Fatalf("expected one room, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec := env.do(t, http.MethodGet, "/rooms/missing", "", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("availability lists free slots", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)
		env.do(t, http.MethodPost, "/reservations", env.user.ID, mondayBooking(env.room.ID, 10, 11))

		rec := env.do(t, http.MethodGet, "/rooms/"+env.room.ID+"/availability?date=2024-03-04", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		view := decode[availabilityResponse](t, rec)
		if len(view.Slots) != 2 || view.Slots[0].EndsAt != "2024-03-04T10:00:00Z" || view.Slots[1].StartsAt != "2024-03-04T11:00:00Z" {
			t.Fatalf("unexpected slots %+v", view.Slots)
		}
		if len(view.Reservations) != 1 {
			t.Fatalf("expected the booking in the view, got %+v", view.Reservations)
		}

		if rec := env.do(t, http.MethodGet, "/rooms/"+env.room.ID+"/availability", "", nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("missing date should be a bad request, got %d", rec.Code)
		}
	})
}

func TestUserHandlers(t *testing.T) {
	t.Parallel()

	t.Run("require administrator once the directory has users", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)
		user := map[string]any{"name": "Erin", "email": "erin@example.com", "max_capacity_allowed": 4}

		if rec := env.do(t, http.MethodPost, "/users", "", user); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}

		rec := env.do(t, http.MethodPost, "/users", env.admin.ID, user)
		if rec.Code != http.StatusCreated || decode[userResponse](t, rec).User.Email != "erin@example.com" {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = env.do(t, http.MethodGet, "/users", env.user.ID, nil)
		if users := decode[listUsersResponse](t, rec).Users; len(users) != 4 {
			t.Fatalf("expected 4 users, got %d", len(users))
		}
	})

	t.Run("invalid input reports violations", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)

		rec := env.do(t, http.MethodPost, "/users", env.admin.ID, map[string]any{"name": "X", "email": "nope", "max_capacity_allowed": 2})
		body := decode[errorResponse](t, rec)
		if rec.Code != http.StatusUnprocessableEntity || len(body.Violations) != 1 || body.Violations[0].Rule != "invalid" {
			t.Fatalf("expected invalid email violation, got %d %+v", rec.Code, body)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("unknown caller ids are unauthorized", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)

		rec := env.do(t, http.MethodGet, "/rooms", "ghost", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("request ids are issued and echoed", func(t *testing.T) {
		t.Parallel()
		env := newAPIEnv(t)

		rec := env.do(t, http.MethodGet, "/healthz", "", nil)
		if rec.Code != http.StatusNoContent || rec.Header().Get(RequestIDHeader) == "" {
			t.Fatalf("expected generated request id, got %d %q", rec.Code, rec.Header().Get(RequestIDHeader))
		}

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, "trace-42")
		echo := httptest.NewRecorder()
		env.handler.ServeHTTP(echo, req)
		if got := echo.Header().Get(RequestIDHeader); got != "trace-42" {
			t.Fatalf("expected echoed request id, got %q", got)
		}
	})

	t.Run("principal reaches handlers", func(t *testing.T) {
		t.Parallel()
		admin := tf.NewUserFixture(tf.WithUserAdmin(true))
		store := tf.NewMemoryStore(t, tf.Seed{Users: []tf.UserFixture{admin}})
		users := tf.NewServiceFactory().NewUserService(store)

		var seen bool
		handler := Identify(users, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			seen = ok && principal.UserID == admin.ID && principal.IsAdmin
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(UserIDHeader, admin.ID)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if !seen {
			t.Fatalf("expected admin principal in request context")
		}
	})
}
