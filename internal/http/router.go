package http

import (
	"net/http"
)

// RouterConfig wires handlers and middleware into the router. Nil handlers
// leave their routes unregistered.
type RouterConfig struct {
	Reservations *ReservationHandler
	Rooms        *RoomHandler
	Users        *UserHandler
	Middleware   []func(http.Handler) http.Handler
}

// NewRouter builds the HTTP handler. Middleware runs in slice order, the
// first entry outermost.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Reservations != nil {
		mux.HandleFunc("GET /reservations", cfg.Reservations.List)
		mux.HandleFunc("POST /reservations", cfg.Reservations.Create)
		mux.HandleFunc("POST /reservations/recurring", cfg.Reservations.CreateRecurring)
		mux.HandleFunc("GET /reservations/{id}", cfg.Reservations.Get)
		mux.HandleFunc("POST /reservations/{id}/cancel", cfg.Reservations.Cancel)
	}

	if cfg.Rooms != nil {
		mux.HandleFunc("GET /rooms", cfg.Rooms.List)
		mux.HandleFunc("POST /rooms", cfg.Rooms.Create)
		mux.HandleFunc("GET /rooms/{id}", cfg.Rooms.Get)
		mux.HandleFunc("GET /rooms/{id}/availability", cfg.Rooms.Availability)
	}

	if cfg.Users != nil {
		mux.HandleFunc("GET /users", cfg.Users.List)
		mux.HandleFunc("POST /users", cfg.Users.Create)
		mux.HandleFunc("GET /users/{id}", cfg.Users.Get)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
