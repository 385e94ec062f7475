package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/persistence"
)

const (
	// UserIDHeader carries the caller's user id.
	UserIDHeader = "X-User-ID"
	// RequestIDHeader carries the correlation id echoed on every response.
	RequestIDHeader = "X-Request-ID"
)

// PrincipalResolver looks up the directory entry behind a caller id.
type PrincipalResolver interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// Identify resolves the X-User-ID header into a principal. A missing header
// yields the anonymous principal; an id that does not resolve is rejected.
func Identify(users PrincipalResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if id == "" {
				next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), application.Principal{})))
				return
			}

			user, err := users.GetUser(r.Context(), id)
			if err != nil {
				switch {
				case errors.Is(err, application.ErrNotFound), errors.Is(err, persistence.ErrNotFound):
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "UNKNOWN_USER", Message: errUnknownPrincipal.Error()})
				default:
					responder.loggerFor(r.Context()).ErrorContext(r.Context(), "principal lookup failed", "error", err)
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "failed to resolve caller"})
				}
				return
			}

			principal := application.Principal{UserID: user.ID, IsAdmin: user.IsAdmin}
			ctx := ContextWithPrincipal(r.Context(), principal)
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = ContextWithLogger(ctx, logger.With("principal_id", principal.UserID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request-scoped logger tagged with a request id.
// Incoming X-Request-ID values are reused; otherwise a UUID is issued.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	base = defaultLogger(base)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithRequestID(r.Context(), id)
			ctx = ContextWithLogger(ctx, logger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}
