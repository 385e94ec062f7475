package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/rules"
)

var (
	errBadRequestBody   = errors.New("request body is not valid JSON")
	errUnknownPrincipal = errors.New("unknown user in X-User-ID")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors onto status codes. Violations
// are always returned in full so clients can show every failed rule at once.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		vErr   *application.ValidationError
		fmtErr *application.InputFormatError
	)
	switch {
	case errors.As(err, &vErr):
		resp := errorResponse{
			ErrorCode:  "VALIDATION_FAILED",
			Message:    vErr.Error(),
			Violations: toViolationDTOs(vErr.Violations),
		}
		if vErr.Conflict {
			resp.ErrorCode = "CONCURRENT_CONFLICT"
		}
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, resp)
	case errors.As(err, &fmtErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{ErrorCode: "INVALID_INPUT", Message: fmtErr.Error()})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: "the requested resource does not exist"})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{ErrorCode: "FORBIDDEN", Message: "you are not allowed to perform this operation"})
	case errors.Is(err, application.ErrAdminRequired):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{ErrorCode: "ADMIN_REQUIRED", Message: err.Error()})
	case errors.Is(err, application.ErrAlreadyCancelled):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "ALREADY_CANCELLED", Message: err.Error()})
	case errors.Is(err, application.ErrTooLateToCancel):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "TOO_LATE_TO_CANCEL", Message: err.Error()})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "a record with the same unique key already exists"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Message: "the request was cancelled before it completed"})
	default:
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// decodeJSON reads the request body into dst. On failure it has already
// written a 400 response and reports false.
func (r responder) decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	ctx := req.Context()
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBody)).Decode(dst); err != nil {
		r.loggerFor(ctx).WarnContext(ctx, "failed to decode request body", "error", err, "error_kind", "bad_request")
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{ErrorCode: "INVALID_INPUT", Message: errBadRequestBody.Error()})
		return false
	}
	return true
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode  string         `json:"error_code,omitempty"`
	Message    string         `json:"message"`
	Violations []violationDTO `json:"violations,omitempty"`
}

type violationDTO struct {
	Rule       string `json:"rule"`
	Message    string `json:"message"`
	Occurrence int    `json:"occurrence,omitempty"`
}

func toViolationDTOs(violations []rules.Violation) []violationDTO {
	if len(violations) == 0 {
		return nil
	}
	out := make([]violationDTO, 0, len(violations))
	for _, v := range violations {
		out = append(out, violationDTO{Rule: string(v.Rule), Message: v.String(), Occurrence: v.Occurrence})
	}
	return out
}
