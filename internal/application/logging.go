package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/room-booking/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, service, operation string, attrs ...any) *slog.Logger {
	logger := logging.Or(ctx, base)

	fields := make([]any, 0, len(attrs)+4)
	fields = append(fields, "service", service, "operation", operation)
	fields = append(fields, attrs...)
	return logger.With(fields...)
}

// ErrorKind returns a stable label for err suitable for log attributes.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		if vErr.Conflict {
			return "concurrency_conflict"
		}
		return "validation"
	}
	var fErr *InputFormatError
	if errors.As(err, &fErr) {
		return "input_format"
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	}

	return "unexpected"
}
