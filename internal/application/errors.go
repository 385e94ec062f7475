package application

import (
	"errors"
	"fmt"

	"github.com/example/room-booking/internal/rules"
)

var (
	// ErrUnauthorized indicates the principal lacks permission for the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates the referenced room, user, or reservation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint failed (room name, user email).
	ErrAlreadyExists = errors.New("already exists")

	// ErrPrecondition groups guarded transitions that cannot run in the current state.
	ErrPrecondition = errors.New("precondition failed")
	// ErrAlreadyCancelled indicates the reservation has already been cancelled.
	ErrAlreadyCancelled = fmt.Errorf("%w: reservation is already cancelled", ErrPrecondition)
	// ErrTooLateToCancel indicates the cancellation cutoff before the start has passed.
	ErrTooLateToCancel = fmt.Errorf("%w: reservation can no longer be cancelled", ErrPrecondition)
	// ErrAdminRequired indicates the operation is restricted to administrators.
	ErrAdminRequired = fmt.Errorf("%w: administrator privileges required", ErrPrecondition)
)

// ValidationError aggregates rule violations. Conflict is set when the
// violations only appeared on re-validation under lock, meaning another
// writer committed first.
type ValidationError struct {
	Violations []rules.Violation
	Conflict   bool
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Conflict {
		return "reservation conflicts with a concurrent booking"
	}
	return "validation failed"
}

// HasErrors reports whether any violation was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Violations) > 0
}

// Messages returns the rendered violation messages.
func (e *ValidationError) Messages() []string {
	if e == nil {
		return nil
	}
	return rules.Messages(e.Violations)
}

func (e *ValidationError) add(rule rules.Rule, message string) {
	e.Violations = append(e.Violations, rules.Violation{Rule: rule, Message: message})
}

func (e *ValidationError) merge(violations ...rules.Violation) {
	e.Violations = append(e.Violations, violations...)
}

// InputFormatError reports a malformed date or time input.
type InputFormatError struct {
	Field string
	Value string
}

// Error implements the error interface.
func (e *InputFormatError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}
