package domain

import (
	"errors"
	"fmt"
	"strings"

	"courtbook/internal/timeslot"
)

var (
	// ErrNotAuthorized is returned when the actor may not act on the entity.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound is returned for unknown reservations, entries, blocks or owners.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSignal marks a payment signal for a reservation that is
	// already in the outcome's target state. Callers treat it as success.
	ErrDuplicateSignal = errors.New("duplicate payment signal")
)

// ValidationError rejects a request before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Conflict sources, in the order they are checked.
const (
	ConflictReservation = "reservation"
	ConflictBlock       = "block"
)

// ConflictError reports why a slot is not available and where else the
// caller could book.
type ConflictError struct {
	Source       string
	Reason       string
	Alternatives []timeslot.TimeOfDay
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("slot not available: %s", e.Reason)
	if len(e.Alternatives) > 0 {
		alts := make([]string, len(e.Alternatives))
		for i, a := range e.Alternatives {
			alts[i] = a.String()
		}
		msg += " (try " + strings.Join(alts, ", ") + ")"
	}
	return msg
}

// CollaboratorError wraps a failure of calendar sync, notification or
// another side channel. It is logged and never changes core state.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return e.Collaborator + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
