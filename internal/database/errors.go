package database

import (
	"errors"
	"fmt"

	"courtbook/internal/models"
	"courtbook/internal/timeslot"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSlotTaken is returned when the in-transaction check finds the
	// interval occupied.
	ErrSlotTaken = errors.New("slot is not available")

	// ErrConcurrentModification is returned when a compare-and-swap update
	// matched no row.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError carries the statuses of a rejected transition.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// BlockConflictError is returned when a new block would cover an active
// reservation.
type BlockConflictError struct {
	Reservation *models.Reservation
}

func (e *BlockConflictError) Error() string {
	return fmt.Sprintf("block covers reservation %s on %s %s",
		e.Reservation.ID, timeslot.FormatDate(e.Reservation.Date), e.Reservation.Interval())
}

func (e *BlockConflictError) Unwrap() error {
	return ErrSlotTaken
}
