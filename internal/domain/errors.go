package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrSlotUnavailable is returned when a policy check or an existing active
	// booking prevents a slot from being booked.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrInvalidTransition is returned when a lifecycle operation is attempted
	// from a state that does not allow it.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrReminderWindowPassed is returned by the scheduler when a reminder's
	// computed send time is already in the past.
	ErrReminderWindowPassed = errors.New("reminder window passed")
)

// InvalidTransitionError carries the attempted lifecycle transition.
type InvalidTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func NewInvalidTransitionError(from, to BookingStatus) error {
	return &InvalidTransitionError{From: from, To: to}
}
