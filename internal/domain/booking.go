package domain

import (
	"fmt"
	"strings"
	"time"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
)

func (s BookingStatus) String() string { return string(s) }

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// IsActive reports whether a booking in this state still occupies its slot.
func (s BookingStatus) IsActive() bool {
	return s == BookingPending || s == BookingConfirmed
}

// IsTerminal reports whether no further transition is valid from this state.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

func ParseBookingStatusFromString(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid booking status %q", ErrValidation, s)
	}
	return st, nil
}

// ActiveBookingStatuses are the states that occupy a slot.
func ActiveBookingStatuses() []BookingStatus {
	return []BookingStatus{BookingPending, BookingConfirmed}
}

// CanTransition reports whether the lifecycle allows moving from one state to
// another. Completed and cancelled are terminal.
func CanTransition(from, to BookingStatus) bool {
	switch to {
	case BookingConfirmed:
		return from == BookingPending
	case BookingCompleted:
		return from.IsActive()
	case BookingCancelled:
		return from.IsActive()
	}
	return false
}

// Booking is a client's reservation of a service slot. It is mutated only
// through lifecycle transitions.
type Booking struct {
	ID                 string
	ClientID           string
	ServiceID          string
	Date               time.Time
	Time               TimeOfDay
	Status             BookingStatus
	Notes              *string
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
	RescheduledAt      *time.Time
}

func (b *Booking) Validate() error {
	if strings.TrimSpace(b.ClientID) == "" {
		return fmt.Errorf("%w: client id is required", ErrValidation)
	}
	if strings.TrimSpace(b.ServiceID) == "" {
		return fmt.Errorf("%w: service id is required", ErrValidation)
	}
	if b.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if !b.Time.IsValid() {
		return fmt.Errorf("%w: invalid booking time %q", ErrValidation, b.Time)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("%w: invalid booking status %q", ErrValidation, b.Status)
	}
	return nil
}

// StartsAt returns the full slot start instant in the given location.
func (b *Booking) StartsAt(loc *time.Location) time.Time {
	return b.Time.At(b.Date, loc)
}

// HoursUntil returns the whole and fractional hours between now and the slot
// start. Negative when the slot is already in the past.
func (b *Booking) HoursUntil(now time.Time, loc *time.Location) float64 {
	return b.StartsAt(loc).Sub(now).Hours()
}
