package domain

import "time"

// BookingEventType identifies a notable booking state change.
type BookingEventType string

const (
	EventBookingCreated     BookingEventType = "booking.created"
	EventBookingConfirmed   BookingEventType = "booking.confirmed"
	EventBookingRescheduled BookingEventType = "booking.rescheduled"
	EventBookingCancelled   BookingEventType = "booking.cancelled"
	EventBookingCompleted   BookingEventType = "booking.completed"
)

func (t BookingEventType) String() string { return string(t) }

// ClientContact is the delivery target for a booking's notifications. The
// client directory itself lives outside this engine; callers pass the contact
// through with each lifecycle operation.
type ClientContact struct {
	Recipient        string
	PreferredChannel Channel
}

// BookingEvent carries a lifecycle transition to the notification scheduler
// and the event publisher.
type BookingEvent struct {
	Type       BookingEventType
	Booking    Booking
	Service    Service
	Contact    ClientContact
	OccurredAt time.Time

	// Reschedule only: the slot the booking moved away from.
	PreviousDate time.Time
	PreviousTime TimeOfDay

	// Cancellation only: whether the cancellation fell inside the service's
	// penalty window. Informational, never blocks the cancellation.
	LateCancellation bool
	Reason           *string
}
