package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/booking-engine/internal/domain"
)

// BookingEventMessage is the broker payload for a booking lifecycle event.
type BookingEventMessage struct {
	EventType        string     `json:"eventType"`
	BookingID        string     `json:"bookingId"`
	ServiceID        string     `json:"serviceId"`
	ClientID         string     `json:"clientId"`
	Date             string     `json:"date"`
	Time             string     `json:"time"`
	Status           string     `json:"status"`
	PreviousDate     string     `json:"previousDate,omitempty"`
	PreviousTime     string     `json:"previousTime,omitempty"`
	LateCancellation bool       `json:"lateCancellation,omitempty"`
	Reason           *string    `json:"reason,omitempty"`
	OccurredAt       time.Time  `json:"occurredAt"`
}

// MessageFromEvent flattens a lifecycle event into its broker payload.
func MessageFromEvent(event domain.BookingEvent) BookingEventMessage {
	msg := BookingEventMessage{
		EventType:        string(event.Type),
		BookingID:        event.Booking.ID,
		ServiceID:        event.Booking.ServiceID,
		ClientID:         event.Booking.ClientID,
		Date:             event.Booking.Date.Format("2006-01-02"),
		Time:             event.Booking.Time.String(),
		Status:           event.Booking.Status.String(),
		LateCancellation: event.LateCancellation,
		Reason:           event.Reason,
		OccurredAt:       event.OccurredAt,
	}

	if !event.PreviousDate.IsZero() {
		msg.PreviousDate = event.PreviousDate.Format("2006-01-02")
	}
	if event.PreviousTime != "" {
		msg.PreviousTime = event.PreviousTime.String()
	}

	return msg
}

func (m BookingEventMessage) Validate() error {
	if strings.TrimSpace(m.EventType) == "" {
		return fmt.Errorf("eventType is required")
	}
	if strings.TrimSpace(m.BookingID) == "" {
		return fmt.Errorf("bookingId is required")
	}
	if strings.TrimSpace(m.ServiceID) == "" {
		return fmt.Errorf("serviceId is required")
	}
	return nil
}
