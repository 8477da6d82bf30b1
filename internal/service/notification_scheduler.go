package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/booking-engine/internal/domain"
)

// Renderer produces the human-facing message body for a notification. The
// engine only depends on this contract; template wording lives with the
// implementation.
type Renderer interface {
	Render(t domain.NotificationType, ch domain.Channel, msgCtx MessageContext) (string, error)
}

// MessageContext is the data a renderer may interpolate into a message body.
type MessageContext struct {
	ServiceName  string
	Date         time.Time
	Time         domain.TimeOfDay
	PreviousDate time.Time
	PreviousTime domain.TimeOfDay
	Reason       *string
}

// SkippedReminder reports a reminder the scheduler refused to plan because its
// send time had already passed.
type SkippedReminder struct {
	Offset time.Duration
	Err    error
}

// SchedulerPolicy holds the tunable parts of notification planning.
type SchedulerPolicy struct {
	// ReminderOffsets are lead times before the booking slot, e.g. 24h and 2h.
	ReminderOffsets []time.Duration
	// DefaultChannel is used when the client has no preferred channel.
	DefaultChannel domain.Channel
}

// NotificationScheduler turns booking lifecycle events into notification
// records. Planning is pure; persistence is the caller's job.
type NotificationScheduler struct {
	policy   SchedulerPolicy
	renderer Renderer
	location *time.Location
}

func NewNotificationScheduler(policy SchedulerPolicy, renderer Renderer, location *time.Location) (*NotificationScheduler, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if len(policy.ReminderOffsets) == 0 {
		policy.ReminderOffsets = []time.Duration{24 * time.Hour, 2 * time.Hour}
	}
	if !policy.DefaultChannel.IsValid() {
		policy.DefaultChannel = domain.ChannelSMS
	}
	if location == nil {
		location = time.UTC
	}

	return &NotificationScheduler{
		policy:   policy,
		renderer: renderer,
		location: location,
	}, nil
}

// Plan computes the notifications a lifecycle event calls for. Reminders whose
// computed send time is not after now are reported as skipped with
// domain.ErrReminderWindowPassed instead of being scheduled immediately; the
// caller decides whether an immediate variant is warranted.
func (s *NotificationScheduler) Plan(event domain.BookingEvent, now time.Time) ([]domain.Notification, []SkippedReminder, error) {
	channel := event.Contact.PreferredChannel
	if !channel.IsValid() {
		channel = s.policy.DefaultChannel
	}

	msgCtx := MessageContext{
		ServiceName:  event.Service.Name,
		Date:         event.Booking.Date,
		Time:         event.Booking.Time,
		PreviousDate: event.PreviousDate,
		PreviousTime: event.PreviousTime,
		Reason:       event.Reason,
	}

	switch event.Type {
	case domain.EventBookingCreated, domain.EventBookingRescheduled:
		return s.planBookedSlot(event, channel, msgCtx, now)
	case domain.EventBookingCancelled:
		n, err := s.build(event, domain.TypeCancellation, channel, msgCtx, now)
		if err != nil {
			return nil, nil, err
		}
		return []domain.Notification{*n}, nil, nil
	case domain.EventBookingConfirmed, domain.EventBookingCompleted:
		// Confirmation messaging is scheduled at creation; completion has no
		// client-facing notification.
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown event type %q", domain.ErrValidation, event.Type)
	}
}

// planBookedSlot schedules the immediate message for the new slot plus the
// reminder fan-out. Creation sends a confirmation, reschedule a reschedule
// notice; both get reminders for the (new) slot time.
func (s *NotificationScheduler) planBookedSlot(
	event domain.BookingEvent,
	channel domain.Channel,
	msgCtx MessageContext,
	now time.Time,
) ([]domain.Notification, []SkippedReminder, error) {
	immediateType := domain.TypeConfirmation
	if event.Type == domain.EventBookingRescheduled {
		immediateType = domain.TypeReschedule
	}

	immediate, err := s.build(event, immediateType, channel, msgCtx, now)
	if err != nil {
		return nil, nil, err
	}

	notifications := []domain.Notification{*immediate}
	var skipped []SkippedReminder

	slotStart := event.Booking.StartsAt(s.location)
	for _, offset := range s.policy.ReminderOffsets {
		scheduledFor := slotStart.Add(-offset)
		if !scheduledFor.After(now) {
			skipped = append(skipped, SkippedReminder{
				Offset: offset,
				Err:    fmt.Errorf("%w: reminder %s before slot is due at %s", domain.ErrReminderWindowPassed, offset, scheduledFor),
			})
			continue
		}

		reminder, err := s.build(event, domain.TypeReminder, channel, msgCtx, scheduledFor)
		if err != nil {
			return nil, nil, err
		}
		notifications = append(notifications, *reminder)
	}

	return notifications, skipped, nil
}

func (s *NotificationScheduler) build(
	event domain.BookingEvent,
	notifType domain.NotificationType,
	channel domain.Channel,
	msgCtx MessageContext,
	scheduledFor time.Time,
) (*domain.Notification, error) {
	content, err := s.renderer.Render(notifType, channel, msgCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s message: %w", notifType, err)
	}

	bookingID := event.Booking.ID
	n := &domain.Notification{
		ID:           uuid.NewString(),
		BookingID:    &bookingID,
		ClientID:     event.Booking.ClientID,
		Type:         notifType,
		Channel:      channel,
		Priority:     domain.PriorityForType(notifType),
		Recipient:    event.Contact.Recipient,
		Content:      content,
		Status:       domain.NotificationPending,
		ScheduledFor: scheduledFor,
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}
