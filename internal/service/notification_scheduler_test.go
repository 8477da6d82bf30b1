package service

import (
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/booking-engine/internal/domain"
)

func newTestScheduler(t *testing.T) *NotificationScheduler {
	t.Helper()

	scheduler, err := NewNotificationScheduler(SchedulerPolicy{
		ReminderOffsets: []time.Duration{24 * time.Hour, 2 * time.Hour},
		DefaultChannel:  domain.ChannelSMS,
	}, NewPlainRenderer(), time.UTC)
	if err != nil {
		t.Fatalf("NewNotificationScheduler() error = %v", err)
	}
	return scheduler
}

func creationEvent(slotDate time.Time, slot domain.TimeOfDay, contact domain.ClientContact) domain.BookingEvent {
	return domain.BookingEvent{
		Type: domain.EventBookingCreated,
		Booking: domain.Booking{
			ID:        "booking-1",
			ClientID:  "client-1",
			ServiceID: "svc-1",
			Date:      slotDate,
			Time:      slot,
			Status:    domain.BookingPending,
		},
		Service:    *barberService(),
		Contact:    contact,
		OccurredAt: testNow,
	}
}

func TestPlanCreationFansOutConfirmationAndReminders(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(t)
	slotDate := dateOnly(testNow.AddDate(0, 0, 7))
	event := creationEvent(slotDate, "14:30", testContact())

	planned, skipped, err := scheduler.Plan(event, testNow)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("skipped = %+v, want none for a slot a week out", skipped)
	}
	if len(planned) != 3 {
		t.Fatalf("planned = %d notifications, want 3", len(planned))
	}

	if planned[0].Type != domain.TypeConfirmation {
		t.Fatalf("first planned type = %s, want CONFIRMATION", planned[0].Type)
	}
	if !planned[0].ScheduledFor.Equal(testNow) {
		t.Fatalf("confirmation scheduledFor = %v, want now", planned[0].ScheduledFor)
	}

	slotStart := domain.TimeOfDay("14:30").At(slotDate, time.UTC)
	wantReminderTimes := []time.Time{slotStart.Add(-24 * time.Hour), slotStart.Add(-2 * time.Hour)}
	for i, want := range wantReminderTimes {
		reminder := planned[i+1]
		if reminder.Type != domain.TypeReminder {
			t.Fatalf("planned[%d] type = %s, want REMINDER", i+1, reminder.Type)
		}
		if !reminder.ScheduledFor.Equal(want) {
			t.Fatalf("planned[%d] scheduledFor = %v, want %v", i+1, reminder.ScheduledFor, want)
		}
	}

	for _, n := range planned {
		if n.BookingID == nil || *n.BookingID != "booking-1" {
			t.Fatalf("notification %s not linked to booking", n.ID)
		}
		if n.Channel != domain.ChannelSMS {
			t.Fatalf("channel = %s, want preferred SMS", n.Channel)
		}
		if n.Status != domain.NotificationPending {
			t.Fatalf("status = %s, want PENDING", n.Status)
		}
	}
}

func TestPlanSkipsRemindersWithPassedWindows(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(t)
	// Slot is 90 minutes out: both the 24h and the 2h reminder are in the past.
	slotDate := dateOnly(testNow)
	event := creationEvent(slotDate, "11:30", testContact())

	planned, skipped, err := scheduler.Plan(event, testNow)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if len(planned) != 1 || planned[0].Type != domain.TypeConfirmation {
		t.Fatalf("planned = %+v, want only the confirmation", planned)
	}
	if len(skipped) != 2 {
		t.Fatalf("skipped = %d, want both reminders", len(skipped))
	}
	for _, skip := range skipped {
		if !errors.Is(skip.Err, domain.ErrReminderWindowPassed) {
			t.Fatalf("skip error = %v, want ErrReminderWindowPassed", skip.Err)
		}
	}
}

func TestPlanPartialReminderWindow(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(t)
	// Tomorrow inside 24h: the 24h reminder is stale, the 2h one still fits.
	slotDate := dateOnly(testNow.AddDate(0, 0, 1))
	event := creationEvent(slotDate, "09:00", testContact())

	planned, skipped, err := scheduler.Plan(event, testNow)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if len(planned) != 2 {
		t.Fatalf("planned = %d, want confirmation + the 2h reminder", len(planned))
	}
	if len(skipped) != 1 || skipped[0].Offset != 24*time.Hour {
		t.Fatalf("skipped = %+v, want only the 24h reminder", skipped)
	}
}

func TestPlanCancellationIsSingleCriticalNotice(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(t)
	reason := "closed for renovation"
	event := creationEvent(dateOnly(testNow.AddDate(0, 0, 7)), "14:30", testContact())
	event.Type = domain.EventBookingCancelled
	event.Reason = &reason

	planned, skipped, err := scheduler.Plan(event, testNow)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("skipped = %+v, want none", skipped)
	}
	if len(planned) != 1 {
		t.Fatalf("planned = %d, want a single cancellation notice", len(planned))
	}

	n := planned[0]
	if n.Type != domain.TypeCancellation {
		t.Fatalf("type = %s, want CANCELLATION", n.Type)
	}
	if n.Priority != domain.PriorityCritical {
		t.Fatalf("priority = %s, want CRITICAL", n.Priority)
	}
	if !n.ScheduledFor.Equal(testNow) {
		t.Fatalf("scheduledFor = %v, want immediate", n.ScheduledFor)
	}
}

func TestPlanRescheduleUsesRescheduleNotice(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(t)
	event := creationEvent(dateOnly(testNow.AddDate(0, 0, 7)), "09:00", testContact())
	event.Type = domain.EventBookingRescheduled
	event.PreviousDate = dateOnly(testNow.AddDate(0, 0, 3))
	event.PreviousTime = "14:30"

	planned, _, err := scheduler.Plan(event, testNow)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(planned) != 3 {
		t.Fatalf("planned = %d, want notice + 2 reminders", len(planned))
	}
	if planned[0].Type != domain.TypeReschedule {
		t.Fatalf("immediate type = %s, want RESCHEDULE", planned[0].Type)
	}
	if planned[0].Priority != domain.PriorityHigh {
		t.Fatalf("reschedule priority = %s, want HIGH", planned[0].Priority)
	}
}

func TestPlanConfirmedAndCompletedScheduleNothing(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(t)
	for _, eventType := range []domain.BookingEventType{domain.EventBookingConfirmed, domain.EventBookingCompleted} {
		event := creationEvent(dateOnly(testNow.AddDate(0, 0, 7)), "14:30", testContact())
		event.Type = eventType

		planned, skipped, err := scheduler.Plan(event, testNow)
		if err != nil {
			t.Fatalf("Plan(%s) error = %v", eventType, err)
		}
		if len(planned) != 0 || len(skipped) != 0 {
			t.Fatalf("Plan(%s) = %d planned, %d skipped; want none", eventType, len(planned), len(skipped))
		}
	}
}

func TestPlanFallsBackToDefaultChannel(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(t)
	contact := domain.ClientContact{Recipient: "client@example.com"}
	event := creationEvent(dateOnly(testNow.AddDate(0, 0, 7)), "14:30", contact)

	planned, _, err := scheduler.Plan(event, testNow)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	for _, n := range planned {
		if n.Channel != domain.ChannelSMS {
			t.Fatalf("channel = %s, want default SMS when no preference is set", n.Channel)
		}
	}
}

func TestPlanRejectsUnknownEventType(t *testing.T) {
	t.Parallel()

	scheduler := newTestScheduler(t)
	event := creationEvent(dateOnly(testNow.AddDate(0, 0, 7)), "14:30", testContact())
	event.Type = "booking.exploded"

	_, _, err := scheduler.Plan(event, testNow)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Plan() error = %v, want ErrValidation", err)
	}
}
