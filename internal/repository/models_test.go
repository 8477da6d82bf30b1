package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/booking-engine/internal/domain"
)

func TestServiceModelFlattensWeekdaysAndSlots(t *testing.T) {
	t.Parallel()

	maxDaily := 8
	svc := &domain.Service{
		ID:                      "svc-1",
		Name:                    "Haircut",
		Active:                  true,
		DurationMinutes:         30,
		AvailableWeekdays:       []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		AvailableTimeSlots:      []domain.TimeOfDay{"09:00", "14:30"},
		MaxDailyBookings:        &maxDaily,
		CancellationPolicyHours: 24,
	}

	model := serviceModelFromDomain(svc)
	if model.AvailableWeekdays != "MONDAY,WEDNESDAY,FRIDAY" {
		t.Fatalf("flattened weekdays = %q", model.AvailableWeekdays)
	}
	if model.AvailableTimeSlots != "09:00,14:30" {
		t.Fatalf("flattened slots = %q", model.AvailableTimeSlots)
	}

	restored, err := serviceModelToDomain(model)
	if err != nil {
		t.Fatalf("serviceModelToDomain() error = %v", err)
	}
	if len(restored.AvailableWeekdays) != 3 || restored.AvailableWeekdays[1] != time.Wednesday {
		t.Fatalf("restored weekdays = %v", restored.AvailableWeekdays)
	}
	if len(restored.AvailableTimeSlots) != 2 || restored.AvailableTimeSlots[1] != "14:30" {
		t.Fatalf("restored slots = %v", restored.AvailableTimeSlots)
	}
	if restored.MaxDailyBookings == nil || *restored.MaxDailyBookings != 8 {
		t.Fatalf("restored max daily = %v", restored.MaxDailyBookings)
	}
}

func TestServiceModelToDomainRejectsCorruptColumns(t *testing.T) {
	t.Parallel()

	badDay := &ServiceModel{AvailableWeekdays: "MOONDAY", AvailableTimeSlots: "09:00"}
	if _, err := serviceModelToDomain(badDay); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("corrupt weekday error = %v, want ErrValidation", err)
	}

	badSlot := &ServiceModel{AvailableWeekdays: "MONDAY", AvailableTimeSlots: "25:61"}
	if _, err := serviceModelToDomain(badSlot); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("corrupt slot error = %v, want ErrValidation", err)
	}
}

func TestBookingModelKeepsSlotAsText(t *testing.T) {
	t.Parallel()

	confirmedAt := time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC)
	booking := &domain.Booking{
		ID:          "b-1",
		ClientID:    "c-1",
		ServiceID:   "svc-1",
		Date:        time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		Time:        "14:30",
		Status:      domain.BookingConfirmed,
		ConfirmedAt: &confirmedAt,
	}

	model := bookingModelFromDomain(booking)
	if model.Time != "14:30" {
		t.Fatalf("model time = %q, want 14:30", model.Time)
	}

	restored := bookingModelToDomain(model)
	if restored.Time != domain.TimeOfDay("14:30") {
		t.Fatalf("restored time = %q, want 14:30", restored.Time)
	}
	if restored.Status != domain.BookingConfirmed {
		t.Fatalf("restored status = %s, want CONFIRMED", restored.Status)
	}
	if restored.ConfirmedAt == nil || !restored.ConfirmedAt.Equal(confirmedAt) {
		t.Fatalf("restored confirmedAt = %v, want %v", restored.ConfirmedAt, confirmedAt)
	}
}

func TestNilModelsConvertToNil(t *testing.T) {
	t.Parallel()

	if bookingModelToDomain(nil) != nil {
		t.Fatal("bookingModelToDomain(nil) != nil")
	}
	if notificationModelToDomain(nil) != nil {
		t.Fatal("notificationModelToDomain(nil) != nil")
	}
	if attemptModelToDomain(nil) != nil {
		t.Fatal("attemptModelToDomain(nil) != nil")
	}
	if svc, err := serviceModelToDomain(nil); svc != nil || err != nil {
		t.Fatalf("serviceModelToDomain(nil) = %v, %v", svc, err)
	}
}
