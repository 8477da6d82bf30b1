package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/booking-engine/internal/domain"
	"github.com/kursadbilgin/booking-engine/internal/repository"
)

// AvailabilityReason explains why a slot cannot be booked.
type AvailabilityReason string

const (
	ReasonDateInPast      AvailabilityReason = "date is in the past"
	ReasonServiceInactive AvailabilityReason = "service is not active"
	ReasonDayNotOffered   AvailabilityReason = "day not offered"
	ReasonSlotNotOffered  AvailabilityReason = "slot not offered"
	ReasonDailyCapReached AvailabilityReason = "daily booking limit reached"
	ReasonSlotTaken       AvailabilityReason = "slot taken"
)

// AvailabilityResult is the outcome of a bookability check. Reason is empty
// when the slot is available.
type AvailabilityResult struct {
	Available bool
	Reason    AvailabilityReason
}

// ServiceSource resolves a service's bookable policy, typically the Catalog.
type ServiceSource interface {
	Get(ctx context.Context, id string) (*domain.Service, error)
}

// AvailabilityEngine decides whether a requested slot can be booked. All
// checks are read-only; the booking repository's guarded insert remains the
// authoritative race arbiter.
type AvailabilityEngine struct {
	catalog  ServiceSource
	bookings repository.BookingRepository
	location *time.Location
	now      func() time.Time
}

func NewAvailabilityEngine(
	catalog ServiceSource,
	bookings repository.BookingRepository,
	location *time.Location,
) (*AvailabilityEngine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("service catalog is required")
	}
	if bookings == nil {
		return nil, fmt.Errorf("booking repository is required")
	}
	if location == nil {
		location = time.UTC
	}

	return &AvailabilityEngine{
		catalog:  catalog,
		bookings: bookings,
		location: location,
		now:      time.Now,
	}, nil
}

// Check runs the policy and conflict checks in order, short-circuiting on the
// first failure. excludeBookingID removes one booking from the cap and
// conflict scans, which lets reschedule and confirm re-validate without the
// booking colliding with itself. Unknown services return domain.ErrNotFound.
func (e *AvailabilityEngine) Check(
	ctx context.Context,
	serviceID string,
	date time.Time,
	slot domain.TimeOfDay,
	excludeBookingID string,
) (*AvailabilityResult, error) {
	if !slot.IsValid() {
		return nil, fmt.Errorf("%w: invalid time of day %q", domain.ErrValidation, slot)
	}

	today := dateOnly(e.now().In(e.location))
	requested := dateOnly(date.In(e.location))
	if requested.Before(today) {
		return &AvailabilityResult{Available: false, Reason: ReasonDateInPast}, nil
	}

	svc, err := e.catalog.Get(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return &AvailabilityResult{Available: false, Reason: ReasonServiceInactive}, nil
	}

	if !svc.OffersWeekday(requested.Weekday()) {
		return &AvailabilityResult{Available: false, Reason: ReasonDayNotOffered}, nil
	}
	if !svc.OffersSlot(slot) {
		return &AvailabilityResult{Available: false, Reason: ReasonSlotNotOffered}, nil
	}

	if svc.MaxDailyBookings != nil {
		count, err := e.bookings.CountActive(ctx, serviceID, requested, excludeBookingID)
		if err != nil {
			return nil, err
		}
		if count >= int64(*svc.MaxDailyBookings) {
			return &AvailabilityResult{Available: false, Reason: ReasonDailyCapReached}, nil
		}
	}

	conflict, err := e.bookings.FindConflicting(ctx, serviceID, requested, slot, excludeBookingID)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return &AvailabilityResult{Available: false, Reason: ReasonSlotTaken}, nil
	}

	return &AvailabilityResult{Available: true}, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
