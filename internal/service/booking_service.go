package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/booking-engine/internal/domain"
	"github.com/kursadbilgin/booking-engine/internal/observability"
	"github.com/kursadbilgin/booking-engine/internal/queue"
	"github.com/kursadbilgin/booking-engine/internal/repository"
	"go.uber.org/zap"
)

// CreateBookingRequest carries everything needed to book a slot. The contact
// travels with the request because the client directory lives outside the
// engine.
type CreateBookingRequest struct {
	ClientID  string
	ServiceID string
	Date      time.Time
	Time      domain.TimeOfDay
	Contact   domain.ClientContact
	Notes     *string
}

// RescheduleBookingRequest moves an active booking to a new slot.
type RescheduleBookingRequest struct {
	BookingID string
	Date      time.Time
	Time      domain.TimeOfDay
	Contact   domain.ClientContact
	Reason    *string
}

// CancelResult reports a cancellation together with the informational
// cancellation-policy outcome. A late cancellation is never blocked.
type CancelResult struct {
	Booking          *domain.Booking
	LateCancellation bool
	HoursUntilSlot   float64
}

// BookingService drives bookings through their lifecycle. Every slot mutation
// re-validates availability, and cancel/reschedule synchronously cancel the
// booking's still-pending notifications so no reminder fires for a slot that
// no longer exists.
type BookingService struct {
	bookings      repository.BookingRepository
	notifications repository.NotificationRepository
	catalog       ServiceSource
	availability  *AvailabilityEngine
	scheduler     *NotificationScheduler
	publisher     queue.Publisher
	logger        *zap.Logger
	metrics       *observability.Metrics
	location      *time.Location
	now           func() time.Time
}

func NewBookingService(
	bookings repository.BookingRepository,
	notifications repository.NotificationRepository,
	catalog ServiceSource,
	availability *AvailabilityEngine,
	scheduler *NotificationScheduler,
	publisher queue.Publisher,
	location *time.Location,
	logger *zap.Logger,
) (*BookingService, error) {
	if bookings == nil {
		return nil, fmt.Errorf("booking repository is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("service catalog is required")
	}
	if availability == nil {
		return nil, fmt.Errorf("availability engine is required")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("notification scheduler is required")
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BookingService{
		bookings:      bookings,
		notifications: notifications,
		catalog:       catalog,
		availability:  availability,
		scheduler:     scheduler,
		publisher:     publisher,
		location:      location,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *BookingService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// CheckAvailability exposes the availability decision to callers that want to
// explain "why not this slot" without attempting a booking.
func (s *BookingService) CheckAvailability(ctx context.Context, serviceID string, date time.Time, slot domain.TimeOfDay) (*AvailabilityResult, error) {
	return s.availability.Check(ctx, serviceID, date, slot, "")
}

func (s *BookingService) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, strings.TrimSpace(id))
}

func (s *BookingService) List(ctx context.Context, params repository.BookingListParams) ([]domain.Booking, int64, error) {
	return s.bookings.List(ctx, params)
}

func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	if err := validateContact(req.Contact); err != nil {
		return nil, err
	}

	result, err := s.availability.Check(ctx, req.ServiceID, req.Date, req.Time, "")
	if err != nil {
		return nil, err
	}
	if !result.Available {
		s.incConflict("create", result.Reason)
		return nil, fmt.Errorf("%w: %s", domain.ErrSlotUnavailable, result.Reason)
	}

	svc, err := s.catalog.Get(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		ID:        uuid.NewString(),
		ClientID:  req.ClientID,
		ServiceID: req.ServiceID,
		Date:      dateOnly(req.Date.In(s.location)),
		Time:      req.Time,
		Status:    domain.BookingPending,
		Notes:     req.Notes,
	}
	if err := booking.Validate(); err != nil {
		return nil, err
	}

	if err := s.bookings.CreateIfSlotFree(ctx, booking, svc.MaxDailyBookings); err != nil {
		if errors.Is(err, domain.ErrSlotUnavailable) {
			s.incConflict("create", ReasonSlotTaken)
		}
		return nil, err
	}

	event := domain.BookingEvent{
		Type:       domain.EventBookingCreated,
		Booking:    *booking,
		Service:    *svc,
		Contact:    req.Contact,
		OccurredAt: s.now(),
	}
	if err := s.scheduleNotifications(ctx, event); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, event)

	if s.metrics != nil {
		s.metrics.IncBookingTransition(string(domain.BookingPending))
	}
	return booking, nil
}

func (s *BookingService) Confirm(ctx context.Context, bookingID string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(booking.Status, domain.BookingConfirmed) {
		return nil, domain.NewInvalidTransitionError(booking.Status, domain.BookingConfirmed)
	}

	// Guard against the slot having been closed since creation.
	result, err := s.availability.Check(ctx, booking.ServiceID, booking.Date, booking.Time, booking.ID)
	if err != nil {
		return nil, err
	}
	if !result.Available {
		s.incConflict("confirm", result.Reason)
		return nil, fmt.Errorf("%w: %s", domain.ErrSlotUnavailable, result.Reason)
	}

	now := s.now()
	if err := s.bookings.Confirm(ctx, booking.ID, now); err != nil {
		return nil, err
	}
	booking.Status = domain.BookingConfirmed
	booking.ConfirmedAt = &now

	svc, err := s.catalog.Get(ctx, booking.ServiceID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, domain.BookingEvent{
		Type:       domain.EventBookingConfirmed,
		Booking:    *booking,
		Service:    *svc,
		OccurredAt: now,
	})

	if s.metrics != nil {
		s.metrics.IncBookingTransition(string(domain.BookingConfirmed))
	}
	return booking, nil
}

func (s *BookingService) Reschedule(ctx context.Context, req RescheduleBookingRequest) (*domain.Booking, error) {
	if err := validateContact(req.Contact); err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !booking.Status.IsActive() {
		return nil, fmt.Errorf("%w: cannot reschedule a %s booking", domain.ErrInvalidTransition, booking.Status)
	}

	result, err := s.availability.Check(ctx, booking.ServiceID, req.Date, req.Time, booking.ID)
	if err != nil {
		return nil, err
	}
	if !result.Available {
		s.incConflict("reschedule", result.Reason)
		return nil, fmt.Errorf("%w: %s", domain.ErrSlotUnavailable, result.Reason)
	}

	svc, err := s.catalog.Get(ctx, booking.ServiceID)
	if err != nil {
		return nil, err
	}

	previousDate := booking.Date
	previousTime := booking.Time
	now := s.now()
	newDate := dateOnly(req.Date.In(s.location))

	if err := s.bookings.MoveToSlotIfFree(ctx, booking.ID, newDate, req.Time, svc.MaxDailyBookings, now); err != nil {
		if errors.Is(err, domain.ErrSlotUnavailable) {
			s.incConflict("reschedule", ReasonSlotTaken)
		}
		return nil, err
	}

	// The old slot's reminders and any unsent confirmation are now stale.
	cancelled, err := s.notifications.CancelPendingForBooking(ctx, booking.ID,
		[]domain.NotificationType{domain.TypeReminder, domain.TypeConfirmation})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel stale notifications: %w", err)
	}

	booking.Date = newDate
	booking.Time = req.Time
	booking.RescheduledAt = &now

	event := domain.BookingEvent{
		Type:         domain.EventBookingRescheduled,
		Booking:      *booking,
		Service:      *svc,
		Contact:      req.Contact,
		OccurredAt:   now,
		PreviousDate: previousDate,
		PreviousTime: previousTime,
		Reason:       req.Reason,
	}
	if err := s.scheduleNotifications(ctx, event); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, event)

	s.logger.Info("booking rescheduled",
		zap.String("bookingId", booking.ID),
		zap.Int64("staleNotificationsCancelled", cancelled),
	)
	return booking, nil
}

func (s *BookingService) Cancel(ctx context.Context, bookingID string, reason *string, contact domain.ClientContact) (*CancelResult, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(booking.Status, domain.BookingCancelled) {
		return nil, domain.NewInvalidTransitionError(booking.Status, domain.BookingCancelled)
	}

	svc, err := s.catalog.Get(ctx, booking.ServiceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	hoursUntil := booking.HoursUntil(now, s.location)
	late := hoursUntil < float64(svc.CancellationPolicyHours)

	if err := s.bookings.Cancel(ctx, booking.ID, reason, now); err != nil {
		return nil, err
	}
	booking.Status = domain.BookingCancelled
	booking.CancellationReason = reason
	booking.CancelledAt = &now

	cancelled, err := s.notifications.CancelPendingForBooking(ctx, booking.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel pending notifications: %w", err)
	}

	event := domain.BookingEvent{
		Type:             domain.EventBookingCancelled,
		Booking:          *booking,
		Service:          *svc,
		Contact:          contact,
		OccurredAt:       now,
		LateCancellation: late,
		Reason:           reason,
	}
	if contact.Recipient != "" {
		if err := s.scheduleNotifications(ctx, event); err != nil {
			return nil, err
		}
	}
	s.publishEvent(ctx, event)

	s.logger.Info("booking cancelled",
		zap.String("bookingId", booking.ID),
		zap.Bool("lateCancellation", late),
		zap.Int64("pendingNotificationsCancelled", cancelled),
	)
	if s.metrics != nil {
		s.metrics.IncBookingTransition(string(domain.BookingCancelled))
	}

	return &CancelResult{
		Booking:          booking,
		LateCancellation: late,
		HoursUntilSlot:   hoursUntil,
	}, nil
}

func (s *BookingService) Complete(ctx context.Context, bookingID string, notes *string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(booking.Status, domain.BookingCompleted) {
		return nil, domain.NewInvalidTransitionError(booking.Status, domain.BookingCompleted)
	}

	now := s.now()
	if err := s.bookings.Complete(ctx, booking.ID, notes, now); err != nil {
		return nil, err
	}
	booking.Status = domain.BookingCompleted
	booking.CompletedAt = &now
	if notes != nil {
		booking.Notes = notes
	}

	svc, err := s.catalog.Get(ctx, booking.ServiceID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, domain.BookingEvent{
		Type:       domain.EventBookingCompleted,
		Booking:    *booking,
		Service:    *svc,
		OccurredAt: now,
	})

	if s.metrics != nil {
		s.metrics.IncBookingTransition(string(domain.BookingCompleted))
	}
	return booking, nil
}

// Purge hard-deletes a booking and cancels whatever notifications were still
// pending for it. Administrative use only.
func (s *BookingService) Purge(ctx context.Context, bookingID string) error {
	if _, err := s.notifications.CancelPendingForBooking(ctx, bookingID, nil); err != nil {
		return fmt.Errorf("failed to cancel pending notifications: %w", err)
	}
	return s.bookings.HardDelete(ctx, bookingID)
}

func (s *BookingService) scheduleNotifications(ctx context.Context, event domain.BookingEvent) error {
	planned, skipped, err := s.scheduler.Plan(event, s.now())
	if err != nil {
		return fmt.Errorf("failed to plan notifications: %w", err)
	}

	for _, skip := range skipped {
		s.logger.Warn("reminder window already passed, not scheduling",
			zap.String("bookingId", event.Booking.ID),
			zap.Duration("offset", skip.Offset),
			zap.Error(skip.Err),
		)
	}

	if len(planned) == 0 {
		return nil
	}

	toCreate := make([]*domain.Notification, 0, len(planned))
	for i := range planned {
		toCreate = append(toCreate, &planned[i])
	}
	if err := s.notifications.CreateBatch(ctx, toCreate); err != nil {
		return fmt.Errorf("failed to persist notifications: %w", err)
	}

	if s.metrics != nil {
		for i := range planned {
			s.metrics.IncNotificationScheduled(strings.ToLower(planned[i].Type.String()))
		}
	}
	return nil
}

// publishEvent is best-effort: broker trouble must not fail a booking
// operation that already committed.
func (s *BookingService) publishEvent(ctx context.Context, event domain.BookingEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, string(event.Type), queue.MessageFromEvent(event)); err != nil {
		s.logger.Error("failed to publish booking event",
			zap.String("bookingId", event.Booking.ID),
			zap.String("eventType", string(event.Type)),
			zap.Error(err),
		)
	}
}

func (s *BookingService) incConflict(operation string, reason AvailabilityReason) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSlotConflict(operation, string(reason))
}

func validateContact(contact domain.ClientContact) error {
	if strings.TrimSpace(contact.Recipient) == "" {
		return fmt.Errorf("%w: contact recipient is required", domain.ErrValidation)
	}
	return nil
}
