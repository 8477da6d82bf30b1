package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/booking-engine/internal/domain"
	"github.com/kursadbilgin/booking-engine/internal/repository"
	"github.com/kursadbilgin/booking-engine/internal/service"
)

type fakeBookingOperations struct {
	checkAvailabilityFn func(ctx context.Context, serviceID string, date time.Time, slot domain.TimeOfDay) (*service.AvailabilityResult, error)
	createFn            func(ctx context.Context, req service.CreateBookingRequest) (*domain.Booking, error)
	confirmFn           func(ctx context.Context, bookingID string) (*domain.Booking, error)
	rescheduleFn        func(ctx context.Context, req service.RescheduleBookingRequest) (*domain.Booking, error)
	cancelFn            func(ctx context.Context, bookingID string, reason *string, contact domain.ClientContact) (*service.CancelResult, error)
	completeFn          func(ctx context.Context, bookingID string, notes *string) (*domain.Booking, error)
	getByIDFn           func(ctx context.Context, id string) (*domain.Booking, error)
	listFn              func(ctx context.Context, params repository.BookingListParams) ([]domain.Booking, int64, error)
}

func (f *fakeBookingOperations) CheckAvailability(ctx context.Context, serviceID string, date time.Time, slot domain.TimeOfDay) (*service.AvailabilityResult, error) {
	return f.checkAvailabilityFn(ctx, serviceID, date, slot)
}

func (f *fakeBookingOperations) Create(ctx context.Context, req service.CreateBookingRequest) (*domain.Booking, error) {
	return f.createFn(ctx, req)
}

func (f *fakeBookingOperations) Confirm(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return f.confirmFn(ctx, bookingID)
}

func (f *fakeBookingOperations) Reschedule(ctx context.Context, req service.RescheduleBookingRequest) (*domain.Booking, error) {
	return f.rescheduleFn(ctx, req)
}

func (f *fakeBookingOperations) Cancel(ctx context.Context, bookingID string, reason *string, contact domain.ClientContact) (*service.CancelResult, error) {
	return f.cancelFn(ctx, bookingID, reason, contact)
}

func (f *fakeBookingOperations) Complete(ctx context.Context, bookingID string, notes *string) (*domain.Booking, error) {
	return f.completeFn(ctx, bookingID, notes)
}

func (f *fakeBookingOperations) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeBookingOperations) List(ctx context.Context, params repository.BookingListParams) ([]domain.Booking, int64, error) {
	return f.listFn(ctx, params)
}

func newTestApp(t *testing.T, ops BookingOperations) *fiber.App {
	t.Helper()

	app := fiber.New()
	if err := RegisterBookingRoutes(app, ops); err != nil {
		t.Fatalf("RegisterBookingRoutes() error = %v", err)
	}
	return app
}

func sampleBooking(status domain.BookingStatus) *domain.Booking {
	return &domain.Booking{
		ID:        "5f4c9a1e-0000-0000-0000-000000000001",
		ClientID:  "5f4c9a1e-0000-0000-0000-000000000002",
		ServiceID: "5f4c9a1e-0000-0000-0000-000000000003",
		Date:      time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		Time:      domain.TimeOfDay("14:30"),
		Status:    status,
		CreatedAt: time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, time.February, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestCreateBookingReturnsCreated(t *testing.T) {
	t.Parallel()

	var captured service.CreateBookingRequest
	ops := &fakeBookingOperations{
		createFn: func(_ context.Context, req service.CreateBookingRequest) (*domain.Booking, error) {
			captured = req
			return sampleBooking(domain.BookingPending), nil
		},
	}
	app := newTestApp(t, ops)

	body, _ := json.Marshal(createBookingRequest{
		ClientID:  "5f4c9a1e-0000-0000-0000-000000000002",
		ServiceID: "5f4c9a1e-0000-0000-0000-000000000003",
		Date:      "2026-03-02",
		Time:      "14:30",
		Contact: &contactRequest{
			Recipient:        "+15550001111",
			PreferredChannel: "sms",
		},
	})

	req := httptest.NewRequest("POST", "/v1/bookings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if captured.Time != domain.TimeOfDay("14:30") {
		t.Fatalf("captured time = %q, want 14:30", captured.Time)
	}
	if captured.Contact.PreferredChannel != domain.ChannelSMS {
		t.Fatalf("captured channel = %q, want SMS", captured.Contact.PreferredChannel)
	}

	var got bookingResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != string(domain.BookingPending) {
		t.Fatalf("response status = %q, want PENDING", got.Status)
	}
	if got.Date != "2026-03-02" {
		t.Fatalf("response date = %q, want 2026-03-02", got.Date)
	}
}

func TestCreateBookingRejectsMalformedSlot(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &fakeBookingOperations{})

	body := []byte(`{"clientId":"c1","serviceId":"s1","date":"2026-03-02","time":"25:99"}`)
	req := httptest.NewRequest("POST", "/v1/bookings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateBookingMapsSlotConflictToConflict(t *testing.T) {
	t.Parallel()

	ops := &fakeBookingOperations{
		createFn: func(context.Context, service.CreateBookingRequest) (*domain.Booking, error) {
			return nil, fmt.Errorf("%w: slot taken", domain.ErrSlotUnavailable)
		},
	}
	app := newTestApp(t, ops)

	body := []byte(`{"clientId":"c1","serviceId":"s1","date":"2026-03-02","time":"14:30"}`)
	req := httptest.NewRequest("POST", "/v1/bookings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestConfirmBookingMapsInvalidTransitionToConflict(t *testing.T) {
	t.Parallel()

	ops := &fakeBookingOperations{
		confirmFn: func(context.Context, string) (*domain.Booking, error) {
			return nil, domain.NewInvalidTransitionError(domain.BookingCancelled, domain.BookingConfirmed)
		},
	}
	app := newTestApp(t, ops)

	req := httptest.NewRequest("POST", "/v1/bookings/abc/confirm", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestGetBookingNotFound(t *testing.T) {
	t.Parallel()

	ops := &fakeBookingOperations{
		getByIDFn: func(context.Context, string) (*domain.Booking, error) {
			return nil, fmt.Errorf("%w: booking", domain.ErrNotFound)
		},
	}
	app := newTestApp(t, ops)

	req := httptest.NewRequest("GET", "/v1/bookings/missing", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCheckAvailabilityReportsReason(t *testing.T) {
	t.Parallel()

	ops := &fakeBookingOperations{
		checkAvailabilityFn: func(_ context.Context, serviceID string, _ time.Time, _ domain.TimeOfDay) (*service.AvailabilityResult, error) {
			if serviceID != "svc-1" {
				return nil, fmt.Errorf("%w: service", domain.ErrNotFound)
			}
			return &service.AvailabilityResult{Available: false, Reason: service.ReasonSlotTaken}, nil
		},
	}
	app := newTestApp(t, ops)

	req := httptest.NewRequest("GET", "/v1/availability?serviceId=svc-1&date=2026-03-02&time=14:30", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Available {
		t.Fatal("available = true, want false")
	}
	if got.Reason != string(service.ReasonSlotTaken) {
		t.Fatalf("reason = %q, want %q", got.Reason, service.ReasonSlotTaken)
	}
}

func TestCancelBookingReportsLateCancellation(t *testing.T) {
	t.Parallel()

	ops := &fakeBookingOperations{
		cancelFn: func(_ context.Context, _ string, reason *string, _ domain.ClientContact) (*service.CancelResult, error) {
			booking := sampleBooking(domain.BookingCancelled)
			booking.CancellationReason = reason
			return &service.CancelResult{
				Booking:          booking,
				LateCancellation: true,
				HoursUntilSlot:   3.5,
			}, nil
		},
	}
	app := newTestApp(t, ops)

	body := []byte(`{"reason":"client request","contact":{"recipient":"a@b.c","preferredChannel":"email"}}`)
	req := httptest.NewRequest("POST", "/v1/bookings/abc/cancel", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got cancelBookingResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.LateCancellation {
		t.Fatal("lateCancellation = false, want true")
	}
	if got.Booking.Status != string(domain.BookingCancelled) {
		t.Fatalf("booking status = %q, want CANCELLED", got.Booking.Status)
	}
}

func TestListBookingsRejectsBadPageSize(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, &fakeBookingOperations{})

	req := httptest.NewRequest("GET", "/v1/bookings?pageSize=5000", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
