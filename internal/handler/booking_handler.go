package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/booking-engine/internal/domain"
	"github.com/kursadbilgin/booking-engine/internal/repository"
	"github.com/kursadbilgin/booking-engine/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100

	dateLayout = "2006-01-02"
)

type BookingOperations interface {
	CheckAvailability(ctx context.Context, serviceID string, date time.Time, slot domain.TimeOfDay) (*service.AvailabilityResult, error)
	Create(ctx context.Context, req service.CreateBookingRequest) (*domain.Booking, error)
	Confirm(ctx context.Context, bookingID string) (*domain.Booking, error)
	Reschedule(ctx context.Context, req service.RescheduleBookingRequest) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID string, reason *string, contact domain.ClientContact) (*service.CancelResult, error)
	Complete(ctx context.Context, bookingID string, notes *string) (*domain.Booking, error)
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	List(ctx context.Context, params repository.BookingListParams) ([]domain.Booking, int64, error)
}

type BookingHandler struct {
	service BookingOperations
}

func NewBookingHandler(service BookingOperations) (*BookingHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("booking service is required")
	}
	return &BookingHandler{service: service}, nil
}

func RegisterBookingRoutes(router fiber.Router, service BookingOperations) error {
	h, err := NewBookingHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/availability", h.CheckAvailability)
	v1.Post("/bookings", h.CreateBooking)
	v1.Get("/bookings/:id", h.GetBooking)
	v1.Get("/bookings", h.ListBookings)
	v1.Post("/bookings/:id/confirm", h.ConfirmBooking)
	v1.Post("/bookings/:id/reschedule", h.RescheduleBooking)
	v1.Post("/bookings/:id/cancel", h.CancelBooking)
	v1.Post("/bookings/:id/complete", h.CompleteBooking)

	return nil
}

type contactRequest struct {
	Recipient        string `json:"recipient"`
	PreferredChannel string `json:"preferredChannel"`
}

type createBookingRequest struct {
	ClientID  string          `json:"clientId"`
	ServiceID string          `json:"serviceId"`
	Date      string          `json:"date"`
	Time      string          `json:"time"`
	Notes     *string         `json:"notes,omitempty"`
	Contact   *contactRequest `json:"contact,omitempty"`
}

type rescheduleBookingRequest struct {
	Date    string          `json:"date"`
	Time    string          `json:"time"`
	Reason  *string         `json:"reason,omitempty"`
	Contact *contactRequest `json:"contact,omitempty"`
}

type cancelBookingRequest struct {
	Reason  *string         `json:"reason,omitempty"`
	Contact *contactRequest `json:"contact,omitempty"`
}

type completeBookingRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type bookingResponse struct {
	ID                 string     `json:"id"`
	ClientID           string     `json:"clientId"`
	ServiceID          string     `json:"serviceId"`
	Date               string     `json:"date"`
	Time               string     `json:"time"`
	Status             string     `json:"status"`
	Notes              *string    `json:"notes,omitempty"`
	CancellationReason *string    `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	ConfirmedAt        *time.Time `json:"confirmedAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	RescheduledAt      *time.Time `json:"rescheduledAt,omitempty"`
}

type cancelBookingResponse struct {
	Booking          bookingResponse `json:"booking"`
	LateCancellation bool            `json:"lateCancellation"`
	HoursUntilSlot   float64         `json:"hoursUntilSlot"`
}

type availabilityResponse struct {
	ServiceID string `json:"serviceId"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type listBookingsResponse struct {
	Data []bookingResponse `json:"data"`
	Meta listMeta          `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *BookingHandler) CheckAvailability(c *fiber.Ctx) error {
	serviceID := strings.TrimSpace(c.Query("serviceId"))
	if serviceID == "" {
		return toHTTPError(fmt.Errorf("%w: serviceId is required", domain.ErrValidation))
	}

	date, err := parseDateQuery(c.Query("date"))
	if err != nil {
		return toHTTPError(err)
	}

	slot, err := domain.ParseTimeOfDay(c.Query("time"))
	if err != nil {
		return toHTTPError(err)
	}

	result, err := h.service.CheckAvailability(c.Context(), serviceID, date, slot)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(availabilityResponse{
		ServiceID: serviceID,
		Date:      date.Format(dateLayout),
		Time:      string(slot),
		Available: result.Available,
		Reason:    string(result.Reason),
	})
}

func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	var req createBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	date, err := parseDateQuery(req.Date)
	if err != nil {
		return toHTTPError(err)
	}
	slot, err := domain.ParseTimeOfDay(req.Time)
	if err != nil {
		return toHTTPError(err)
	}
	contact, err := contactFromRequest(req.Contact)
	if err != nil {
		return toHTTPError(err)
	}

	booking, err := h.service.Create(c.Context(), service.CreateBookingRequest{
		ClientID:  strings.TrimSpace(req.ClientID),
		ServiceID: strings.TrimSpace(req.ServiceID),
		Date:      date,
		Time:      slot,
		Contact:   contact,
		Notes:     req.Notes,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toBookingResponse(booking))
}

func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	booking, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBookingResponse(booking))
}

func (h *BookingHandler) ListBookings(c *fiber.Ctx) error {
	params, err := parseBookingListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	bookings, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		data = append(data, toBookingResponse(&bookings[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listBookingsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *BookingHandler) ConfirmBooking(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	booking, err := h.service.Confirm(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBookingResponse(booking))
}

func (h *BookingHandler) RescheduleBooking(c *fiber.Ctx) error {
	var req rescheduleBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	date, err := parseDateQuery(req.Date)
	if err != nil {
		return toHTTPError(err)
	}
	slot, err := domain.ParseTimeOfDay(req.Time)
	if err != nil {
		return toHTTPError(err)
	}
	contact, err := contactFromRequest(req.Contact)
	if err != nil {
		return toHTTPError(err)
	}

	booking, err := h.service.Reschedule(c.Context(), service.RescheduleBookingRequest{
		BookingID: strings.TrimSpace(c.Params("id")),
		Date:      date,
		Time:      slot,
		Contact:   contact,
		Reason:    req.Reason,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBookingResponse(booking))
}

func (h *BookingHandler) CancelBooking(c *fiber.Ctx) error {
	var req cancelBookingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	contact, err := contactFromRequest(req.Contact)
	if err != nil {
		return toHTTPError(err)
	}

	result, err := h.service.Cancel(c.Context(), strings.TrimSpace(c.Params("id")), req.Reason, contact)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(cancelBookingResponse{
		Booking:          toBookingResponse(result.Booking),
		LateCancellation: result.LateCancellation,
		HoursUntilSlot:   result.HoursUntilSlot,
	})
}

func (h *BookingHandler) CompleteBooking(c *fiber.Ctx) error {
	var req completeBookingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	booking, err := h.service.Complete(c.Context(), strings.TrimSpace(c.Params("id")), req.Notes)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBookingResponse(booking))
}

func parseBookingListParams(c *fiber.Ctx) (repository.BookingListParams, error) {
	params := repository.BookingListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.BookingListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.BookingListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if clientID := strings.TrimSpace(c.Query("clientId")); clientID != "" {
		params.ClientID = &clientID
	}
	if serviceID := strings.TrimSpace(c.Query("serviceId")); serviceID != "" {
		params.ServiceID = &serviceID
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseBookingStatusFromString(rawStatus)
		if err != nil {
			return repository.BookingListParams{}, err
		}
		params.Status = &status
	}

	if rawFrom := strings.TrimSpace(c.Query("from")); rawFrom != "" {
		from, err := parseDateQuery(rawFrom)
		if err != nil {
			return repository.BookingListParams{}, err
		}
		params.DateFrom = &from
	}
	if rawTo := strings.TrimSpace(c.Query("to")); rawTo != "" {
		to, err := parseDateQuery(rawTo)
		if err != nil {
			return repository.BookingListParams{}, err
		}
		params.DateTo = &to
	}

	return params, nil
}

func parseDateQuery(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", domain.ErrValidation)
	}

	date, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation)
	}
	return date, nil
}

func contactFromRequest(req *contactRequest) (domain.ClientContact, error) {
	if req == nil {
		return domain.ClientContact{}, nil
	}

	contact := domain.ClientContact{
		Recipient: strings.TrimSpace(req.Recipient),
	}

	if rawChannel := strings.TrimSpace(req.PreferredChannel); rawChannel != "" {
		channel, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return domain.ClientContact{}, err
		}
		contact.PreferredChannel = channel
	}

	return contact, nil
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	if b == nil {
		return bookingResponse{}
	}

	return bookingResponse{
		ID:                 b.ID,
		ClientID:           b.ClientID,
		ServiceID:          b.ServiceID,
		Date:               b.Date.Format(dateLayout),
		Time:               string(b.Time),
		Status:             string(b.Status),
		Notes:              b.Notes,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		CancelledAt:        b.CancelledAt,
		CompletedAt:        b.CompletedAt,
		RescheduledAt:      b.RescheduledAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSlotUnavailable):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
