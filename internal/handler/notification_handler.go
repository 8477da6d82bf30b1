package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/booking-engine/internal/domain"
	"github.com/kursadbilgin/booking-engine/internal/repository"
)

// NotificationStore is the read/cancel surface exposed for operational
// inspection of the outbound queue.
type NotificationStore interface {
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params repository.NotificationListParams) ([]domain.Notification, int64, error)
	Cancel(ctx context.Context, id string) error
}

type NotificationHandler struct {
	store NotificationStore
}

func NewNotificationHandler(store NotificationStore) (*NotificationHandler, error) {
	if store == nil {
		return nil, fmt.Errorf("notification store is required")
	}
	return &NotificationHandler{store: store}, nil
}

func RegisterNotificationRoutes(router fiber.Router, store NotificationStore) error {
	h, err := NewNotificationHandler(store)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Get("/notifications", h.ListNotifications)
	v1.Post("/notifications/:id/cancel", h.CancelNotification)

	return nil
}

type notificationResponse struct {
	ID           string     `json:"id"`
	BookingID    *string    `json:"bookingId,omitempty"`
	ClientID     string     `json:"clientId"`
	Type         string     `json:"type"`
	Channel      string     `json:"channel"`
	Priority     string     `json:"priority"`
	Recipient    string     `json:"recipient"`
	Content      string     `json:"content"`
	Status       string     `json:"status"`
	ScheduledFor time.Time  `json:"scheduledFor"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	RetryCount   int        `json:"retryCount"`
	LastError    *string    `json:"lastError,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.store.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseNotificationListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.store.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		data = append(data, toNotificationResponse(&notifications[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *NotificationHandler) CancelNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.store.Cancel(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notificationId": id,
		"status":         string(domain.NotificationCancelled),
	})
}

func parseNotificationListParams(c *fiber.Ctx) (repository.NotificationListParams, error) {
	params := repository.NotificationListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.NotificationListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.NotificationListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if bookingID := strings.TrimSpace(c.Query("bookingId")); bookingID != "" {
		params.BookingID = &bookingID
	}
	if clientID := strings.TrimSpace(c.Query("clientId")); clientID != "" {
		params.ClientID = &clientID
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseNotificationStatusFromString(rawStatus)
		if err != nil {
			return repository.NotificationListParams{}, err
		}
		params.Status = &status
	}

	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		channel, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.NotificationListParams{}, err
		}
		params.Channel = &channel
	}

	if rawType := strings.TrimSpace(c.Query("type")); rawType != "" {
		notificationType, err := domain.ParseNotificationTypeFromString(rawType)
		if err != nil {
			return repository.NotificationListParams{}, err
		}
		params.Type = &notificationType
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.NotificationListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.NotificationListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:           n.ID,
		BookingID:    n.BookingID,
		ClientID:     n.ClientID,
		Type:         string(n.Type),
		Channel:      string(n.Channel),
		Priority:     string(n.Priority),
		Recipient:    n.Recipient,
		Content:      n.Content,
		Status:       string(n.Status),
		ScheduledFor: n.ScheduledFor,
		SentAt:       n.SentAt,
		RetryCount:   n.RetryCount,
		LastError:    n.LastError,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}
}
