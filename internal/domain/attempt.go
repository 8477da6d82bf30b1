package domain

import "time"

// DeliveryAttempt records a single notifier call for a notification.
type DeliveryAttempt struct {
	ID             string
	NotificationID string
	AttemptNumber  int
	StatusCode     *int
	ResponseBody   *string
	Error          *string
	CreatedAt      time.Time
}
