package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotificationStatus represents the delivery state of a notification.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	// NotificationSending is the claim state a retry cycle moves a due
	// notification into before invoking the notifier, so overlapping cycles
	// never double-send.
	NotificationSending   NotificationStatus = "SENDING"
	NotificationSent      NotificationStatus = "SENT"
	NotificationDelivered NotificationStatus = "DELIVERED"
	NotificationRead      NotificationStatus = "READ"
	NotificationFailed    NotificationStatus = "FAILED"
	NotificationCancelled NotificationStatus = "CANCELLED"
)

func (s NotificationStatus) String() string { return string(s) }

func (s NotificationStatus) IsValid() bool {
	switch s {
	case NotificationPending, NotificationSending, NotificationSent,
		NotificationDelivered, NotificationRead, NotificationFailed, NotificationCancelled:
		return true
	}
	return false
}

func ParseNotificationStatusFromString(s string) (NotificationStatus, error) {
	st := NotificationStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid notification status %q", ErrValidation, s)
	}
	return st, nil
}

// NotificationType classifies what lifecycle moment a notification announces.
type NotificationType string

const (
	TypeConfirmation NotificationType = "CONFIRMATION"
	TypeReminder     NotificationType = "REMINDER"
	TypeCancellation NotificationType = "CANCELLATION"
	TypeReschedule   NotificationType = "RESCHEDULE"
)

func (t NotificationType) String() string { return string(t) }

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeConfirmation, TypeReminder, TypeCancellation, TypeReschedule:
		return true
	}
	return false
}

func ParseNotificationTypeFromString(s string) (NotificationType, error) {
	t := NotificationType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid notification type %q", ErrValidation, s)
	}
	return t, nil
}

// Channel represents the delivery channel.
type Channel string

const (
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelEmail    Channel = "EMAIL"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelWhatsApp, ChannelEmail:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Channels returns all delivery channels.
func Channels() []Channel {
	return []Channel{ChannelSMS, ChannelWhatsApp, ChannelEmail}
}

// Priority represents the message priority level.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityNormal   Priority = "NORMAL"
	PriorityLow      Priority = "LOW"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities for dispatch, lower is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// PriorityForType derives the dispatch priority from the notification type.
// Cancellations jump the queue, reminders and reschedules are time sensitive,
// confirmations are routine.
func PriorityForType(t NotificationType) Priority {
	switch t {
	case TypeCancellation:
		return PriorityCritical
	case TypeReminder, TypeReschedule:
		return PriorityHigh
	case TypeConfirmation:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// Notification is a scheduled message tied to a booking lifecycle moment.
type Notification struct {
	ID           string
	BookingID    *string
	ClientID     string
	Type         NotificationType
	Channel      Channel
	Priority     Priority
	Recipient    string
	Content      string
	Status       NotificationStatus
	ScheduledFor time.Time
	SentAt       *time.Time
	RetryCount   int
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.ClientID) == "" {
		return fmt.Errorf("%w: client id is required", ErrValidation)
	}
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(n.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("%w: invalid notification type %q", ErrValidation, n.Type)
	}
	if !n.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, n.Channel)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, n.Priority)
	}
	if n.ScheduledFor.IsZero() {
		return fmt.Errorf("%w: scheduled time is required", ErrValidation)
	}
	if n.RetryCount < 0 {
		return fmt.Errorf("%w: retry count cannot be negative", ErrValidation)
	}
	return nil
}

// RetryPolicy bounds delivery retries for one channel.
type RetryPolicy struct {
	MaxRetries    int
	DelaySchedule []time.Duration
}

// DelayFor returns the wait before the next attempt given the current retry
// count. The last schedule entry is reused when the schedule is exhausted.
func (p RetryPolicy) DelayFor(retryCount int) time.Duration {
	if len(p.DelaySchedule) == 0 {
		return 0
	}
	idx := retryCount
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.DelaySchedule) {
		idx = len(p.DelaySchedule) - 1
	}
	return p.DelaySchedule[idx]
}

// DefaultRetryPolicies returns the per-channel retry budgets used when config
// does not override them.
func DefaultRetryPolicies() map[Channel]RetryPolicy {
	return map[Channel]RetryPolicy{
		ChannelSMS: {
			MaxRetries:    3,
			DelaySchedule: []time.Duration{5 * time.Minute, 15 * time.Minute, time.Hour},
		},
		ChannelWhatsApp: {
			MaxRetries:    3,
			DelaySchedule: []time.Duration{5 * time.Minute, 15 * time.Minute, time.Hour},
		},
		ChannelEmail: {
			MaxRetries:    5,
			DelaySchedule: []time.Duration{time.Minute, 5 * time.Minute, 30 * time.Minute},
		},
	}
}
