package repository

import (
	"strings"
	"time"

	"github.com/kursadbilgin/booking-engine/internal/domain"
)

// ServiceModel is the persistence model for the services table. Weekdays and
// time slots are flattened to comma-separated columns.
type ServiceModel struct {
	ID                      string `gorm:"type:uuid;primaryKey"`
	Name                    string `gorm:"type:varchar(255);not null"`
	Active                  bool   `gorm:"not null;default:true"`
	DurationMinutes         int    `gorm:"not null"`
	AvailableWeekdays       string `gorm:"type:varchar(128);not null"`
	AvailableTimeSlots      string `gorm:"type:text;not null"`
	MaxDailyBookings        *int
	CancellationPolicyHours int  `gorm:"not null;default:24"`
	RequiresDeposit         bool `gorm:"not null;default:false"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (ServiceModel) TableName() string {
	return "services"
}

// BookingModel is the persistence model for the bookings table. Date is a
// calendar date and time a "HH:MM" slot; a partial unique index over
// (service_id, date, time) on active statuses is the double-booking guard.
type BookingModel struct {
	ID                 string               `gorm:"type:uuid;primaryKey"`
	ClientID           string               `gorm:"type:uuid;not null;index"`
	ServiceID          string               `gorm:"type:uuid;not null"`
	Date               time.Time            `gorm:"type:date;not null"`
	Time               string               `gorm:"type:varchar(5);not null"`
	Status             domain.BookingStatus `gorm:"type:varchar(20);not null"`
	Notes              *string              `gorm:"type:text"`
	CancellationReason *string              `gorm:"type:text"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
	RescheduledAt      *time.Time
}

func (BookingModel) TableName() string {
	return "bookings"
}

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID           string                    `gorm:"type:uuid;primaryKey"`
	BookingID    *string                   `gorm:"type:uuid;index"`
	ClientID     string                    `gorm:"type:uuid;not null"`
	Type         domain.NotificationType   `gorm:"type:varchar(20);not null"`
	Channel      domain.Channel            `gorm:"type:varchar(10);not null"`
	Priority     domain.Priority           `gorm:"type:varchar(10);not null"`
	Recipient    string                    `gorm:"type:varchar(255);not null"`
	Content      string                    `gorm:"type:text;not null"`
	Status       domain.NotificationStatus `gorm:"type:varchar(20);not null"`
	ScheduledFor time.Time                 `gorm:"not null"`
	SentAt       *time.Time
	RetryCount   int     `gorm:"not null;default:0"`
	LastError    *string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	NotificationID string  `gorm:"type:uuid;not null"`
	AttemptNumber  int     `gorm:"not null"`
	StatusCode     *int    `gorm:"type:int"`
	ResponseBody   *string `gorm:"type:text"`
	Error          *string `gorm:"type:text"`
	CreatedAt      time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func serviceModelFromDomain(s *domain.Service) *ServiceModel {
	if s == nil {
		return nil
	}

	weekdays := make([]string, 0, len(s.AvailableWeekdays))
	for _, d := range s.AvailableWeekdays {
		weekdays = append(weekdays, strings.ToUpper(d.String()))
	}
	slots := make([]string, 0, len(s.AvailableTimeSlots))
	for _, t := range s.AvailableTimeSlots {
		slots = append(slots, t.String())
	}

	return &ServiceModel{
		ID:                      s.ID,
		Name:                    s.Name,
		Active:                  s.Active,
		DurationMinutes:         s.DurationMinutes,
		AvailableWeekdays:       strings.Join(weekdays, ","),
		AvailableTimeSlots:      strings.Join(slots, ","),
		MaxDailyBookings:        s.MaxDailyBookings,
		CancellationPolicyHours: s.CancellationPolicyHours,
		RequiresDeposit:         s.RequiresDeposit,
		CreatedAt:               s.CreatedAt,
		UpdatedAt:               s.UpdatedAt,
	}
}

func serviceModelToDomain(m *ServiceModel) (*domain.Service, error) {
	if m == nil {
		return nil, nil
	}

	var weekdays []time.Weekday
	for _, part := range strings.Split(m.AvailableWeekdays, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		day, err := domain.ParseWeekday(part)
		if err != nil {
			return nil, err
		}
		weekdays = append(weekdays, day)
	}

	var slots []domain.TimeOfDay
	for _, part := range strings.Split(m.AvailableTimeSlots, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		slot, err := domain.ParseTimeOfDay(part)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	return &domain.Service{
		ID:                      m.ID,
		Name:                    m.Name,
		Active:                  m.Active,
		DurationMinutes:         m.DurationMinutes,
		AvailableWeekdays:       weekdays,
		AvailableTimeSlots:      slots,
		MaxDailyBookings:        m.MaxDailyBookings,
		CancellationPolicyHours: m.CancellationPolicyHours,
		RequiresDeposit:         m.RequiresDeposit,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}, nil
}

func bookingModelFromDomain(b *domain.Booking) *BookingModel {
	if b == nil {
		return nil
	}

	return &BookingModel{
		ID:                 b.ID,
		ClientID:           b.ClientID,
		ServiceID:          b.ServiceID,
		Date:               b.Date,
		Time:               b.Time.String(),
		Status:             b.Status,
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

func bookingModelToDomain(m *BookingModel) *domain.Booking {
	if m == nil {
		return nil
	}

	return &domain.Booking{
		ID:                 m.ID,
		ClientID:           m.ClientID,
		ServiceID:          m.ServiceID,
		Date:               m.Date,
		Time:               domain.TimeOfDay(m.Time),
		Status:             m.Status,
		Notes:              m.Notes,
		CancellationReason: m.CancellationReason,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
		ConfirmedAt:        m.ConfirmedAt,
		CancelledAt:        m.CancelledAt,
		CompletedAt:        m.CompletedAt,
		RescheduledAt:      m.RescheduledAt,
	}
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:           n.ID,
		BookingID:    n.BookingID,
		ClientID:     n.ClientID,
		Type:         n.Type,
		Channel:      n.Channel,
		Priority:     n.Priority,
		Recipient:    n.Recipient,
		Content:      n.Content,
		Status:       n.Status,
		ScheduledFor: n.ScheduledFor,
		SentAt:       n.SentAt,
		RetryCount:   n.RetryCount,
		LastError:    n.LastError,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:           m.ID,
		BookingID:    m.BookingID,
		ClientID:     m.ClientID,
		Type:         m.Type,
		Channel:      m.Channel,
		Priority:     m.Priority,
		Recipient:    m.Recipient,
		Content:      m.Content,
		Status:       m.Status,
		ScheduledFor: m.ScheduledFor,
		SentAt:       m.SentAt,
		RetryCount:   m.RetryCount,
		LastError:    m.LastError,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		AttemptNumber:  a.AttemptNumber,
		StatusCode:     a.StatusCode,
		ResponseBody:   a.ResponseBody,
		Error:          a.Error,
		CreatedAt:      a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		AttemptNumber:  m.AttemptNumber,
		StatusCode:     m.StatusCode,
		ResponseBody:   m.ResponseBody,
		Error:          m.Error,
		CreatedAt:      m.CreatedAt,
	}
}
