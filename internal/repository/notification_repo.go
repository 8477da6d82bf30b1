package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/booking-engine/internal/domain"
	"gorm.io/gorm"
)

type NotificationListParams struct {
	BookingID *string
	ClientID  *string
	Status    *domain.NotificationStatus
	Channel   *domain.Channel
	Type      *domain.NotificationType
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// priorityOrder sorts CRITICAL before HIGH before NORMAL before LOW.
const priorityOrder = `CASE priority
	WHEN 'CRITICAL' THEN 0
	WHEN 'HIGH' THEN 1
	WHEN 'NORMAL' THEN 2
	ELSE 3
END, scheduled_for ASC`

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	CreateBatch(ctx context.Context, notifications []*domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params NotificationListParams) ([]domain.Notification, int64, error)
	// FindDue returns pending notifications with scheduled_for <= now, most
	// urgent first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	// ClaimForSending conditionally moves a pending notification to SENDING
	// and returns it. A nil result without error means another cycle claimed
	// it first or it reached a terminal state.
	ClaimForSending(ctx context.Context, id string) (*domain.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	// RescheduleForRetry returns a claimed notification to PENDING with a new
	// due time and an incremented retry count.
	RescheduleForRetry(ctx context.Context, id string, scheduledFor time.Time, lastError string) error
	// ReleaseClaim returns a claimed notification to PENDING without touching
	// its retry count, for claims abandoned before the notifier was invoked.
	ReleaseClaim(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	// CancelPendingForBooking cancels every still-pending notification of the
	// given types owned by a booking, or all pending ones when types is empty.
	CancelPendingForBooking(ctx context.Context, bookingID string, types []domain.NotificationType) (int64, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) CreateBatch(ctx context.Context, notifications []*domain.Notification) error {
	models := make([]NotificationModel, 0, len(notifications))
	modelIndexes := make([]int, 0, len(notifications))
	for i, n := range notifications {
		model := notificationModelFromDomain(n)
		if model != nil {
			models = append(models, *model)
			modelIndexes = append(modelIndexes, i)
		}
	}

	if len(models) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).CreateInBatches(&models, 100).Error; err != nil {
		return err
	}

	for i := range models {
		idx := modelIndexes[i]
		if idx < len(notifications) && notifications[idx] != nil {
			*notifications[idx] = *notificationModelToDomain(&models[i])
		}
	}

	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params NotificationListParams) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.BookingID != nil {
		query = query.Where("booking_id = ?", *params.BookingID)
	}
	if params.ClientID != nil {
		query = query.Where("client_id = ?", *params.ClientID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.From != nil {
		query = query.Where("scheduled_for >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("scheduled_for <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationModel
	err := query.
		Order("scheduled_for DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, total, nil
}

func (r *GormNotificationRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", domain.NotificationPending, now).
		Order(priorityOrder).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, nil
}

func (r *GormNotificationRepo) ClaimForSending(ctx context.Context, id string) (*domain.Notification, error) {
	// A single conditional UPDATE is the claim: only one of any number of
	// concurrent cycles can flip the row out of PENDING.
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.NotificationPending).
		Update("status", domain.NotificationSending)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		var model NotificationModel
		err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		// The row was claimed, cancelled, or finished elsewhere.
		return nil, nil
	}

	var model NotificationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  domain.NotificationSent,
			"sent_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.NotificationFailed,
			"last_error": lastError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) RescheduleForRetry(ctx context.Context, id string, scheduledFor time.Time, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.NotificationPending,
			"scheduled_for": scheduledFor,
			"last_error":    lastError,
			"retry_count":   gorm.Expr("retry_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) ReleaseClaim(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.NotificationSending).
		Update("status", domain.NotificationPending)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationRepo) Cancel(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.NotificationPending).
		Update("status", domain.NotificationCancelled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationRepo) CancelPendingForBooking(ctx context.Context, bookingID string, types []domain.NotificationType) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("booking_id = ? AND status = ?", bookingID, domain.NotificationPending)
	if len(types) > 0 {
		query = query.Where("type IN ?", types)
	}

	result := query.Update("status", domain.NotificationCancelled)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
