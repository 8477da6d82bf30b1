package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/booking-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingListParams struct {
	ClientID  *string
	ServiceID *string
	Status    *domain.BookingStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

type BookingRepository interface {
	// CreateIfSlotFree inserts the booking only when the slot is still open:
	// no active booking at the same (service, date, time) and, when maxDaily is
	// set, fewer than maxDaily active bookings on that day. Returns
	// domain.ErrSlotUnavailable otherwise.
	CreateIfSlotFree(ctx context.Context, b *domain.Booking, maxDaily *int) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	CountActive(ctx context.Context, serviceID string, date time.Time, excludeID string) (int64, error)
	FindConflicting(ctx context.Context, serviceID string, date time.Time, slot domain.TimeOfDay, excludeID string) (*domain.Booking, error)
	Confirm(ctx context.Context, id string, at time.Time) error
	// MoveToSlotIfFree updates the booking's slot under the same guard as
	// CreateIfSlotFree, excluding the booking itself from the conflict scan.
	MoveToSlotIfFree(ctx context.Context, id string, date time.Time, slot domain.TimeOfDay, maxDaily *int, at time.Time) error
	Cancel(ctx context.Context, id string, reason *string, at time.Time) error
	Complete(ctx context.Context, id string, notes *string, at time.Time) error
	HardDelete(ctx context.Context, id string) error
	List(ctx context.Context, params BookingListParams) ([]domain.Booking, int64, error)
}

type GormBookingRepo struct {
	db *gorm.DB
}

func NewGormBookingRepo(db *gorm.DB) *GormBookingRepo {
	return &GormBookingRepo{db: db}
}

// guardSlot locks the day's active bookings and verifies cap and exact-slot
// conflict inside the caller's transaction. The row locks serialize concurrent
// writers for the same service day; the partial unique index on
// (service_id, date, time) is the backstop for anything that slips through.
func guardSlot(tx *gorm.DB, serviceID string, date time.Time, slot string, excludeID string, maxDaily *int) error {
	query := tx.Model(&BookingModel{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("service_id = ? AND date = ? AND status IN ?", serviceID, date, domain.ActiveBookingStatuses())
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var sameDay []BookingModel
	if err := query.Find(&sameDay).Error; err != nil {
		return err
	}

	if maxDaily != nil && len(sameDay) >= *maxDaily {
		return domain.ErrSlotUnavailable
	}
	for i := range sameDay {
		if sameDay[i].Time == slot {
			return domain.ErrSlotUnavailable
		}
	}
	return nil
}

func (r *GormBookingRepo) CreateIfSlotFree(ctx context.Context, b *domain.Booking, maxDaily *int) error {
	model := bookingModelFromDomain(b)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := guardSlot(tx, model.ServiceID, model.Date, model.Time, "", maxDaily); err != nil {
			return err
		}
		return tx.Create(model).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrSlotUnavailable
	}
	if err != nil {
		return err
	}

	if b != nil {
		*b = *bookingModelToDomain(model)
	}
	return nil
}

func (r *GormBookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var model BookingModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bookingModelToDomain(&model), nil
}

func (r *GormBookingRepo) CountActive(ctx context.Context, serviceID string, date time.Time, excludeID string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("service_id = ? AND date = ? AND status IN ?", serviceID, date, domain.ActiveBookingStatuses())
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormBookingRepo) FindConflicting(ctx context.Context, serviceID string, date time.Time, slot domain.TimeOfDay, excludeID string) (*domain.Booking, error) {
	query := r.db.WithContext(ctx).
		Where("service_id = ? AND date = ? AND time = ? AND status IN ?",
			serviceID, date, slot.String(), domain.ActiveBookingStatuses())
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var model BookingModel
	err := query.First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bookingModelToDomain(&model), nil
}

func (r *GormBookingRepo) Confirm(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND status = ?", id, domain.BookingPending).
		Updates(map[string]any{
			"status":       domain.BookingConfirmed,
			"confirmed_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormBookingRepo) MoveToSlotIfFree(ctx context.Context, id string, date time.Time, slot domain.TimeOfDay, maxDaily *int, at time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current BookingModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if !current.Status.IsActive() {
			return domain.ErrConflict
		}

		if err := guardSlot(tx, current.ServiceID, date, slot.String(), id, maxDaily); err != nil {
			return err
		}

		return tx.Model(&BookingModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"date":           date,
				"time":           slot.String(),
				"rescheduled_at": at,
			}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrSlotUnavailable
	}
	return err
}

func (r *GormBookingRepo) Cancel(ctx context.Context, id string, reason *string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND status IN ?", id, domain.ActiveBookingStatuses()).
		Updates(map[string]any{
			"status":              domain.BookingCancelled,
			"cancellation_reason": reason,
			"cancelled_at":        at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormBookingRepo) Complete(ctx context.Context, id string, notes *string, at time.Time) error {
	updates := map[string]any{
		"status":       domain.BookingCompleted,
		"completed_at": at,
	}
	if notes != nil {
		updates["notes"] = notes
	}

	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND status IN ?", id, domain.ActiveBookingStatuses()).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// HardDelete removes the row entirely. Administrative purge only; regular
// flows cancel instead.
func (r *GormBookingRepo) HardDelete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&BookingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormBookingRepo) List(ctx context.Context, params BookingListParams) ([]domain.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{})

	if params.ClientID != nil {
		query = query.Where("client_id = ?", *params.ClientID)
	}
	if params.ServiceID != nil {
		query = query.Where("service_id = ?", *params.ServiceID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.DateFrom != nil {
		query = query.Where("date >= ?", *params.DateFrom)
	}
	if params.DateTo != nil {
		query = query.Where("date <= ?", *params.DateTo)
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

	var models []BookingModel
	err := query.
		Order("date ASC, time ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	bookings := make([]domain.Booking, 0, len(models))
	for i := range models {
		bookings = append(bookings, *bookingModelToDomain(&models[i]))
	}

	return bookings, total, nil
}
