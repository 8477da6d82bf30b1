package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/booking-engine/internal/domain"
	"gorm.io/gorm"
)

type ServiceRepository interface {
	Create(ctx context.Context, s *domain.Service) error
	Update(ctx context.Context, s *domain.Service) error
	GetByID(ctx context.Context, id string) (*domain.Service, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Service, error)
}

type GormServiceRepo struct {
	db *gorm.DB
}

func NewGormServiceRepo(db *gorm.DB) *GormServiceRepo {
	return &GormServiceRepo{db: db}
}

func (r *GormServiceRepo) Create(ctx context.Context, s *domain.Service) error {
	model := serviceModelFromDomain(s)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if s != nil {
		restored, err := serviceModelToDomain(model)
		if err != nil {
			return err
		}
		*s = *restored
	}
	return nil
}

func (r *GormServiceRepo) Update(ctx context.Context, s *domain.Service) error {
	model := serviceModelFromDomain(s)
	result := r.db.WithContext(ctx).
		Model(&ServiceModel{}).
		Where("id = ?", model.ID).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormServiceRepo) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	var model ServiceModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return serviceModelToDomain(&model)
}

func (r *GormServiceRepo) List(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	query := r.db.WithContext(ctx).Model(&ServiceModel{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var models []ServiceModel
	if err := query.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	services := make([]domain.Service, 0, len(models))
	for i := range models {
		s, err := serviceModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		services = append(services, *s)
	}

	return services, nil
}
