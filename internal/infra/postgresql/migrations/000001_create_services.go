package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/kursadbilgin/booking-engine/internal/repository"
)

func createServicesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_services",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ServiceModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_services_active ON services (active)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ServiceModel{})
		},
	}
}
