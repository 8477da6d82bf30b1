package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/kursadbilgin/booking-engine/internal/repository"
)

func createBookingsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_bookings",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BookingModel{}); err != nil {
				return err
			}
			indexes := []string{
				// Backstop against double booking: at most one active booking per exact slot.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_slot ON bookings (service_id, date, time) WHERE status IN ('PENDING', 'CONFIRMED')`,
				`CREATE INDEX IF NOT EXISTS idx_bookings_service_date ON bookings (service_id, date)`,
				`CREATE INDEX IF NOT EXISTS idx_bookings_client_id ON bookings (client_id)`,
				`CREATE INDEX IF NOT EXISTS idx_bookings_status_created ON bookings (status, created_at)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BookingModel{})
		},
	}
}
