package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// Migrate creates or updates the reminder tables and the collaborator read models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Assessment{},
		&models.Student{},
		&models.Enrollment{},
		&models.Submission{},
		&models.ReminderPolicy{},
		&models.ScheduledReminder{},
		&models.Notification{},
		&models.DeliveryJob{},
		&models.AuditEntry{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
