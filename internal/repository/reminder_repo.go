package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// ReminderFilter narrows reminder history queries.
type ReminderFilter struct {
	StudentID    *uint
	AssessmentID *uint
	Status       models.ReminderStatus
	Page         int
	PageSize     int
}

// DispatchBundle is everything the dispatcher writes when it claims a reminder.
// Job is nil when the notification has no email leg.
type DispatchBundle struct {
	ReminderID   uint
	ClaimedAt    time.Time
	Notification *models.Notification
	Job          *models.DeliveryJob
	Audit        *models.AuditEntry
}

// ReminderRepository is the reminder store. Every status change is a conditional
// update keyed on the current status, so callers may overlap freely.
type ReminderRepository interface {
	CreatePending(ctx context.Context, reminder *models.ScheduledReminder, audit *models.AuditEntry) (bool, error)
	Cancel(ctx context.Context, id uint, reason string, audit *models.AuditEntry) (bool, error)
	ClaimAndDispatch(ctx context.Context, bundle DispatchBundle) (bool, error)
	RecordFailure(ctx context.Context, id uint, message string, maxFailures uint) (bool, error)
	GetByID(ctx context.Context, id uint) (models.ScheduledReminder, error)
	ListForAssessment(ctx context.Context, assessmentID uint, studentIDs []uint) ([]models.ScheduledReminder, error)
	ListPendingForAssessment(ctx context.Context, assessmentID uint) ([]models.ScheduledReminder, error)
	ListPendingForStudent(ctx context.Context, studentID uint, assessmentIDs []uint) ([]models.ScheduledReminder, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledReminder, error)
	List(ctx context.Context, filter ReminderFilter) ([]models.ScheduledReminder, int64, error)
}

type reminderRepository struct {
	db *gorm.DB
}

// NewReminderRepository constructs the reminder store.
func NewReminderRepository(db *gorm.DB) ReminderRepository {
	return &reminderRepository{db: db}
}

// CreatePending inserts a pending reminder and its audit entry. It returns false
// without error when the partial unique index already holds a pending row for the triple.
func (r *reminderRepository) CreatePending(ctx context.Context, reminder *models.ScheduledReminder, audit *models.AuditEntry) (bool, error) {
	created := false
	reminder.Status = models.ReminderStatusPending

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(reminder)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		created = true

		if audit == nil {
			return nil
		}
		audit.ReminderID = &reminder.ID
		return tx.Create(audit).Error
	})
	if err != nil {
		return false, err
	}

	return created, nil
}

// Cancel moves a pending reminder to cancelled. It returns false when the reminder
// was no longer pending.
func (r *reminderRepository) Cancel(ctx context.Context, id uint, reason string, audit *models.AuditEntry) (bool, error) {
	cancelled := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ScheduledReminder{}).
			Where("id = ? AND status = ?", id, models.ReminderStatusPending).
			Updates(map[string]interface{}{
				"status":        models.ReminderStatusCancelled,
				"cancel_reason": reason,
				"updated_at":    time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		cancelled = true

		if audit == nil {
			return nil
		}
		audit.ReminderID = &id
		return tx.Create(audit).Error
	})
	if err != nil {
		return false, err
	}

	return cancelled, nil
}

// ClaimAndDispatch flips a pending reminder to sent and writes the notification,
// optional delivery job and audit entry in one transaction. A submission that
// landed after the reminder was selected makes the claim miss.
func (r *reminderRepository) ClaimAndDispatch(ctx context.Context, bundle DispatchBundle) (bool, error) {
	claimed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ScheduledReminder{}).
			Where("id = ? AND status = ?", bundle.ReminderID, models.ReminderStatusPending).
			Where("NOT EXISTS (SELECT 1 FROM submissions WHERE submissions.assessment_id = scheduled_reminders.assessment_id AND submissions.student_id = scheduled_reminders.student_id)").
			Updates(map[string]interface{}{
				"status":     models.ReminderStatusSent,
				"sent_at":    bundle.ClaimedAt,
				"updated_at": bundle.ClaimedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		reminderID := bundle.ReminderID
		bundle.Notification.ReminderID = &reminderID
		if err := tx.Create(bundle.Notification).Error; err != nil {
			return err
		}

		if bundle.Job != nil {
			bundle.Job.NotificationID = &bundle.Notification.ID
			bundle.Job.ReminderID = &reminderID
			if err := tx.Create(bundle.Job).Error; err != nil {
				return err
			}
		}

		if bundle.Audit != nil {
			bundle.Audit.ReminderID = &reminderID
			if bundle.Audit.Details != nil {
				bundle.Audit.Details["notification_id"] = bundle.Notification.ID
				if bundle.Job != nil {
					bundle.Audit.Details["delivery_job_id"] = bundle.Job.ID
				}
			}
			if err := tx.Create(bundle.Audit).Error; err != nil {
				return err
			}
		}

		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return claimed, nil
}

// RecordFailure notes a rolled-back dispatch on a still pending reminder. Once the
// failure count reaches maxFailures (when non-zero) the reminder becomes failed and
// true is returned.
func (r *reminderRepository) RecordFailure(ctx context.Context, id uint, message string, maxFailures uint) (bool, error) {
	terminal := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ScheduledReminder{}).
			Where("id = ? AND status = ?", id, models.ReminderStatusPending).
			Updates(map[string]interface{}{
				"failures":   gorm.Expr("failures + 1"),
				"last_error": message,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if maxFailures > 0 {
			result = tx.Model(&models.ScheduledReminder{}).
				Where("id = ? AND status = ? AND failures >= ?", id, models.ReminderStatusPending, maxFailures).
				Updates(map[string]interface{}{
					"status":     models.ReminderStatusFailed,
					"updated_at": time.Now().UTC(),
				})
			if result.Error != nil {
				return result.Error
			}
			terminal = result.RowsAffected > 0
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return terminal, nil
}

func (r *reminderRepository) GetByID(ctx context.Context, id uint) (models.ScheduledReminder, error) {
	var reminder models.ScheduledReminder
	if err := r.db.WithContext(ctx).First(&reminder, id).Error; err != nil {
		return models.ScheduledReminder{}, err
	}
	return reminder, nil
}

// ListForAssessment returns pending, sent and failed reminders of an assessment,
// optionally restricted to a set of students.
func (r *reminderRepository) ListForAssessment(ctx context.Context, assessmentID uint, studentIDs []uint) ([]models.ScheduledReminder, error) {
	query := r.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Where("status IN ?", []models.ReminderStatus{models.ReminderStatusPending, models.ReminderStatusSent, models.ReminderStatusFailed})
	if studentIDs != nil {
		if len(studentIDs) == 0 {
			return []models.ScheduledReminder{}, nil
		}
		query = query.Where("student_id IN ?", studentIDs)
	}

	var reminders []models.ScheduledReminder
	if err := query.Order("id ASC").Find(&reminders).Error; err != nil {
		return nil, err
	}
	return reminders, nil
}

func (r *reminderRepository) ListPendingForAssessment(ctx context.Context, assessmentID uint) ([]models.ScheduledReminder, error) {
	var reminders []models.ScheduledReminder
	if err := r.db.WithContext(ctx).
		Where("assessment_id = ? AND status = ?", assessmentID, models.ReminderStatusPending).
		Order("id ASC").
		Find(&reminders).Error; err != nil {
		return nil, err
	}
	return reminders, nil
}

// ListPendingForStudent returns a student's pending reminders, optionally limited
// to a set of assessments.
func (r *reminderRepository) ListPendingForStudent(ctx context.Context, studentID uint, assessmentIDs []uint) ([]models.ScheduledReminder, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ? AND status = ?", studentID, models.ReminderStatusPending)
	if assessmentIDs != nil {
		if len(assessmentIDs) == 0 {
			return []models.ScheduledReminder{}, nil
		}
		query = query.Where("assessment_id IN ?", assessmentIDs)
	}

	var reminders []models.ScheduledReminder
	if err := query.Order("id ASC").Find(&reminders).Error; err != nil {
		return nil, err
	}
	return reminders, nil
}

func (r *reminderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.ScheduledReminder, error) {
	if limit <= 0 {
		limit = 100
	}

	var reminders []models.ScheduledReminder
	if err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", models.ReminderStatusPending, now).
		Order("scheduled_for ASC, id ASC").
		Limit(limit).
		Find(&reminders).Error; err != nil {
		return nil, err
	}
	return reminders, nil
}

func (r *reminderRepository) List(ctx context.Context, filter ReminderFilter) ([]models.ScheduledReminder, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ScheduledReminder{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.AssessmentID != nil {
		query = query.Where("assessment_id = ?", *filter.AssessmentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var reminders []models.ScheduledReminder
	if err := query.Order("scheduled_for DESC, id DESC").Find(&reminders).Error; err != nil {
		return nil, 0, err
	}

	return reminders, total, nil
}
