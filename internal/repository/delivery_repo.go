package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// DeliveryFilter narrows delivery queue listings.
type DeliveryFilter struct {
	Status   models.DeliveryStatus
	Page     int
	PageSize int
}

// DeliveryRepository is the outbound email queue. Transitions out of processing
// are fenced on the attempts value observed at claim time, so a worker whose
// claim was reclaimed by the stale sweep cannot overwrite the newer claim.
type DeliveryRepository interface {
	Enqueue(ctx context.Context, job *models.DeliveryJob) error
	ListReady(ctx context.Context, now time.Time, limit int) ([]models.DeliveryJob, error)
	ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]models.DeliveryJob, error)
	Claim(ctx context.Context, id uint, now time.Time) (models.DeliveryJob, bool, error)
	Complete(ctx context.Context, job models.DeliveryJob, now time.Time, audit *models.AuditEntry) (bool, error)
	Retry(ctx context.Context, job models.DeliveryJob, next time.Time, message string) (bool, error)
	Fail(ctx context.Context, job models.DeliveryJob, message string, audit *models.AuditEntry) (bool, error)
	GetByID(ctx context.Context, id uint) (models.DeliveryJob, error)
	List(ctx context.Context, filter DeliveryFilter) ([]models.DeliveryJob, int64, error)
}

type deliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository constructs the delivery queue repository.
func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

func (r *deliveryRepository) Enqueue(ctx context.Context, job *models.DeliveryJob) error {
	job.Status = models.DeliveryStatusPending
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *deliveryRepository) ListReady(ctx context.Context, now time.Time, limit int) ([]models.DeliveryJob, error) {
	if limit <= 0 {
		limit = 50
	}

	var jobs []models.DeliveryJob
	if err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", models.DeliveryStatusPending, now).
		Where("attempts < max_attempts").
		Order("scheduled_for ASC, id ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *deliveryRepository) ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]models.DeliveryJob, error) {
	if limit <= 0 {
		limit = 50
	}

	var jobs []models.DeliveryJob
	if err := r.db.WithContext(ctx).
		Where("status = ? AND claimed_at < ?", models.DeliveryStatusProcessing, claimedBefore).
		Order("claimed_at ASC, id ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Claim moves a pending job to processing and counts the attempt.
func (r *deliveryRepository) Claim(ctx context.Context, id uint, now time.Time) (models.DeliveryJob, bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryJob{}).
		Where("id = ? AND status = ? AND attempts < max_attempts", id, models.DeliveryStatusPending).
		Updates(map[string]interface{}{
			"status":     models.DeliveryStatusProcessing,
			"attempts":   gorm.Expr("attempts + 1"),
			"claimed_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return models.DeliveryJob{}, false, result.Error
	}
	if result.RowsAffected == 0 {
		return models.DeliveryJob{}, false, nil
	}

	job, err := r.GetByID(ctx, id)
	if err != nil {
		return models.DeliveryJob{}, false, err
	}
	return job, true, nil
}

// Complete marks the job sent and back-links the originating notification.
func (r *deliveryRepository) Complete(ctx context.Context, job models.DeliveryJob, now time.Time, audit *models.AuditEntry) (bool, error) {
	done := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := r.fenced(tx, job).Updates(map[string]interface{}{
			"status":     models.DeliveryStatusSent,
			"sent_at":    now,
			"last_error": "",
			"updated_at": now,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		done = true

		if job.NotificationID != nil {
			if err := tx.Model(&models.Notification{}).
				Where("id = ?", *job.NotificationID).
				Updates(map[string]interface{}{"email_sent": true, "updated_at": now}).Error; err != nil {
				return err
			}
		}

		if audit == nil {
			return nil
		}
		return tx.Create(audit).Error
	})
	if err != nil {
		return false, err
	}

	return done, nil
}

// Retry returns the job to pending for another attempt at next.
func (r *deliveryRepository) Retry(ctx context.Context, job models.DeliveryJob, next time.Time, message string) (bool, error) {
	result := r.fenced(r.db.WithContext(ctx), job).Updates(map[string]interface{}{
		"status":        models.DeliveryStatusPending,
		"scheduled_for": next,
		"claimed_at":    nil,
		"last_error":    message,
		"updated_at":    time.Now().UTC(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Fail parks the job in the terminal failed state, keeping the last error for operators.
func (r *deliveryRepository) Fail(ctx context.Context, job models.DeliveryJob, message string, audit *models.AuditEntry) (bool, error) {
	done := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := r.fenced(tx, job).Updates(map[string]interface{}{
			"status":     models.DeliveryStatusFailed,
			"last_error": message,
			"updated_at": time.Now().UTC(),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		done = true

		if audit == nil {
			return nil
		}
		return tx.Create(audit).Error
	})
	if err != nil {
		return false, err
	}

	return done, nil
}

func (r *deliveryRepository) fenced(db *gorm.DB, job models.DeliveryJob) *gorm.DB {
	return db.Model(&models.DeliveryJob{}).
		Where("id = ? AND status = ? AND attempts = ?", job.ID, models.DeliveryStatusProcessing, job.Attempts)
}

func (r *deliveryRepository) GetByID(ctx context.Context, id uint) (models.DeliveryJob, error) {
	var job models.DeliveryJob
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return models.DeliveryJob{}, err
	}
	return job, nil
}

func (r *deliveryRepository) List(ctx context.Context, filter DeliveryFilter) ([]models.DeliveryJob, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DeliveryJob{})
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
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var jobs []models.DeliveryJob
	if err := query.Order("created_at DESC, id DESC").Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}
