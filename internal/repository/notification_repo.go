package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// NotificationRepository handles persistence for notification entities.
type NotificationRepository interface {
	ListByUser(ctx context.Context, userID string, status models.NotificationStatus, limit, offset int) ([]models.Notification, error)
	UpdateStatus(ctx context.Context, id uint, userID string, status models.NotificationStatus) (models.Notification, error)
	FindByID(ctx context.Context, id uint) (models.Notification, error)
	FindByReminder(ctx context.Context, reminderID uint) (models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository constructs a repository backed by GORM.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, status models.NotificationStatus, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status <> ?", models.NotificationStatusDismissed)
	}

	var notifications []models.Notification
	if err := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, err
	}

	return notifications, nil
}

// UpdateStatus moves a user's notification to read or dismissed. Dismissed is final.
func (r *notificationRepository) UpdateStatus(ctx context.Context, id uint, userID string, status models.NotificationStatus) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&notification).Error; err != nil {
		return models.Notification{}, err
	}

	if notification.Status == status || notification.Status == models.NotificationStatusDismissed {
		return notification, nil
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"status": status, "updated_at": now}
	if notification.ReadAt == nil {
		updates["read_at"] = now
	}

	if err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", notification.ID).Updates(updates).Error; err != nil {
		return models.Notification{}, err
	}

	notification.Status = status
	notification.UpdatedAt = now
	if notification.ReadAt == nil {
		notification.ReadAt = &now
	}

	return notification, nil
}

func (r *notificationRepository) FindByID(ctx context.Context, id uint) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).First(&notification, id).Error; err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}

func (r *notificationRepository) FindByReminder(ctx context.Context, reminderID uint) (models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Where("reminder_id = ?", reminderID).First(&notification).Error; err != nil {
		return models.Notification{}, err
	}
	return notification, nil
}
