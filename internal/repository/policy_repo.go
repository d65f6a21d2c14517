package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// PolicyRepository persists reminder policies.
type PolicyRepository interface {
	List(ctx context.Context) ([]models.ReminderPolicy, error)
	ListActive(ctx context.Context) ([]models.ReminderPolicy, error)
	GetByID(ctx context.Context, id uint) (models.ReminderPolicy, error)
	Create(ctx context.Context, policy *models.ReminderPolicy) error
	Update(ctx context.Context, policy *models.ReminderPolicy) error
	IsReferenced(ctx context.Context, id uint) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type policyRepository struct {
	db *gorm.DB
}

// NewPolicyRepository constructs the policy repository.
func NewPolicyRepository(db *gorm.DB) PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) List(ctx context.Context) ([]models.ReminderPolicy, error) {
	var policies []models.ReminderPolicy
	if err := r.db.WithContext(ctx).
		Order("days_before DESC, hours_before DESC, id ASC").
		Find(&policies).Error; err != nil {
		return nil, err
	}

	return policies, nil
}

func (r *policyRepository) ListActive(ctx context.Context) ([]models.ReminderPolicy, error) {
	var policies []models.ReminderPolicy
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("days_before DESC, hours_before DESC, id ASC").
		Find(&policies).Error; err != nil {
		return nil, err
	}

	return policies, nil
}

func (r *policyRepository) GetByID(ctx context.Context, id uint) (models.ReminderPolicy, error) {
	var policy models.ReminderPolicy
	if err := r.db.WithContext(ctx).First(&policy, id).Error; err != nil {
		return models.ReminderPolicy{}, err
	}

	return policy, nil
}

func (r *policyRepository) Create(ctx context.Context, policy *models.ReminderPolicy) error {
	return r.db.WithContext(ctx).Create(policy).Error
}

func (r *policyRepository) Update(ctx context.Context, policy *models.ReminderPolicy) error {
	return r.db.WithContext(ctx).
		Model(policy).
		Select("name", "days_before", "hours_before", "active", "updated_at").
		Updates(policy).Error
}

func (r *policyRepository) IsReferenced(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ScheduledReminder{}).
		Where("policy_id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *policyRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ReminderPolicy{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
