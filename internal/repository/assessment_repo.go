package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// AssessmentRepository reads assessments owned by the assessment service.
type AssessmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assessment, error)
	ListByIDs(ctx context.Context, ids []uint) (map[uint]models.Assessment, error)
	ListIDsByCourse(ctx context.Context, courseID uint) ([]uint, error)
	ListRemindable(ctx context.Context, courseID uint, now time.Time) ([]models.Assessment, error)
	Create(ctx context.Context, assessment *models.Assessment) error
	Update(ctx context.Context, assessment *models.Assessment) error
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository instantiates a GORM-backed repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uint) (models.Assessment, error) {
	var assessment models.Assessment
	if err := r.db.WithContext(ctx).First(&assessment, id).Error; err != nil {
		return models.Assessment{}, err
	}

	return assessment, nil
}

func (r *assessmentRepository) ListByIDs(ctx context.Context, ids []uint) (map[uint]models.Assessment, error) {
	result := make(map[uint]models.Assessment, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var assessments []models.Assessment
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&assessments).Error; err != nil {
		return nil, err
	}
	for _, assessment := range assessments {
		result[assessment.ID] = assessment
	}

	return result, nil
}

func (r *assessmentRepository) ListIDsByCourse(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Assessment{}).
		Where("course_id = ?", courseID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	return ids, nil
}

// ListRemindable returns the course's active, published, not withdrawn assessments still ahead of now.
func (r *assessmentRepository) ListRemindable(ctx context.Context, courseID uint, now time.Time) ([]models.Assessment, error) {
	var assessments []models.Assessment
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Where("is_active = ? AND is_published = ?", true, true).
		Where("withdrawn_at IS NULL").
		Where("due_date > ?", now).
		Order("due_date ASC").
		Find(&assessments).Error; err != nil {
		return nil, err
	}

	return assessments, nil
}

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

func (r *assessmentRepository) Update(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Save(assessment).Error
}
