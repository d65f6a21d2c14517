package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// SubmissionRepository answers whether students already handed in an assessment.
type SubmissionRepository interface {
	HasSubmitted(ctx context.Context, assessmentID, studentID uint) (bool, error)
	SubmittedAmong(ctx context.Context, assessmentID uint, studentIDs []uint) (map[uint]bool, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) HasSubmitted(ctx context.Context, assessmentID, studentID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ? AND student_id = ?", assessmentID, studentID).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *submissionRepository) SubmittedAmong(ctx context.Context, assessmentID uint, studentIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ?", assessmentID).
		Where("student_id IN ?", studentIDs).
		Distinct().
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = true
	}

	return result, nil
}
