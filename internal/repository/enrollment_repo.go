package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// EnrollmentRepository answers who currently belongs to a course.
type EnrollmentRepository interface {
	ListActiveStudentIDs(ctx context.Context, courseID uint) ([]uint, error)
	ActiveAmong(ctx context.Context, courseID uint, studentIDs []uint) (map[uint]bool, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository constructs the enrollment repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) activeQuery(ctx context.Context, courseID uint) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("course_id = ?", courseID).
		Where("status = ?", models.EnrollmentStatusActive).
		Where("left_at IS NULL")
}

func (r *enrollmentRepository) ListActiveStudentIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	if err := r.activeQuery(ctx, courseID).Order("student_id ASC").Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}

	return ids, nil
}

// ActiveAmong reports, for every requested student, whether the enrollment is active.
func (r *enrollmentRepository) ActiveAmong(ctx context.Context, courseID uint, studentIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	var ids []uint
	if err := r.activeQuery(ctx, courseID).Where("student_id IN ?", studentIDs).Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = true
	}

	return result, nil
}
