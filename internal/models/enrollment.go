package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive      EnrollmentStatus = "ACTIVE"
	EnrollmentStatusTransferred EnrollmentStatus = "TRANSFERRED"
	EnrollmentStatusLeft        EnrollmentStatus = "LEFT"
)

// Enrollment captures a student's registration to a course.
type Enrollment struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	CourseID  uint             `gorm:"not null;uniqueIndex:idx_enrollment_course_student,priority:1" json:"course_id"`
	StudentID uint             `gorm:"not null;uniqueIndex:idx_enrollment_course_student,priority:2;index" json:"student_id"`
	Status    EnrollmentStatus `gorm:"size:16;not null;default:ACTIVE" json:"status"`
	JoinedAt  time.Time        `json:"joined_at"`
	LeftAt    *time.Time       `json:"left_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// IsActive reports whether the student currently belongs to the course.
func (e Enrollment) IsActive() bool {
	return e.Status == EnrollmentStatusActive && e.LeftAt == nil
}
