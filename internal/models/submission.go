package models

import "time"

// Submission is the submission service's record that a student handed in an assessment.
// The reminder engine only reads it: any row for the pair means the student is no longer owed reminders.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssessmentID uint       `gorm:"not null;index:idx_submission_owner,priority:1" json:"assessment_id"`
	StudentID    uint       `gorm:"not null;index:idx_submission_owner,priority:2" json:"student_id"`
	Status       string     `gorm:"size:32;not null" json:"status"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Submission states written by the submission service.
const (
	SubmissionStatusSubmitted = "submitted"
	SubmissionStatusLate      = "late"
	SubmissionStatusGraded    = "graded"
)
