package dto

import "time"

// Domain event types consumed by the reminder engine.
const (
	EventAssessmentPublished   = "AssessmentPublished"
	EventAssessmentRescheduled = "AssessmentRescheduled"
	EventAssessmentDeactivated = "AssessmentDeactivated"
	EventAssessmentWithdrawn   = "AssessmentWithdrawn"
	EventStudentEnrolled       = "StudentEnrolled"
	EventStudentUnenrolled     = "StudentUnenrolled"
	EventSubmissionReceived    = "SubmissionReceived"
)

// DomainEvent is the envelope collaborators send over HTTP or NATS.
type DomainEvent struct {
	ID           string     `json:"id,omitempty" validate:"omitempty,max=64"`
	Type         string     `json:"type" validate:"required,oneof=AssessmentPublished AssessmentRescheduled AssessmentDeactivated AssessmentWithdrawn StudentEnrolled StudentUnenrolled SubmissionReceived"`
	AssessmentID uint       `json:"assessment_id,omitempty"`
	CourseID     uint       `json:"course_id,omitempty"`
	StudentID    uint       `json:"student_id,omitempty"`
	NewDueDate   *time.Time `json:"new_due_date,omitempty"`
	OccurredAt   *time.Time `json:"occurred_at,omitempty"`
}

// ReconcileSummary counts the writes a reconciliation performed.
type ReconcileSummary struct {
	Scheduled  int `json:"scheduled"`
	Cancelled  int `json:"cancelled"`
	Duplicates int `json:"duplicates"`
}

// Add folds another summary into s.
func (s *ReconcileSummary) Add(other ReconcileSummary) {
	s.Scheduled += other.Scheduled
	s.Cancelled += other.Cancelled
	s.Duplicates += other.Duplicates
}

// EventResult is returned to the event producer once the event has been applied.
type EventResult struct {
	EventID string           `json:"event_id,omitempty"`
	Type    string           `json:"type"`
	Summary ReconcileSummary `json:"summary"`
}
