package dto

import (
	"time"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// ReminderListRequest filters reminder history.
type ReminderListRequest struct {
	StudentID    uint
	AssessmentID uint
	Status       string `validate:"omitempty,oneof=pending sent cancelled failed"`
	Page         int
	PageSize     int
}

// ReminderResponse serializes a scheduled reminder.
type ReminderResponse struct {
	ID           uint       `json:"id"`
	AssessmentID uint       `json:"assessment_id"`
	StudentID    uint       `json:"student_id"`
	PolicyID     uint       `json:"policy_id"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Status       string     `json:"status"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	Failures     uint       `json:"failures"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ReminderListResponse wraps a paginated reminder list.
type ReminderListResponse struct {
	Items      []ReminderResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// NewReminderResponse converts a reminder model to its DTO.
func NewReminderResponse(model models.ScheduledReminder) ReminderResponse {
	return ReminderResponse{
		ID:           model.ID,
		AssessmentID: model.AssessmentID,
		StudentID:    model.StudentID,
		PolicyID:     model.PolicyID,
		ScheduledFor: model.ScheduledFor,
		Status:       string(model.Status),
		SentAt:       model.SentAt,
		CancelReason: model.CancelReason,
		Failures:     model.Failures,
		LastError:    model.LastError,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}
