package dto

import (
	"time"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// AuditListRequest filters the reminder audit log.
type AuditListRequest struct {
	Page         int
	PageSize     int
	ReminderID   uint
	AssessmentID uint
	StudentID    uint
	Action       string `validate:"omitempty,oneof=scheduled cancelled sent failed"`
}

// AuditResponse serializes an audit entry.
type AuditResponse struct {
	ID           uint                   `json:"id"`
	ReminderID   *uint                  `json:"reminder_id,omitempty"`
	AssessmentID *uint                  `json:"assessment_id,omitempty"`
	StudentID    *uint                  `json:"student_id,omitempty"`
	Action       string                 `json:"action"`
	Details      map[string]interface{} `json:"details"`
	CreatedAt    time.Time              `json:"created_at"`
}

// AuditListResponse wraps a paginated audit list.
type AuditListResponse struct {
	Items      []AuditResponse `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}

// NewAuditResponse converts an audit model to its DTO.
func NewAuditResponse(model models.AuditEntry) AuditResponse {
	details := map[string]interface{}{}
	for key, value := range model.Details {
		details[key] = value
	}
	return AuditResponse{
		ID:           model.ID,
		ReminderID:   model.ReminderID,
		AssessmentID: model.AssessmentID,
		StudentID:    model.StudentID,
		Action:       string(model.Action),
		Details:      details,
		CreatedAt:    model.CreatedAt,
	}
}
