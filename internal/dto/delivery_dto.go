package dto

import (
	"time"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// DeliveryJobResponse serializes a queued email for operators. Bodies are omitted.
type DeliveryJobResponse struct {
	ID             uint       `json:"id"`
	NotificationID *uint      `json:"notification_id,omitempty"`
	ReminderID     *uint      `json:"reminder_id,omitempty"`
	Recipient      string     `json:"recipient"`
	Subject        string     `json:"subject"`
	Status         string     `json:"status"`
	Attempts       uint       `json:"attempts"`
	MaxAttempts    uint       `json:"max_attempts"`
	ScheduledFor   time.Time  `json:"scheduled_for"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// DeliveryJobListResponse wraps a paginated job list.
type DeliveryJobListResponse struct {
	Items      []DeliveryJobResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// NewDeliveryJobResponse converts a job model to DTO.
func NewDeliveryJobResponse(model models.DeliveryJob) DeliveryJobResponse {
	return DeliveryJobResponse{
		ID:             model.ID,
		NotificationID: model.NotificationID,
		ReminderID:     model.ReminderID,
		Recipient:      model.Recipient,
		Subject:        model.Subject,
		Status:         string(model.Status),
		Attempts:       model.Attempts,
		MaxAttempts:    model.MaxAttempts,
		ScheduledFor:   model.ScheduledFor,
		SentAt:         model.SentAt,
		LastError:      model.LastError,
	}
}
