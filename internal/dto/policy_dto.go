package dto

import (
	"time"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// PolicyCreateRequest creates a reminder policy.
type PolicyCreateRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=64"`
	DaysBefore  uint   `json:"days_before" validate:"max=365"`
	HoursBefore uint   `json:"hours_before" validate:"max=23"`
	Active      *bool  `json:"active"`
}

// PolicyUpdateRequest partially updates a reminder policy.
type PolicyUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=64"`
	DaysBefore  *uint   `json:"days_before" validate:"omitempty,max=365"`
	HoursBefore *uint   `json:"hours_before" validate:"omitempty,max=23"`
	Active      *bool   `json:"active"`
}

// PolicyResponse serializes a reminder policy.
type PolicyResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	DaysBefore  uint      `json:"days_before"`
	HoursBefore uint      `json:"hours_before"`
	Label       string    `json:"label"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewPolicyResponse converts a policy model to its DTO.
func NewPolicyResponse(model models.ReminderPolicy) PolicyResponse {
	return PolicyResponse{
		ID:          model.ID,
		Name:        model.Name,
		DaysBefore:  model.DaysBefore,
		HoursBefore: model.HoursBefore,
		Label:       model.Label(),
		Active:      model.Active,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}
