package dto

import (
	"time"

	"github.com/noah-isme/gema-reminders/internal/models"
)

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID            uint                   `json:"id"`
	UserID        string                 `json:"user_id"`
	Kind          string                 `json:"kind"`
	Channel       string                 `json:"channel"`
	Status        string                 `json:"status"`
	ReferenceType string                 `json:"reference_type,omitempty"`
	ReferenceID   uint                   `json:"reference_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	EmailSent     bool                   `json:"email_sent"`
	ReadAt        *time.Time             `json:"read_at,omitempty"`
	ExpiresAt     *time.Time             `json:"expires_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	payload := map[string]interface{}{}
	for key, value := range model.Payload {
		payload[key] = value
	}
	return NotificationResponse{
		ID:            model.ID,
		UserID:        model.UserID,
		Kind:          string(model.Kind),
		Channel:       string(model.Channel),
		Status:        string(model.Status),
		ReferenceType: model.ReferenceType,
		ReferenceID:   model.ReferenceID,
		Payload:       payload,
		EmailSent:     model.EmailSent,
		ReadAt:        model.ReadAt,
		ExpiresAt:     model.ExpiresAt,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
