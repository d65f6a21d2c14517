package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationKind classifies what a notification is about.
type NotificationKind string

const (
	NotificationKindReminder     NotificationKind = "reminder"
	NotificationKindGrade        NotificationKind = "grade"
	NotificationKindAnnouncement NotificationKind = "announcement"
	NotificationKindSystem       NotificationKind = "system"
)

// NotificationChannel is the delivery medium for a notification.
type NotificationChannel string

const (
	NotificationChannelDashboard NotificationChannel = "dashboard"
	NotificationChannelEmail     NotificationChannel = "email"
	NotificationChannelBoth      NotificationChannel = "both"
)

// Valid reports whether the channel is one of the known values.
func (c NotificationChannel) Valid() bool {
	switch c {
	case NotificationChannelDashboard, NotificationChannelEmail, NotificationChannelBoth:
		return true
	}
	return false
}

// IncludesEmail reports whether the email leg must be delivered.
func (c NotificationChannel) IncludesEmail() bool {
	return c == NotificationChannelEmail || c == NotificationChannelBoth
}

// NotificationStatus tracks what the reader did with a notification.
type NotificationStatus string

const (
	NotificationStatusUnread    NotificationStatus = "unread"
	NotificationStatusRead      NotificationStatus = "read"
	NotificationStatusDismissed NotificationStatus = "dismissed"
)

// ReferenceTypeScheduledReminder marks notifications produced by the dispatcher.
const ReferenceTypeScheduledReminder = "scheduled_reminder"

// Notification represents a message targeted to a specific user.
type Notification struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	UserID        string              `gorm:"size:64;index" json:"user_id"`
	Kind          NotificationKind    `gorm:"size:32;not null" json:"kind"`
	Channel       NotificationChannel `gorm:"size:16;not null" json:"channel"`
	Status        NotificationStatus  `gorm:"size:16;not null;default:unread" json:"status"`
	ReferenceType string              `gorm:"size:64" json:"reference_type"`
	ReferenceID   uint                `json:"reference_id"`
	ReminderID    *uint               `gorm:"uniqueIndex" json:"reminder_id,omitempty"`
	Payload       datatypes.JSONMap   `gorm:"type:json" json:"payload"`
	EmailSent     bool                `gorm:"not null;default:false" json:"email_sent"`
	ReadAt        *time.Time          `json:"read_at,omitempty"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}
