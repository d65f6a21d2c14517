package models

import "time"

// DeliveryStatus is the state of an outbound email job.
type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusSent       DeliveryStatus = "sent"
	DeliveryStatusFailed     DeliveryStatus = "failed"
)

// DeliveryJob is one queued email. Attempts counts claims by the drain.
type DeliveryJob struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	NotificationID *uint          `gorm:"index" json:"notification_id,omitempty"`
	ReminderID     *uint          `gorm:"index" json:"reminder_id,omitempty"`
	Recipient      string         `gorm:"size:255;not null" json:"recipient"`
	Subject        string         `gorm:"size:255;not null" json:"subject"`
	Body           string         `gorm:"type:text" json:"body"`
	HTMLBody       string         `gorm:"type:text" json:"html_body"`
	Status         DeliveryStatus `gorm:"size:16;not null;default:pending;index:idx_delivery_status_scheduled,priority:1" json:"status"`
	Attempts       uint           `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts    uint           `gorm:"not null;default:5" json:"max_attempts"`
	ScheduledFor   time.Time      `gorm:"not null;index:idx_delivery_status_scheduled,priority:2" json:"scheduled_for"`
	ClaimedAt      *time.Time     `json:"claimed_at,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	LastError      string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName maps the job onto the delivery_queue table.
func (DeliveryJob) TableName() string {
	return "delivery_queue"
}

// HasAttemptsLeft reports whether the drain may claim the job again.
func (j DeliveryJob) HasAttemptsLeft() bool {
	return j.Attempts < j.MaxAttempts
}
