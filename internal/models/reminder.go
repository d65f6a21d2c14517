package models

import (
	"fmt"
	"time"
)

// ReminderPolicy is a fixed lead time before a due date at which a reminder fires.
type ReminderPolicy struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:64;uniqueIndex;not null" json:"name"`
	DaysBefore  uint      `gorm:"not null;default:0" json:"days_before"`
	HoursBefore uint      `gorm:"not null;default:0" json:"hours_before"`
	Active      bool      `gorm:"not null" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Offset returns how long before the due date the reminder should fire.
func (p ReminderPolicy) Offset() time.Duration {
	return time.Duration(p.DaysBefore)*24*time.Hour + time.Duration(p.HoursBefore)*time.Hour
}

// Label renders the offset in a compact human form such as "3d" or "1d6h".
func (p ReminderPolicy) Label() string {
	switch {
	case p.DaysBefore > 0 && p.HoursBefore > 0:
		return fmt.Sprintf("%dd%dh", p.DaysBefore, p.HoursBefore)
	case p.DaysBefore > 0:
		return fmt.Sprintf("%dd", p.DaysBefore)
	default:
		return fmt.Sprintf("%dh", p.HoursBefore)
	}
}

// ReminderStatus is the lifecycle state of a scheduled reminder.
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusSent      ReminderStatus = "sent"
	ReminderStatusCancelled ReminderStatus = "cancelled"
	ReminderStatusFailed    ReminderStatus = "failed"
)

// IsTerminal reports whether the reminder can no longer change state.
func (s ReminderStatus) IsTerminal() bool {
	return s == ReminderStatusSent || s == ReminderStatusCancelled || s == ReminderStatusFailed
}

// ScheduledReminder is one owed reminder for an (assessment, student, policy) triple.
// At most one pending row may exist per triple; the partial unique index enforces it.
// Failures counts dispatch attempts that rolled back before the reminder could be sent.
type ScheduledReminder struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	AssessmentID uint           `gorm:"not null;index;uniqueIndex:uniq_pending_reminder,where:status = 'pending'" json:"assessment_id"`
	StudentID    uint           `gorm:"not null;index;uniqueIndex:uniq_pending_reminder,where:status = 'pending'" json:"student_id"`
	PolicyID     uint           `gorm:"not null;uniqueIndex:uniq_pending_reminder,where:status = 'pending'" json:"policy_id"`
	ScheduledFor time.Time      `gorm:"not null;index:idx_reminder_due,priority:2" json:"scheduled_for"`
	Status       ReminderStatus `gorm:"size:16;not null;default:pending;index:idx_reminder_due,priority:1" json:"status"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	CancelReason string         `gorm:"size:32" json:"cancel_reason,omitempty"`
	Failures     uint           `gorm:"not null;default:0" json:"failures"`
	LastError    string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName pins the table name used by the store.
func (ScheduledReminder) TableName() string {
	return "scheduled_reminders"
}
