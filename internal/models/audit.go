package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditAction names the decision an audit entry records.
type AuditAction string

const (
	AuditActionScheduled AuditAction = "scheduled"
	AuditActionCancelled AuditAction = "cancelled"
	AuditActionSent      AuditAction = "sent"
	AuditActionFailed    AuditAction = "failed"
)

// AuditEntry captures a scheduling, cancellation or delivery decision. Rows are never updated.
type AuditEntry struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	ReminderID   *uint             `gorm:"index" json:"reminder_id,omitempty"`
	AssessmentID *uint             `gorm:"index" json:"assessment_id,omitempty"`
	StudentID    *uint             `gorm:"index" json:"student_id,omitempty"`
	Action       AuditAction       `gorm:"size:16;not null;index" json:"action"`
	Details      datatypes.JSONMap `gorm:"type:json" json:"details"`
	CreatedAt    time.Time         `json:"created_at"`
}

// TableName maps audit entries onto the reminder_audit_log table.
func (AuditEntry) TableName() string {
	return "reminder_audit_log"
}
