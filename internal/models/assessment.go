package models

import "time"

// Assessment is a graded piece of course work with a deadline. Rows are owned
// by the assessment management service; the reminder engine only reads them.
type Assessment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CourseID    uint       `gorm:"not null;index" json:"course_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	DueDate     time.Time  `gorm:"not null;index" json:"due_date"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	IsPublished bool       `gorm:"not null" json:"is_published"`
	WithdrawnAt *time.Time `json:"withdrawn_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsPastDue returns true when the assessment deadline has already passed.
func (a Assessment) IsPastDue(reference time.Time) bool {
	return !reference.Before(a.DueDate)
}

// IsWithdrawn reports whether the assessment was pulled from the course.
func (a Assessment) IsWithdrawn() bool {
	return a.WithdrawnAt != nil
}

// AcceptsReminders reports whether students may be reminded about the assessment at all.
func (a Assessment) AcceptsReminders() bool {
	return a.IsActive && a.IsPublished && !a.IsWithdrawn()
}
