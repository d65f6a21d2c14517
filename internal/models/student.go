package models

import "time"

// Student represents a learner that can be reminded about deadlines.
type Student struct {
	ID                  uint                `gorm:"primaryKey" json:"id"`
	Name                string              `gorm:"size:255;not null" json:"name"`
	Email               string              `gorm:"size:255;uniqueIndex;not null" json:"email"`
	NotificationChannel NotificationChannel `gorm:"size:16" json:"notification_channel"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// PreferredChannel returns the stored channel preference, defaulting to both.
func (s Student) PreferredChannel() NotificationChannel {
	if s.NotificationChannel.Valid() {
		return s.NotificationChannel
	}
	return NotificationChannelBoth
}
