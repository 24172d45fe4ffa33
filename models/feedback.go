package models

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Feedback is a client's rating of a completed intervention. There is at
// most one per intervention and it never changes once written.
type Feedback struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	InterventionID uint      `gorm:"not null;uniqueIndex" json:"interventionId"`
	ClientID       uint      `gorm:"not null;index" json:"clientId"`
	Rating         int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment        string    `gorm:"type:text" json:"comment"`
	Date           time.Time `gorm:"not null" json:"date"`
}

// TableName specifies the table name for the Feedback model
func (Feedback) TableName() string {
	return "feedback"
}
