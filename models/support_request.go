package models

import "time"

// Support request statuses
const (
	SupportStatusOpen       = "open"
	SupportStatusInProgress = "in-progress"
	SupportStatusResolved   = "resolved"
)

// IsValidSupportStatus reports whether status is a known support request state.
func IsValidSupportStatus(status string) bool {
	switch status {
	case SupportStatusOpen, SupportStatusInProgress, SupportStatusResolved:
		return true
	}
	return false
}

// SupportRequest is a client question addressed to the administrators
// rather than to a technician.
type SupportRequest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClientID  uint      `gorm:"not null;index" json:"clientId"`
	AdminID   *uint     `gorm:"index" json:"adminId"` // set by the first administrator who responds
	Subject   string    `gorm:"not null" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Status    string    `gorm:"not null;default:'open';index" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for the SupportRequest model
func (SupportRequest) TableName() string {
	return "support_requests"
}
