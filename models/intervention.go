package models

import (
	"time"

	"gorm.io/gorm"
)

// InterventionStatus is a state of the intervention lifecycle.
type InterventionStatus string

const (
	StatusPending    InterventionStatus = "Pending"
	StatusInProgress InterventionStatus = "In Progress"
	StatusCompleted  InterventionStatus = "Completed"
	StatusCancelled  InterventionStatus = "Cancelled"
)

// IsValid reports whether s is one of the four lifecycle states.
func (s InterventionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s has no outbound transitions.
func (s InterventionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// RequiresEvidence reports whether entering s needs evidence photos.
func (s InterventionStatus) RequiresEvidence() bool {
	return s.IsTerminal()
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Staying in the same state is always allowed.
func (s InterventionStatus) CanTransitionTo(next InterventionStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusInProgress
	case StatusInProgress:
		return next.IsTerminal()
	}
	return false
}

// Category is the kind of service an intervention asks for.
type Category string

const (
	CategoryPlumbing    Category = "plumbing"
	CategoryElectrical  Category = "electrical"
	CategoryHVAC        Category = "hvac"
	CategoryITSupport   Category = "it_support"
	CategoryAppliance   Category = "appliance"
	CategoryMaintenance Category = "maintenance"
	CategoryOther       Category = "other"
)

// IsValid reports whether c is a known service category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPlumbing, CategoryElectrical, CategoryHVAC, CategoryITSupport,
		CategoryAppliance, CategoryMaintenance, CategoryOther:
		return true
	}
	return false
}

// Evidence is what the technician supplies to close out an intervention.
type Evidence struct {
	Notes  string   `gorm:"column:evidence_notes;type:text" json:"notes"`
	Photos []string `gorm:"column:evidence_photos;type:text;serializer:json" json:"photos"`
}

// Intervention is a service ticket raised by a client
type Intervention struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	Title        string             `gorm:"not null" json:"title"`
	Description  string             `gorm:"type:text;not null" json:"description"`
	ClientID     uint               `gorm:"not null;index" json:"clientId"`
	Client       User               `gorm:"foreignKey:ClientID" json:"-"`
	TechnicianID *uint              `gorm:"index" json:"technicianId"` // nil until assigned
	Technician   *User              `gorm:"foreignKey:TechnicianID" json:"-"`
	Category     Category           `gorm:"not null" json:"category"`
	Location     string             `json:"location"`
	Status       InterventionStatus `gorm:"not null;default:'Pending';index" json:"status"`
	Attachments  []string           `gorm:"column:attachments_list;type:text;serializer:json" json:"attachmentsList"`
	Evidence     Evidence           `gorm:"embedded" json:"evidence"`
	FeedbackID   *uint              `json:"feedbackId"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt     `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Intervention model
func (Intervention) TableName() string {
	return "interventions"
}

// IsAssignedTo reports whether technicianID is the assigned technician.
func (i *Intervention) IsAssignedTo(technicianID uint) bool {
	return i.TechnicianID != nil && *i.TechnicianID == technicianID
}
