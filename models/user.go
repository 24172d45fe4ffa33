package models

import (
	"time"

	"gorm.io/gorm"
)

// Role identifies which account variant a User is.
type Role string

const (
	RoleClient        Role = "client"
	RoleTechnician    Role = "technician"
	RoleAdministrator Role = "administrator"
)

// IsValid reports whether r is one of the three known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleTechnician, RoleAdministrator:
		return true
	}
	return false
}

// Technician availability values
const (
	TechnicianAvailable   = "Available"
	TechnicianUnavailable = "Unavailable"
)

// TechnicianProfile holds the fields that only apply to technicians.
type TechnicianProfile struct {
	SkillsList []string `gorm:"column:skills_list;type:text;serializer:json" json:"skillsList"`
	Status     string   `gorm:"column:technician_status" json:"status"`
	AvgRating  float64  `gorm:"column:avg_rating;not null;default:0" json:"avgRating"`
}

// AdministratorProfile holds the fields that only apply to administrators.
type AdministratorProfile struct {
	PermissionsList []string `gorm:"column:permissions_list;type:text;serializer:json" json:"permissionsList"`
}

// User is the shared account record. Role selects which of the embedded
// profiles is meaningful; the other one stays zero.
type User struct {
	ID               uint                 `gorm:"primaryKey" json:"id"`
	Auth0ID          *string              `gorm:"uniqueIndex" json:"-"` // identity provider subject, nil for accounts without SSO
	Name             string               `gorm:"not null" json:"name"`
	Email            string               `gorm:"uniqueIndex;not null" json:"email"`
	Phone            string               `json:"phone"`
	PasswordHash     string               `json:"-"`
	Role             Role                 `gorm:"not null;default:'client'" json:"role"`
	ResetToken       *string              `gorm:"index" json:"-"`
	ResetTokenExpiry *time.Time           `json:"-"`
	Technician       TechnicianProfile    `gorm:"embedded" json:"-"`
	Administrator    AdministratorProfile `gorm:"embedded" json:"-"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
	DeletedAt        gorm.DeletedAt       `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// AsTechnician returns the technician profile when u is a technician.
func (u *User) AsTechnician() (*TechnicianProfile, bool) {
	if u.Role != RoleTechnician {
		return nil, false
	}
	return &u.Technician, true
}

// AsAdministrator returns the administrator profile when u is an administrator.
func (u *User) AsAdministrator() (*AdministratorProfile, bool) {
	if u.Role != RoleAdministrator {
		return nil, false
	}
	return &u.Administrator, true
}

// UserResponse is the JSON shape of a user: shared fields plus only the
// profile matching the role.
type UserResponse struct {
	ID            uint                  `json:"id"`
	Name          string                `json:"name"`
	Email         string                `json:"email"`
	Phone         string                `json:"phone"`
	Role          Role                  `json:"role"`
	Technician    *TechnicianProfile    `json:"technician,omitempty"`
	Administrator *AdministratorProfile `json:"administrator,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// NewUserResponse builds the role-aware response for u.
func NewUserResponse(u *User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if tech, ok := u.AsTechnician(); ok {
		profile := *tech
		if profile.SkillsList == nil {
			profile.SkillsList = []string{}
		}
		resp.Technician = &profile
	}
	if admin, ok := u.AsAdministrator(); ok {
		profile := *admin
		if profile.PermissionsList == nil {
			profile.PermissionsList = []string{}
		}
		resp.Administrator = &profile
	}
	return resp
}

// NewUserResponses maps a slice of users to their responses.
func NewUserResponses(users []User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}
