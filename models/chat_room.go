package models

import (
	"fmt"
	"time"
)

// ChatRoom is a conversation between a client and either the technician
// servicing one of their interventions or an administrator answering a
// support request.
//
// RoomKey is the natural key of the room and carries a unique index, so at
// most one room can exist for a given participant/subject combination.
type ChatRoom struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	RoomKey          string        `gorm:"uniqueIndex;not null" json:"-"`
	ClientID         uint          `gorm:"not null;index" json:"clientId"`
	TechnicianID     *uint         `gorm:"index" json:"technicianId,omitempty"`
	AdminID          *uint         `gorm:"index" json:"adminId,omitempty"`
	InterventionID   *uint         `gorm:"index" json:"interventionId,omitempty"`
	SupportRequestID *uint         `gorm:"index" json:"supportRequestId,omitempty"`
	Messages         []ChatMessage `gorm:"foreignKey:ChatRoomID" json:"messages,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// TableName specifies the table name for the ChatRoom model
func (ChatRoom) TableName() string {
	return "chat_rooms"
}

// InterventionRoomKey is the natural key of the room for a technician
// working on a client's intervention.
func InterventionRoomKey(clientID, technicianID, interventionID uint) string {
	return fmt.Sprintf("intervention:%d:%d:%d", clientID, technicianID, interventionID)
}

// SupportRoomKey is the natural key of the room for an administrator
// answering a client's support request.
func SupportRoomKey(clientID, adminID, supportRequestID uint) string {
	return fmt.Sprintf("support:%d:%d:%d", clientID, adminID, supportRequestID)
}

// HasParticipant reports whether userID is one of the two room members.
func (r *ChatRoom) HasParticipant(userID uint) bool {
	if r.ClientID == userID {
		return true
	}
	if r.TechnicianID != nil && *r.TechnicianID == userID {
		return true
	}
	return r.AdminID != nil && *r.AdminID == userID
}

// ChatMessage is a single message in a chat room
type ChatMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ChatRoomID uint      `gorm:"not null;index" json:"chatRoomId"`
	SenderID   uint      `gorm:"not null;index" json:"senderId"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Read       bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name for the ChatMessage model
func (ChatMessage) TableName() string {
	return "chat_messages"
}
