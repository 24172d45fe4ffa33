package services

import (
	"context"
	"strings"
	"time"

	"github.com/fieldops/interventions-api/models"
	"gorm.io/gorm"
)

// ChatService reads and writes messages in provisioned chat rooms. It never
// creates rooms; that is the Provisioner's job.
type ChatService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewChatService creates a chat service on db
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db, now: time.Now}
}

// ListRooms returns every room user participates in, most recently active first.
func (s *ChatService) ListRooms(ctx context.Context, user *models.User) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := s.db.WithContext(ctx).
		Where("client_id = ? OR technician_id = ? OR admin_id = ?", user.ID, user.ID, user.ID).
		Order("updated_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

// ListMessages returns the room's messages oldest first.
func (s *ChatService) ListMessages(ctx context.Context, user *models.User, roomID uint) ([]models.ChatMessage, error) {
	if _, err := s.roomFor(s.db.WithContext(ctx), user, roomID); err != nil {
		return nil, err
	}
	var messages []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("chat_room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage appends a message from user to the room.
func (s *ChatService) SendMessage(ctx context.Context, user *models.User, roomID uint, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "is required")
	}

	var message *models.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := s.roomFor(tx, user, roomID)
		if err != nil {
			return err
		}
		now := s.now()
		message = &models.ChatMessage{
			ChatRoomID: room.ID,
			SenderID:   user.ID,
			Content:    content,
			CreatedAt:  now,
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(room).Update("updated_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// MarkRead flags every message the other participant sent as read and
// returns how many changed.
func (s *ChatService) MarkRead(ctx context.Context, user *models.User, roomID uint) (int64, error) {
	if _, err := s.roomFor(s.db.WithContext(ctx), user, roomID); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("chat_room_id = ? AND sender_id <> ? AND read = ?", roomID, user.ID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

func (s *ChatService) roomFor(tx *gorm.DB, user *models.User, roomID uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := tx.First(&room, roomID).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("chat room")
		}
		return nil, err
	}
	if !room.HasParticipant(user.ID) {
		return nil, forbidden("You are not a participant of this chat room")
	}
	return &room, nil
}
