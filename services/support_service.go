package services

import (
	"context"
	"strings"
	"time"

	"github.com/fieldops/interventions-api/models"
	"gorm.io/gorm"
)

// SupportService handles the client side of support requests. Responding is
// done by the Provisioner because it opens a chat room.
type SupportService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSupportService creates a support service on db
func NewSupportService(db *gorm.DB) *SupportService {
	return &SupportService{db: db, now: time.Now}
}

// Open creates a new support request for client.
func (s *SupportService) Open(ctx context.Context, client *models.User, subject, message string) (*models.SupportRequest, error) {
	if client.Role != models.RoleClient {
		return nil, forbidden("Only clients can open support requests")
	}
	subject = strings.TrimSpace(subject)
	message = strings.TrimSpace(message)
	if subject == "" {
		return nil, invalid("subject", "is required")
	}
	if message == "" {
		return nil, invalid("message", "is required")
	}

	now := s.now()
	request := &models.SupportRequest{
		ClientID:  client.ID,
		Subject:   subject,
		Message:   message,
		Status:    models.SupportStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

// List returns support requests for an administrator, oldest first so the
// queue is worked in order. A client only sees their own.
func (s *SupportService) List(ctx context.Context, actor *models.User, status string) ([]models.SupportRequest, error) {
	query := s.db.WithContext(ctx).Order("created_at ASC")
	switch actor.Role {
	case models.RoleAdministrator:
	case models.RoleClient:
		query = query.Where("client_id = ?", actor.ID)
	default:
		return nil, forbidden("Technicians have no access to support requests")
	}
	if status != "" {
		if !models.IsValidSupportStatus(status) {
			return nil, invalid("status", "%q is not a valid support status", status)
		}
		query = query.Where("status = ?", status)
	}
	var requests []models.SupportRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}
