package services

import (
	"context"
	"strings"
	"time"

	"github.com/fieldops/interventions-api/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultSupportGreeting = "An administrator has picked up your request and will reply here."

// AssignmentResult is the outcome of assigning a technician.
type AssignmentResult struct {
	Intervention *models.Intervention
	ChatRoomID   uint
	RoomCreated  bool
}

// SupportResponseResult is the outcome of an administrator picking up a
// support request.
type SupportResponseResult struct {
	SupportRequest *models.SupportRequest
	ChatRoomID     uint
	RoomCreated    bool
}

// Provisioner binds technicians to interventions and administrators to
// support requests, making sure each pairing has exactly one chat room.
type Provisioner struct {
	db  *gorm.DB
	now func() time.Time
}

// NewProvisioner creates a provisioner on db
func NewProvisioner(db *gorm.DB) *Provisioner {
	return &Provisioner{db: db, now: time.Now}
}

// Assign sets the technician of an intervention, forces it In Progress and
// ensures the (client, technician, intervention) chat room exists. Everything
// happens in one transaction: on any failure the intervention is left as it
// was and no room is created.
func (p *Provisioner) Assign(ctx context.Context, admin *models.User, interventionID, technicianID uint) (*AssignmentResult, error) {
	if !models.Authorize(admin, models.CapabilityAssignTechnician) {
		return nil, missingCapability("assign_technician permission required")
	}
	if technicianID == 0 {
		return nil, invalid("technicianId", "is required")
	}

	var result *AssignmentResult
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var intervention models.Intervention
		if err := tx.First(&intervention, interventionID).Error; err != nil {
			if isRecordNotFound(err) {
				return notFound("intervention")
			}
			return err
		}
		if intervention.Status.IsTerminal() {
			return &StateConflictError{
				Code:    "INTERVENTION_CLOSED",
				Message: "Cannot assign a technician to a " + string(intervention.Status) + " intervention",
			}
		}

		var technician models.User
		err := tx.Where("id = ? AND role = ?", technicianID, models.RoleTechnician).First(&technician).Error
		if err != nil {
			if isRecordNotFound(err) {
				return notFound("technician")
			}
			return err
		}

		intervention.TechnicianID = &technician.ID
		intervention.Status = models.StatusInProgress
		intervention.UpdatedAt = p.now()
		if err := tx.Omit(clause.Associations).Save(&intervention).Error; err != nil {
			return err
		}

		room := models.ChatRoom{
			RoomKey:        models.InterventionRoomKey(intervention.ClientID, technician.ID, intervention.ID),
			ClientID:       intervention.ClientID,
			TechnicianID:   &technician.ID,
			InterventionID: &intervention.ID,
		}
		created, err := p.ensureRoom(tx, &room)
		if err != nil {
			return err
		}

		result = &AssignmentResult{Intervention: &intervention, ChatRoomID: room.ID, RoomCreated: created}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("intervention_id", interventionID).Uint("technician_id", technicianID).
		Uint("admin_id", admin.ID).Uint("chat_room_id", result.ChatRoomID).Bool("room_created", result.RoomCreated).
		Msg("technician assigned")
	return result, nil
}

// RespondToSupport lets an administrator pick up a client's support request:
// it ensures the (client, administrator, request) chat room, seeds it with
// the administrator's first message when the room is new, and moves the
// request to in-progress.
func (p *Provisioner) RespondToSupport(ctx context.Context, admin *models.User, requestID uint, message string) (*SupportResponseResult, error) {
	if admin.Role != models.RoleAdministrator {
		return nil, missingCapability("Only administrators can respond to support requests")
	}
	message = strings.TrimSpace(message)

	var result *SupportResponseResult
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.SupportRequest
		if err := tx.First(&request, requestID).Error; err != nil {
			if isRecordNotFound(err) {
				return notFound("support request")
			}
			return err
		}
		if request.Status == models.SupportStatusResolved {
			return &StateConflictError{Code: "SUPPORT_REQUEST_RESOLVED", Message: "This support request is already resolved"}
		}

		room := models.ChatRoom{
			RoomKey:          models.SupportRoomKey(request.ClientID, admin.ID, request.ID),
			ClientID:         request.ClientID,
			AdminID:          &admin.ID,
			SupportRequestID: &request.ID,
		}
		created, err := p.ensureRoom(tx, &room)
		if err != nil {
			return err
		}

		content := message
		if created && content == "" {
			content = defaultSupportGreeting
		}
		if content != "" {
			seed := models.ChatMessage{
				ChatRoomID: room.ID,
				SenderID:   admin.ID,
				Content:    content,
				CreatedAt:  p.now(),
			}
			if err := tx.Create(&seed).Error; err != nil {
				return err
			}
		}

		request.Status = models.SupportStatusInProgress
		if request.AdminID == nil {
			request.AdminID = &admin.ID
		}
		request.UpdatedAt = p.now()
		if err := tx.Save(&request).Error; err != nil {
			return err
		}

		result = &SupportResponseResult{SupportRequest: &request, ChatRoomID: room.ID, RoomCreated: created}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("support_request_id", requestID).Uint("admin_id", admin.ID).
		Uint("chat_room_id", result.ChatRoomID).Bool("room_created", result.RoomCreated).Msg("support request picked up")
	return result, nil
}

// ensureRoom inserts room unless a room with the same natural key already
// exists, in which case room is replaced by the stored one. The unique index
// on room_key makes this safe against concurrent callers: the loser of an
// insert race does nothing and reads the winner's row.
func (p *Provisioner) ensureRoom(tx *gorm.DB, room *models.ChatRoom) (bool, error) {
	now := p.now()
	room.CreatedAt = now
	room.UpdatedAt = now

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_key"}},
		DoNothing: true,
	}).Omit(clause.Associations).Create(room)
	if res.Error != nil && !isDuplicateKey(res.Error) {
		return false, res.Error
	}
	if res.Error == nil && res.RowsAffected == 1 && room.ID != 0 {
		return true, nil
	}

	var existing models.ChatRoom
	if err := tx.Where("room_key = ?", room.RoomKey).First(&existing).Error; err != nil {
		return false, err
	}
	*room = existing
	return false, nil
}
