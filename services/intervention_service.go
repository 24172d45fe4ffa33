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

// CreateInterventionInput is what a client supplies when opening a ticket.
type CreateInterventionInput struct {
	Title       string
	Description string
	Category    string
	Location    string
	Attachments []string
}

// StatusUpdateInput is a technician's status change. Attachments are the
// evidence photo references; Notes, when non-empty, is appended to the
// evidence notes.
type StatusUpdateInput struct {
	Status      string
	Attachments []string
	Notes       string
}

// InterventionService implements the intervention lifecycle.
type InterventionService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewInterventionService creates an intervention service on db
func NewInterventionService(db *gorm.DB) *InterventionService {
	return &InterventionService{db: db, now: time.Now}
}

// Create opens a new intervention for client. Status is always Pending
// regardless of what the caller sent.
func (s *InterventionService) Create(ctx context.Context, client *models.User, in CreateInterventionInput) (*models.Intervention, error) {
	if client.Role != models.RoleClient {
		return nil, forbidden("Only clients can create interventions")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title", "is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, invalid("description", "is required")
	}
	category := models.Category(strings.ToLower(strings.TrimSpace(in.Category)))
	if !category.IsValid() {
		return nil, invalid("category", "%q is not a known service category", in.Category)
	}

	now := s.now()
	intervention := &models.Intervention{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		ClientID:    client.ID,
		Category:    category,
		Location:    strings.TrimSpace(in.Location),
		Status:      models.StatusPending,
		Attachments: cleanReferences(in.Attachments),
		Evidence:    models.Evidence{Photos: []string{}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(intervention).Error; err != nil {
		return nil, err
	}
	log.Info().Uint("intervention_id", intervention.ID).Uint("client_id", client.ID).Msg("intervention created")
	return intervention, nil
}

// Get returns an intervention visible to actor: its client, its assigned
// technician, or any administrator.
func (s *InterventionService) Get(ctx context.Context, actor *models.User, id uint) (*models.Intervention, error) {
	intervention, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, intervention) {
		return nil, forbidden("You do not have permission to view this intervention")
	}
	return intervention, nil
}

// List returns the interventions actor can see, newest first, optionally
// filtered by status.
func (s *InterventionService) List(ctx context.Context, actor *models.User, status string) ([]models.Intervention, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	switch actor.Role {
	case models.RoleClient:
		query = query.Where("client_id = ?", actor.ID)
	case models.RoleTechnician:
		query = query.Where("technician_id = ?", actor.ID)
	case models.RoleAdministrator:
	default:
		return nil, forbidden("Unknown role")
	}
	if status != "" {
		if !models.InterventionStatus(status).IsValid() {
			return nil, invalid("status", "%q is not a valid status", status)
		}
		query = query.Where("status = ?", status)
	}

	var interventions []models.Intervention
	if err := query.Find(&interventions).Error; err != nil {
		return nil, err
	}
	return interventions, nil
}

// UpdateStatus moves an intervention through its lifecycle on behalf of the
// assigned technician. Entering Completed or Cancelled requires at least one
// evidence photo in the same call; the check happens before any write.
func (s *InterventionService) UpdateStatus(ctx context.Context, technician *models.User, id uint, in StatusUpdateInput) (*models.Intervention, error) {
	next := models.InterventionStatus(in.Status)
	if !next.IsValid() {
		return nil, invalid("status", "%q is not a valid status", in.Status)
	}
	photos := cleanReferences(in.Attachments)
	notes := strings.TrimSpace(in.Notes)

	var result *models.Intervention
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		intervention, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if technician.Role != models.RoleTechnician || !intervention.IsAssignedTo(technician.ID) {
			return forbidden("Only the assigned technician can update this intervention")
		}

		current := intervention.Status
		if !current.CanTransitionTo(next) {
			return &StateConflictError{
				Code:    "INVALID_TRANSITION",
				Message: "Cannot move intervention from " + string(current) + " to " + string(next),
			}
		}
		if next != current && next.RequiresEvidence() && len(photos) == 0 {
			return &StateConflictError{
				Code:    "EVIDENCE_REQUIRED",
				Message: "At least one evidence photo is required to mark an intervention " + string(next),
			}
		}

		// Same status with nothing to record is a successful no-op.
		if next == current && len(photos) == 0 && notes == "" {
			result = intervention
			return nil
		}

		intervention.Status = next
		intervention.Evidence.Photos = append(intervention.Evidence.Photos, photos...)
		if notes != "" {
			if intervention.Evidence.Notes != "" {
				intervention.Evidence.Notes += "\n"
			}
			intervention.Evidence.Notes += notes
		}
		if err := s.save(tx, intervention); err != nil {
			return err
		}
		if next != current {
			log.Info().Uint("intervention_id", intervention.ID).Str("from", string(current)).
				Str("to", string(next)).Uint("technician_id", technician.ID).Msg("intervention status changed")
		}
		result = intervention
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelByClient removes a client's own intervention while it is still
// Pending. Anything already assigned has to be closed by its technician.
func (s *InterventionService) CancelByClient(ctx context.Context, client *models.User, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		intervention, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if intervention.ClientID != client.ID {
			return forbidden("You can only cancel your own interventions")
		}
		if intervention.Status != models.StatusPending {
			return &StateConflictError{
				Code:    "NOT_PENDING",
				Message: "Only pending interventions can be cancelled by the client",
			}
		}
		if err := tx.Delete(intervention).Error; err != nil {
			return err
		}
		log.Info().Uint("intervention_id", intervention.ID).Uint("client_id", client.ID).Msg("intervention withdrawn")
		return nil
	})
}

func (s *InterventionService) load(tx *gorm.DB, id uint) (*models.Intervention, error) {
	var intervention models.Intervention
	if err := tx.First(&intervention, id).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("intervention")
		}
		return nil, err
	}
	if intervention.Evidence.Photos == nil {
		intervention.Evidence.Photos = []string{}
	}
	return &intervention, nil
}

// save stamps UpdatedAt explicitly on every intervention write.
func (s *InterventionService) save(tx *gorm.DB, intervention *models.Intervention) error {
	intervention.UpdatedAt = s.now()
	return tx.Omit(clause.Associations).Save(intervention).Error
}

func canView(actor *models.User, intervention *models.Intervention) bool {
	switch actor.Role {
	case models.RoleClient:
		return intervention.ClientID == actor.ID
	case models.RoleTechnician:
		return intervention.IsAssignedTo(actor.ID)
	case models.RoleAdministrator:
		return true
	}
	return false
}

// cleanReferences trims attachment/photo references and drops blanks.
func cleanReferences(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
