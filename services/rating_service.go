package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/fieldops/interventions-api/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedbackInput is a client's rating of a completed intervention.
type FeedbackInput struct {
	Rating  int
	Comment string
}

// RatingService records feedback and keeps technician averages current.
type RatingService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRatingService creates a rating service on db
func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db, now: time.Now}
}

// SubmitFeedback records client's feedback on one of their Completed
// interventions, links it to the intervention and recomputes the servicing
// technician's average rating, all in one transaction.
//
// An intervention that does not belong to the client, is not Completed, or
// already carries feedback is reported as not found.
func (s *RatingService) SubmitFeedback(ctx context.Context, client *models.User, interventionID uint, in FeedbackInput) (*models.Feedback, error) {
	if client.Role != models.RoleClient {
		return nil, forbidden("Only clients can leave feedback")
	}
	if in.Rating < models.MinRating || in.Rating > models.MaxRating {
		return nil, invalid("rating", "must be between %d and %d", models.MinRating, models.MaxRating)
	}

	var feedback *models.Feedback
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var intervention models.Intervention
		err := tx.Where("id = ? AND client_id = ? AND status = ? AND feedback_id IS NULL",
			interventionID, client.ID, models.StatusCompleted).First(&intervention).Error
		if err != nil {
			if isRecordNotFound(err) {
				return &NotFoundError{
					Resource: "intervention",
					Message:  "Completed intervention without feedback not found",
				}
			}
			return err
		}

		fb := &models.Feedback{
			InterventionID: intervention.ID,
			ClientID:       client.ID,
			Rating:         in.Rating,
			Comment:        strings.TrimSpace(in.Comment),
			Date:           s.now(),
		}
		if err := tx.Create(fb).Error; err != nil {
			// The unique index on intervention_id catches a concurrent duplicate.
			if isDuplicateKey(err) {
				return &NotFoundError{
					Resource: "intervention",
					Message:  "Completed intervention without feedback not found",
				}
			}
			return err
		}

		intervention.FeedbackID = &fb.ID
		intervention.UpdatedAt = s.now()
		if err := tx.Omit(clause.Associations).Save(&intervention).Error; err != nil {
			return err
		}

		if intervention.TechnicianID != nil {
			if _, err := s.recompute(tx, *intervention.TechnicianID); err != nil {
				return err
			}
		}
		feedback = fb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return feedback, nil
}

// recomputeTechnicianRating recalculates and stores technicianID's average.
func (s *RatingService) recomputeTechnicianRating(ctx context.Context, technicianID uint) (float64, error) {
	var avg float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		avg, err = s.recompute(tx, technicianID)
		return err
	})
	return avg, err
}

// recompute derives the technician's average from every feedback row on
// interventions they serviced. With no rows the stored value is kept.
// Deleted technicians are still aggregated so their past work can be rated.
func (s *RatingService) recompute(tx *gorm.DB, technicianID uint) (float64, error) {
	var technician models.User
	if err := tx.Unscoped().Where("id = ? AND role = ?", technicianID, models.RoleTechnician).First(&technician).Error; err != nil {
		if isRecordNotFound(err) {
			return 0, notFound("technician")
		}
		return 0, err
	}

	var ratings []int
	err := tx.Model(&models.Feedback{}).
		Joins("JOIN interventions ON interventions.id = feedback.intervention_id").
		Where("interventions.technician_id = ?", technicianID).
		Pluck("feedback.rating", &ratings).Error
	if err != nil {
		return 0, err
	}
	if len(ratings) == 0 {
		return technician.Technician.AvgRating, nil
	}

	avg := averageRating(ratings)
	err = tx.Unscoped().Model(&models.User{}).Where("id = ?", technicianID).
		Updates(map[string]interface{}{"avg_rating": avg, "updated_at": s.now()}).Error
	if err != nil {
		return 0, err
	}
	log.Debug().Uint("technician_id", technicianID).Int("feedback_count", len(ratings)).Float64("avg_rating", avg).Msg("technician rating recomputed")
	return avg, nil
}

// averageRating is the arithmetic mean rounded to one decimal place.
func averageRating(ratings []int) float64 {
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	mean := float64(sum) / float64(len(ratings))
	return math.Round(mean*10) / 10
}
