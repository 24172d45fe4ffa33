package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/fieldops/interventions-api/models"
	"github.com/fieldops/interventions-api/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// UploadedPhoto is a stored evidence photo. Key is what the technician
// passes back in the status update attachments.
type UploadedPhoto struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// EvidenceService stores evidence photos for interventions in object storage.
type EvidenceService struct {
	db      *gorm.DB
	storage S3Interface
}

// NewEvidenceService creates an evidence service backed by storage
func NewEvidenceService(db *gorm.DB, storage S3Interface) *EvidenceService {
	return &EvidenceService{db: db, storage: storage}
}

// UploadPhoto validates and stores a photo for an intervention the
// technician is assigned to and that is still open.
func (s *EvidenceService) UploadPhoto(ctx context.Context, technician *models.User, interventionID uint, fileHeader *multipart.FileHeader) (*UploadedPhoto, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("evidence storage is not configured")
	}

	var intervention models.Intervention
	if err := s.db.WithContext(ctx).First(&intervention, interventionID).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("intervention")
		}
		return nil, err
	}
	if technician.Role != models.RoleTechnician || !intervention.IsAssignedTo(technician.ID) {
		return nil, forbidden("Only the assigned technician can upload evidence")
	}
	if intervention.Status.IsTerminal() {
		return nil, &StateConflictError{Code: "INTERVENTION_CLOSED", Message: "Evidence cannot be added to a closed intervention"}
	}

	if err := utils.ValidateImageFile(fileHeader); err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			return nil, invalid("image", "%s", uploadErr.Message)
		}
		return nil, err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	key := fmt.Sprintf("evidence/%d/%s%s", intervention.ID, uuid.NewString(), ext)
	if err := s.storage.PutObject(ctx, key, utils.ContentTypeFor(ext), file); err != nil {
		return nil, err
	}

	url, err := s.storage.GetPresignedURL(ctx, key)
	if err != nil {
		// The caller never learns the key, so the object would be orphaned.
		if delErr := s.storage.DeleteObject(ctx, key); delErr != nil {
			log.Warn().Err(delErr).Str("key", key).Msg("failed to remove unreferenced evidence object")
		}
		return nil, err
	}
	return &UploadedPhoto{Key: key, URL: url}, nil
}

// PhotoURLs returns a viewable URL for every evidence photo of an
// intervention visible to actor. Photos stored through UploadPhoto get a
// presigned URL; any other reference, or a photo that cannot be signed, is
// returned unchanged.
func (s *EvidenceService) PhotoURLs(ctx context.Context, actor *models.User, interventionID uint) ([]UploadedPhoto, error) {
	var intervention models.Intervention
	if err := s.db.WithContext(ctx).First(&intervention, interventionID).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, notFound("intervention")
		}
		return nil, err
	}
	if !canView(actor, &intervention) {
		return nil, forbidden("You do not have permission to view this intervention")
	}

	photos := make([]UploadedPhoto, 0, len(intervention.Evidence.Photos))
	for _, ref := range intervention.Evidence.Photos {
		photo := UploadedPhoto{Key: ref, URL: ref}
		if s.storage != nil && strings.HasPrefix(ref, fmt.Sprintf("evidence/%d/", intervention.ID)) {
			url, err := s.storage.GetPresignedURL(ctx, ref)
			if err != nil {
				log.Warn().Err(err).Str("key", ref).Uint("intervention_id", intervention.ID).Msg("failed to presign evidence photo")
			} else {
				photo.URL = url
			}
		}
		photos = append(photos, photo)
	}
	return photos, nil
}
