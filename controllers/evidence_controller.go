package controllers

import (
	"net/http"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-gonic/gin"
)

// UploadEvidencePhoto handles POST /api/v1/interventions/:id/evidence/photos
// The multipart field "image" is stored in S3; the returned key is what the
// technician later sends in the status update attachments.
func UploadEvidencePhoto(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	storage := services.GetS3Service()
	if storage == nil {
		respondFailure(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Photo storage is not configured", nil)
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondFailure(c, http.StatusBadRequest, "MISSING_FILE", "An image file is required in the 'image' field", nil)
		return
	}

	photo, err := services.NewEvidenceService(config.GetDB(), storage).UploadPhoto(c.Request.Context(), actor, id, fileHeader)
	if err != nil {
		respondError(c, err, "Failed to upload evidence photo")
		return
	}

	respondData(c, http.StatusCreated, photo)
}

// ListEvidencePhotos handles GET /api/v1/interventions/:id/evidence/photos
func ListEvidencePhotos(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	photos, err := services.NewEvidenceService(config.GetDB(), services.GetS3Service()).PhotoURLs(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err, "Failed to retrieve evidence photos")
		return
	}

	respondData(c, http.StatusOK, photos)
}
