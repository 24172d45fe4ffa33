package controllers

import (
	"net/http"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-gonic/gin"
)

// CreateInterventionRequest represents the request body for opening an intervention
type CreateInterventionRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Category    string   `json:"category" binding:"required"`
	Location    string   `json:"location"`
	Attachments []string `json:"attachments"`
}

// UpdateStatusRequest represents the request body for a technician status change
type UpdateStatusRequest struct {
	Status      string   `json:"status" binding:"required"`
	Attachments []string `json:"attachments"`
	Notes       string   `json:"notes"`
}

// AssignTechnicianRequest represents the request body for assigning a technician
type AssignTechnicianRequest struct {
	TechnicianID uint `json:"technicianId" binding:"required"`
}

// CreateIntervention handles POST /api/v1/interventions (clients only)
func CreateIntervention(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateInterventionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	intervention, err := services.NewInterventionService(config.GetDB()).Create(c.Request.Context(), actor, services.CreateInterventionInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Attachments: req.Attachments,
	})
	if err != nil {
		respondError(c, err, "Failed to create intervention")
		return
	}

	respondData(c, http.StatusCreated, intervention)
}

// ListInterventions handles GET /api/v1/interventions
// Clients see their own, technicians their assignments, administrators everything.
func ListInterventions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	interventions, err := services.NewInterventionService(config.GetDB()).List(c.Request.Context(), actor, c.Query("status"))
	if err != nil {
		respondError(c, err, "Failed to retrieve interventions")
		return
	}

	respondData(c, http.StatusOK, interventions)
}

// GetIntervention handles GET /api/v1/interventions/:id
func GetIntervention(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	intervention, err := services.NewInterventionService(config.GetDB()).Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err, "Failed to retrieve intervention")
		return
	}

	respondData(c, http.StatusOK, intervention)
}

// UpdateInterventionStatus handles PATCH /api/v1/interventions/:id/status
// (assigned technician only)
func UpdateInterventionStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	intervention, err := services.NewInterventionService(config.GetDB()).UpdateStatus(c.Request.Context(), actor, id, services.StatusUpdateInput{
		Status:      req.Status,
		Attachments: req.Attachments,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err, "Failed to update intervention status")
		return
	}

	respondData(c, http.StatusOK, intervention)
}

// CancelIntervention handles DELETE /api/v1/interventions/:id
// A client may withdraw their own intervention while it is still Pending.
func CancelIntervention(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := services.NewInterventionService(config.GetDB()).CancelByClient(c.Request.Context(), actor, id); err != nil {
		respondError(c, err, "Failed to cancel intervention")
		return
	}

	respondData(c, http.StatusOK, gin.H{"id": id})
}

// AssignTechnician handles PUT /api/v1/interventions/assign-technician/:interventionId
func AssignTechnician(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "interventionId")
	if !ok {
		return
	}

	var req AssignTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := services.NewProvisioner(config.GetDB()).Assign(c.Request.Context(), actor, id, req.TechnicianID)
	if err != nil {
		respondError(c, err, "Failed to assign technician")
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"intervention": result.Intervention,
		"chatRoomId":   result.ChatRoomID,
	})
}
