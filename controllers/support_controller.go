package controllers

import (
	"net/http"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-gonic/gin"
)

// OpenSupportRequest represents the request body for contacting the administrators
type OpenSupportRequest struct {
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// RespondSupportRequest is the optional first message an administrator posts
type RespondSupportRequest struct {
	Message string `json:"message"`
}

// CreateSupportRequest handles POST /api/v1/support (clients only)
func CreateSupportRequest(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req OpenSupportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	request, err := services.NewSupportService(config.GetDB()).Open(c.Request.Context(), actor, req.Subject, req.Message)
	if err != nil {
		respondError(c, err, "Failed to open support request")
		return
	}

	respondData(c, http.StatusCreated, request)
}

// ListSupportRequests handles GET /api/v1/support/admin
func ListSupportRequests(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	requests, err := services.NewSupportService(config.GetDB()).List(c.Request.Context(), actor, c.Query("status"))
	if err != nil {
		respondError(c, err, "Failed to retrieve support requests")
		return
	}

	respondData(c, http.StatusOK, requests)
}

// RespondToSupportRequest handles POST /api/v1/support/admin/respond/:requestId
// It provisions the client/administrator chat room for the request.
func RespondToSupportRequest(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "requestId")
	if !ok {
		return
	}

	// The body is optional.
	var req RespondSupportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	result, err := services.NewProvisioner(config.GetDB()).RespondToSupport(c.Request.Context(), actor, id, req.Message)
	if err != nil {
		respondError(c, err, "Failed to respond to support request")
		return
	}

	respondData(c, http.StatusCreated, gin.H{
		"chatRoomId":     result.ChatRoomID,
		"supportRequest": result.SupportRequest,
	})
}
