package controllers

import (
	"net/http"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-gonic/gin"
)

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Chat responses use PureJSON so message text is returned exactly as typed.

// ListChatRooms handles GET /api/v1/chat/rooms
func ListChatRooms(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	rooms, err := services.NewChatService(config.GetDB()).ListRooms(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "Failed to retrieve chat rooms")
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rooms,
	})
}

// ListChatMessages handles GET /api/v1/chat/rooms/:id/messages
func ListChatMessages(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	messages, err := services.NewChatService(config.GetDB()).ListMessages(c.Request.Context(), actor, roomID)
	if err != nil {
		respondError(c, err, "Failed to retrieve messages")
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"data":    messages,
	})
}

// SendChatMessage handles POST /api/v1/chat/rooms/:id/messages
func SendChatMessage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	message, err := services.NewChatService(config.GetDB()).SendMessage(c.Request.Context(), actor, roomID, req.Content)
	if err != nil {
		respondError(c, err, "Failed to create message")
		return
	}

	c.PureJSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    message,
	})
}

// MarkChatRoomRead handles PATCH /api/v1/chat/rooms/:id/read
func MarkChatRoomRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}

	updated, err := services.NewChatService(config.GetDB()).MarkRead(c.Request.Context(), actor, roomID)
	if err != nil {
		respondError(c, err, "Failed to mark messages as read")
		return
	}

	respondData(c, http.StatusOK, gin.H{"updated": updated})
}
