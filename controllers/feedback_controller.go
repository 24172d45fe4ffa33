package controllers

import (
	"net/http"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-gonic/gin"
)

// SubmitFeedbackRequest represents the request body for rating an intervention
type SubmitFeedbackRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// SubmitFeedback handles POST /api/v1/feedback/:interventionId
// Out of range ratings are rejected by the rating service so the error
// names the field.
func SubmitFeedback(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "interventionId")
	if !ok {
		return
	}

	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	feedback, err := services.NewRatingService(config.GetDB()).SubmitFeedback(c.Request.Context(), actor, id, services.FeedbackInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		respondError(c, err, "Failed to submit feedback")
		return
	}

	respondData(c, http.StatusCreated, feedback)
}
