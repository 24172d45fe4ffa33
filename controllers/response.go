package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fieldops/interventions-api/middleware"
	"github.com/fieldops/interventions-api/models"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondFailure(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondBindError reports a request body that failed gin binding.
func respondBindError(c *gin.Context, err error) {
	respondFailure(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", err.Error())
}

// respondError maps a service error onto the HTTP envelope. Anything that is
// not one of the typed service errors is logged and reported generically.
func respondError(c *gin.Context, err error, fallbackMessage string) {
	var validationErr *services.ValidationError
	var authErr *services.AuthorizationError
	var notFoundErr *services.NotFoundError
	var conflictErr *services.StateConflictError

	switch {
	case errors.As(err, &validationErr):
		respondFailure(c, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error(),
			gin.H{"field": validationErr.Field})
	case errors.As(err, &authErr):
		respondFailure(c, authErr.Status, authErr.Code, authErr.Message, nil)
	case errors.As(err, &notFoundErr):
		respondFailure(c, http.StatusNotFound, notFoundErr.Code(), notFoundErr.Error(), nil)
	case errors.As(err, &conflictErr):
		// A missing evidence photo is a request the client must fix, not a race.
		status := http.StatusConflict
		if conflictErr.Code == "EVIDENCE_REQUIRED" {
			status = http.StatusBadRequest
		}
		respondFailure(c, status, conflictErr.Code, conflictErr.Message, nil)
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(fallbackMessage)
		_ = c.Error(err)
		respondFailure(c, http.StatusInternalServerError, "DATABASE_ERROR", fallbackMessage, nil)
	}
}

// currentActor returns the account resolved by middleware.LoadActor.
func currentActor(c *gin.Context) (*models.User, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return nil, false
	}
	return actor, true
}

// pathID parses a numeric path parameter.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondFailure(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name+" format", nil)
		return 0, false
	}
	return uint(id), true
}
