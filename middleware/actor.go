package middleware

import (
	"errors"
	"net/http"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/models"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ContextActor holds the resolved *models.User of the caller.
const ContextActor = "actor"

// LoadActor resolves the token subject to a local account and stores it in
// the context. Requests from identities without an account are rejected.
func LoadActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth0ID, err := GetUserID(c)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
			return
		}

		user, err := services.NewAccountService(config.GetDB()).FindByAuth0ID(c.Request.Context(), auth0ID)
		if err != nil {
			var nf *services.NotFoundError
			if errors.As(err, &nf) {
				abortJSON(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
				return
			}
			log.Error().Err(err).Str("auth0_id", auth0ID).Msg("failed to load acting user")
			abortJSON(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user profile")
			return
		}

		c.Set(ContextActor, user)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not in roles. It must run after
// LoadActor.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abortJSON(c, http.StatusForbidden, "FORBIDDEN", "Your role cannot access this resource")
	}
}

// GetActor returns the user LoadActor resolved for this request.
func GetActor(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextActor)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
