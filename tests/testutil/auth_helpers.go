package testutil

import (
	"github.com/fieldops/interventions-api/middleware"
	"github.com/fieldops/interventions-api/models"
	"github.com/gin-gonic/gin"
)

// MockAuth sets up the context exactly as EnsureValidToken does for a token
// issued to subject.
func MockAuth(subject, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, subject)
		c.Set(middleware.ContextAccessToken, accessToken)
		c.Next()
	}
}

// As returns the handler chain a protected route runs for user: token,
// local account lookup, then handler.
func As(user *models.User, handler gin.HandlerFunc) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		MockAuth(*user.Auth0ID, "token-"+*user.Auth0ID),
		middleware.LoadActor(),
		handler,
	}
}

// CreateTestRouter returns a bare engine in test mode.
func CreateTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
