package controllers

import (
	"net/http"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/middleware"
	"github.com/fieldops/interventions-api/models"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

// AvailabilityRequest represents the request body for a technician availability change
type AvailabilityRequest struct {
	Status string `json:"status" binding:"required,oneof=Available Unavailable"`
}

// userInfoProvider resolves access tokens during registration.
var userInfoProvider = func() services.UserInfoProvider {
	return services.NewAuth0Service(config.GetConfig())
}

// CreateUser handles POST /api/v1/users - registers the bearer as a client
// This endpoint requires authentication and fetches user data from Auth0's /userinfo endpoint
func CreateUser(c *gin.Context) {
	// Get the Auth0 user ID from the validated JWT
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondFailure(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token", nil)
		return
	}

	// Get the access token to call Auth0's /userinfo endpoint
	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondFailure(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found", nil)
		return
	}

	userInfo, err := userInfoProvider().GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		log.Error().Err(err).Str("auth0_id", auth0ID).Msg("failed to fetch userinfo")
		respondFailure(c, http.StatusInternalServerError, "AUTH0_ERROR", "Failed to fetch user information from Auth0", nil)
		return
	}

	// Validate that required fields are present
	if userInfo.Email == "" {
		respondFailure(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided by Auth0", nil)
		return
	}
	if userInfo.Name == "" {
		respondFailure(c, http.StatusBadRequest, "MISSING_NAME", "Name not provided by Auth0", nil)
		return
	}

	// Self registration always yields a client; staff accounts are created by administrators.
	user, err := services.NewAccountService(config.GetDB()).RegisterClient(c.Request.Context(), auth0ID, userInfo.Name, userInfo.Email)
	if err != nil {
		respondError(c, err, "Failed to create user")
		return
	}

	respondData(c, http.StatusCreated, models.NewUserResponse(user))
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func GetMyProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	respondData(c, http.StatusOK, models.NewUserResponse(actor))
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func UpdateMyProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	// Parse request body
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// If no fields to update, return current user
	if req.Name == nil && req.Phone == nil {
		respondData(c, http.StatusOK, models.NewUserResponse(actor))
		return
	}

	user, err := services.NewAccountService(config.GetDB()).UpdateProfile(c.Request.Context(), actor, req.Name, req.Phone)
	if err != nil {
		respondError(c, err, "Failed to update user profile")
		return
	}

	respondData(c, http.StatusOK, models.NewUserResponse(user))
}

// UpdateMyAvailability handles PATCH /api/v1/technicians/me/availability
func UpdateMyAvailability(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := services.NewAccountService(config.GetDB()).SetAvailability(c.Request.Context(), actor, req.Status)
	if err != nil {
		respondError(c, err, "Failed to update availability")
		return
	}

	respondData(c, http.StatusOK, models.NewUserResponse(user))
}
