package controllers

import (
	"net/http"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/models"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-gonic/gin"
)

// AdminCreateUserRequest represents the request body for creating any account
type AdminCreateUserRequest struct {
	Name        string   `json:"name" binding:"required"`
	Email       string   `json:"email" binding:"required,email"`
	Phone       string   `json:"phone"`
	Password    string   `json:"password" binding:"required"`
	Role        string   `json:"role" binding:"required"`
	Auth0ID     string   `json:"auth0Id"`
	Skills      []string `json:"skillsList"`
	Permissions []string `json:"permissionsList"`
}

// AdminUpdateUserRequest represents the request body for editing an account.
// Omitted fields are left unchanged.
type AdminUpdateUserRequest struct {
	Name        *string  `json:"name"`
	Email       *string  `json:"email" binding:"omitempty,email"`
	Phone       *string  `json:"phone"`
	Password    *string  `json:"password"`
	Skills      []string `json:"skillsList"`
	Permissions []string `json:"permissionsList"`
	Status      *string  `json:"status"`
}

// AdminCreateUser handles POST /api/v1/admin
func AdminCreateUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req AdminCreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := services.NewAccountService(config.GetDB()).CreateUser(c.Request.Context(), actor, services.CreateUserInput{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Password:    req.Password,
		Role:        models.Role(req.Role),
		Auth0ID:     req.Auth0ID,
		Skills:      req.Skills,
		Permissions: req.Permissions,
	})
	if err != nil {
		respondError(c, err, "Failed to create user")
		return
	}

	respondData(c, http.StatusCreated, models.NewUserResponse(user))
}

// AdminUpdateUser handles PUT /api/v1/admin/:id
func AdminUpdateUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := services.NewAccountService(config.GetDB()).UpdateUser(c.Request.Context(), actor, id, services.UpdateUserInput{
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		Password:         req.Password,
		Skills:           req.Skills,
		Permissions:      req.Permissions,
		TechnicianStatus: req.Status,
	})
	if err != nil {
		respondError(c, err, "Failed to update user")
		return
	}

	respondData(c, http.StatusOK, models.NewUserResponse(user))
}

// AdminDeleteUser handles DELETE /api/v1/admin/:id
func AdminDeleteUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := services.NewAccountService(config.GetDB()).DeleteUser(c.Request.Context(), actor, id); err != nil {
		respondError(c, err, "Failed to delete user")
		return
	}

	respondData(c, http.StatusOK, gin.H{"id": id})
}

// AdminListUsers handles GET /api/v1/admin/users?role=
func AdminListUsers(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	users, err := services.NewAccountService(config.GetDB()).ListUsers(c.Request.Context(), actor, models.Role(c.Query("role")))
	if err != nil {
		respondError(c, err, "Failed to retrieve users")
		return
	}

	respondData(c, http.StatusOK, models.NewUserResponses(users))
}

// GetReports handles GET /api/v1/admin/reports
func GetReports(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	report, err := services.NewReportService(config.GetDB()).Summary(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "Failed to build report")
		return
	}

	respondData(c, http.StatusOK, report)
}
