package controllers

import (
	"net/http"

	"github.com/fieldops/interventions-api/config"
	"github.com/fieldops/interventions-api/services"
	"github.com/gin-gonic/gin"
)

// ForgotPasswordRequest represents the request body for starting a password reset
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest represents the request body for completing a password reset
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func accountService() *services.AccountService {
	svc := services.NewAccountService(config.GetDB())
	if cfg := config.GetConfig(); cfg != nil {
		svc = svc.WithResetTTL(cfg.PasswordResetTTL)
	}
	return svc
}

// ForgotPassword handles POST /api/v1/auth/password/forgot
// The response is identical whether or not the email belongs to an account.
func ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := accountService().RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err, "Failed to start password reset")
		return
	}

	respondData(c, http.StatusAccepted, gin.H{
		"message": "If an account exists for this email, reset instructions have been sent",
	})
}

// ResetPassword handles POST /api/v1/auth/password/reset
func ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := accountService().ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err, "Failed to reset password")
		return
	}

	respondData(c, http.StatusOK, gin.H{"message": "Password updated"})
}
