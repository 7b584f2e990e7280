// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/kaminskia1/excel-autograder/internal/models"
	"github.com/kaminskia1/excel-autograder/internal/repository"
	"github.com/kaminskia1/excel-autograder/internal/services/auth"
	"github.com/kaminskia1/excel-autograder/internal/services/session"
	"github.com/kaminskia1/excel-autograder/internal/services/verification"
	"github.com/labstack/echo/v4"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo     *repository.Repository
	auth     *auth.Service
	verifier *verification.Manager
	sessions *session.Manager
}

// New creates a new Handlers instance.
func New(repo *repository.Repository, authSvc *auth.Service, verifier *verification.Manager, sessions *session.Manager) *Handlers {
	return &Handlers{
		repo:     repo,
		auth:     authSvc,
		verifier: verifier,
		sessions: sessions,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if err := h.repo.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Routes registers the API routes on e.
func (h *Handlers) Routes(e *echo.Echo, requireAuth echo.MiddlewareFunc) {
	e.GET("/health", h.Health)

	api := e.Group("/api/v1/auth")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.GET("/verify-email/:token", h.VerifyEmail)

	protected := api.Group("", requireAuth)
	protected.POST("/logout", h.Logout)
	protected.GET("/me", h.Me)
	protected.PATCH("/me", h.UpdateMe)
	protected.POST("/me", h.UpdateMe)
	protected.POST("/change-password", h.ChangePassword)
	protected.POST("/resend-verification", h.ResendVerification)
	protected.POST("/change-email", h.ChangeEmail)
	protected.POST("/cancel-email-change", h.CancelEmailChange)
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	UUID          string          `json:"uuid"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	EmailVerified bool            `json:"email_verified"`
	PendingEmail  *string         `json:"pending_email"`
	Metadata      models.Document `json:"metadata"`
	Token         string          `json:"token,omitempty"`
}

func newUserResponse(user *models.User) UserResponse {
	metadata := user.Metadata
	if metadata == nil {
		metadata = models.Document{}
	}
	return UserResponse{
		UUID:          user.UUID,
		Username:      user.Username,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		PendingEmail:  user.PendingEmail,
		Metadata:      metadata,
	}
}
