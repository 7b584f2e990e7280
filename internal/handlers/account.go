// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kaminskia1/excel-autograder/internal/auth"
	"github.com/kaminskia1/excel-autograder/internal/i18n"
	"github.com/kaminskia1/excel-autograder/internal/models"
	authsvc "github.com/kaminskia1/excel-autograder/internal/services/auth"
	"github.com/kaminskia1/excel-autograder/internal/services/verification"
	"github.com/labstack/echo/v4"
)

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and mails the first verification link. The
// account is kept when the mail cannot be sent.
func (h *Handlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	ctx := c.Request().Context()
	user, err := h.auth.Register(ctx, authsvc.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return handleError(c, err)
	}

	messageID := "msg_account_created"
	emailSent := true
	if err := h.verifier.SendInitial(ctx, user); err != nil {
		if !errors.Is(err, verification.ErrSendFailed) {
			slog.Error("initial_verification_failed", "user_id", user.ID, "error", err)
		}
		messageID = "msg_account_created_email_failed"
		emailSent = false
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message":    i18n.T(ctx, messageID),
		"user":       newUserResponse(user),
		"email_sent": emailSent,
	})
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates the user and starts a session.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	user, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return handleError(c, err)
	}

	cookie, err := h.sessions.Create(user.ID, user.Username, user.SessionVersion)
	if err != nil {
		return handleError(c, err)
	}
	c.SetCookie(cookie)

	resp := newUserResponse(user)
	resp.Token = cookie.Value
	return c.JSON(http.StatusOK, resp)
}

// Logout ends the session and revokes every token issued to the user.
func (h *Handlers) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	user := auth.GetUser(ctx)

	if err := h.repo.RevokeSessions(ctx, user.ID); err != nil {
		return handleError(c, err)
	}

	c.SetCookie(h.sessions.Clear())
	return c.JSON(http.StatusOK, map[string]string{
		"message": i18n.T(ctx, "msg_logged_out"),
	})
}

// Me returns the authenticated user together with the session token the
// request was made with.
func (h *Handlers) Me(c echo.Context) error {
	ctx := c.Request().Context()
	resp := newUserResponse(auth.GetUser(ctx))
	resp.Token = auth.GetSessionToken(ctx)
	return c.JSON(http.StatusOK, resp)
}

// UpdateMeRequest is the request body for updating the authenticated user.
type UpdateMeRequest struct {
	Metadata *models.Document `json:"metadata"`
}

// UpdateMe replaces the user's metadata document when one is given.
func (h *Handlers) UpdateMe(c echo.Context) error {
	var req UpdateMeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	ctx := c.Request().Context()
	user := auth.GetUser(ctx)

	if req.Metadata != nil {
		if err := h.repo.UpdateUserMetadata(ctx, user.ID, *req.Metadata); err != nil {
			return handleError(c, err)
		}
		user.Metadata = *req.Metadata
	}

	return c.JSON(http.StatusOK, newUserResponse(user))
}

// ChangePasswordRequest is the request body for changing the password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword sets a new password after checking the current one.
func (h *Handlers) ChangePassword(c echo.Context) error {
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	ctx := c.Request().Context()
	user := auth.GetUser(ctx)

	if err := h.auth.ChangePassword(ctx, user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": i18n.T(ctx, "msg_password_changed"),
	})
}
