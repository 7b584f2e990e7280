// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/kaminskia1/excel-autograder/internal/auth"
	"github.com/kaminskia1/excel-autograder/internal/i18n"
	"github.com/labstack/echo/v4"
)

// VerifyEmail redeems a verification or email change token.
func (h *Handlers) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.verifier.Verify(ctx, c.Param("token"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":        i18n.T(ctx, result.MessageID()),
		"email":          result.User.Email,
		"email_verified": result.User.EmailVerified,
		"pending_email":  result.User.PendingEmail,
	})
}

// ResendVerification mails a fresh link for the current or pending email.
func (h *Handlers) ResendVerification(c echo.Context) error {
	ctx := c.Request().Context()
	user := auth.GetUser(ctx)

	if err := h.verifier.Resend(ctx, user); err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": i18n.T(ctx, "msg_verification_sent"),
	})
}

// ChangeEmailRequest is the request body for an email change.
type ChangeEmailRequest struct {
	NewEmail string `json:"new_email"`
}

// ChangeEmail starts an email change by mailing a link to the new address.
func (h *Handlers) ChangeEmail(c echo.Context) error {
	var req ChangeEmailRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}

	ctx := c.Request().Context()
	user := auth.GetUser(ctx)

	if err := h.verifier.RequestEmailChange(ctx, user, req.NewEmail); err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":       i18n.T(ctx, "msg_change_requested"),
		"pending_email": user.PendingEmail,
	})
}

// CancelEmailChange drops the pending email and its links.
func (h *Handlers) CancelEmailChange(c echo.Context) error {
	ctx := c.Request().Context()
	user := auth.GetUser(ctx)

	if err := h.verifier.CancelEmailChange(ctx, user); err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": i18n.T(ctx, "msg_change_cancelled"),
	})
}
