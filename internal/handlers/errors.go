// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kaminskia1/excel-autograder/internal/i18n"
	"github.com/kaminskia1/excel-autograder/internal/services/auth"
	"github.com/kaminskia1/excel-autograder/internal/services/verification"
	"github.com/labstack/echo/v4"
)

type errorMapping struct {
	err       error
	status    int
	messageID string
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{verification.ErrSendFailed, http.StatusInternalServerError, "error_send_failed"},
	{verification.ErrInvalidToken, http.StatusBadRequest, "error_invalid_token"},
	{verification.ErrTokenExpired, http.StatusBadRequest, "error_token_expired"},
	{verification.ErrNoPendingChange, http.StatusBadRequest, "error_no_pending_change"},
	{verification.ErrEmailRequired, http.StatusBadRequest, "error_email_required"},
	{verification.ErrInvalidEmail, http.StatusBadRequest, "error_invalid_email"},
	{verification.ErrSameEmail, http.StatusBadRequest, "error_same_email"},
	{verification.ErrEmailInUse, http.StatusBadRequest, "error_email_in_use"},
	{verification.ErrAlreadyVerified, http.StatusBadRequest, "error_already_verified"},
	{auth.ErrUsernameRequired, http.StatusBadRequest, "error_username_required"},
	{auth.ErrUsernameTaken, http.StatusBadRequest, "error_username_taken"},
	{auth.ErrPasswordRequired, http.StatusBadRequest, "error_password_required"},
	{auth.ErrPasswordTooShort, http.StatusBadRequest, "error_password_too_short"},
	{auth.ErrInvalidCredentials, http.StatusBadRequest, "error_invalid_credentials"},
	{auth.ErrWrongPassword, http.StatusBadRequest, "error_wrong_password"},
}

// errorJSON writes a localized error body.
func errorJSON(c echo.Context, status int, messageID string) error {
	return c.JSON(status, map[string]string{
		"error": i18n.T(c.Request().Context(), messageID),
	})
}

// badRequest is returned for bodies that cannot be bound.
func badRequest(c echo.Context) error {
	return errorJSON(c, http.StatusBadRequest, "error_bad_request")
}

// handleError maps service errors to HTTP responses.
func handleError(c echo.Context, err error) error {
	ctx := c.Request().Context()

	var limited *verification.RateLimitedError
	if errors.As(err, &limited) {
		minutes, seconds := limited.Wait()
		return c.JSON(http.StatusTooManyRequests, map[string]any{
			"error": i18n.TData(ctx, "error_rate_limited", map[string]any{
				"Minutes": minutes,
				"Seconds": seconds,
			}),
			"seconds_remaining": limited.SecondsRemaining,
		})
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				slog.Error("request_failed", "path", c.Path(), "error", err)
			}
			return errorJSON(c, m.status, m.messageID)
		}
	}

	slog.Error("request_failed", "path", c.Path(), "error", err)
	return errorJSON(c, http.StatusInternalServerError, "error_internal")
}
