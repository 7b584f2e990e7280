// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kaminskia1/excel-autograder/internal/auth"
	"github.com/kaminskia1/excel-autograder/internal/i18n"
	"github.com/kaminskia1/excel-autograder/internal/models"
	"github.com/kaminskia1/excel-autograder/internal/repository"
	"github.com/kaminskia1/excel-autograder/internal/services/session"
	"github.com/labstack/echo/v4"
)

const tokenPrefix = "Token "

// UserLoader is an interface for loading full user data
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// LoadUser creates middleware that loads the session user into the request
// context. The session comes from an "Authorization: Token" header or, when
// absent, from the session cookie. Sessions issued before the user's last
// logout are ignored.
func LoadUser(sessions *session.Manager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			data, token := readSession(c.Request(), sessions)
			if data == nil {
				return next(c)
			}

			ctx := c.Request().Context()
			user, err := users.GetUserByID(ctx, data.UserID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					slog.Error("load_user_failed", "user_id", data.UserID, "error", err)
				}
				return next(c)
			}

			if data.Version != user.SessionVersion {
				slog.Debug("session_revoked", "user_id", user.ID)
				return next(c)
			}

			ctx = auth.SetSessionToken(auth.SetUser(ctx, user), token)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// readSession returns the decoded session and its encoded value.
func readSession(r *http.Request, sessions *session.Manager) (*session.Data, string) {
	if header := r.Header.Get(echo.HeaderAuthorization); strings.HasPrefix(header, tokenPrefix) {
		token := strings.TrimPrefix(header, tokenPrefix)
		data, _ := sessions.Decode(token)
		return data, token
	}

	cookie, err := r.Cookie(sessions.CookieName())
	if err != nil {
		return nil, ""
	}
	data, _ := sessions.Decode(cookie.Value)
	return data, cookie.Value
}

// RequireAuth rejects requests without an authenticated user.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if !auth.IsAuthenticated(ctx) {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": i18n.T(ctx, "error_unauthorized"),
			})
		}
		return next(c)
	}
}

// Locale detects the user's preferred language from the Accept-Language
// header and sets it in the request context.
func Locale() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lang := i18n.MatchLanguage(c.Request().Header.Get("Accept-Language"))
			ctx := i18n.WithLocale(c.Request().Context(), lang)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
