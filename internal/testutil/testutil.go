// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kaminskia1/excel-autograder/internal/database"
	"github.com/kaminskia1/excel-autograder/internal/models"
	"github.com/kaminskia1/excel-autograder/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// TestPasswordHash is stored for fixture users. It matches no password.
const TestPasswordHash = "!"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates a test user with the address <username>@example.com.
func NewTestUser(t *testing.T, repo *repository.Repository, username string) *models.User {
	t.Helper()
	ctx := context.Background()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: TestPasswordHash,
	}
	require.NoError(t, repo.CreateUser(ctx, user))
	return user
}

// NewTestToken stores a verification token with a fixed value.
func NewTestToken(t *testing.T, repo *repository.Repository, userID int64, tokenType models.TokenType, value string, expiresAt time.Time) *models.VerificationToken {
	t.Helper()
	token := &models.VerificationToken{
		UserID:    userID,
		Token:     value,
		Type:      tokenType,
		CreatedAt: expiresAt.Add(-time.Hour),
		ExpiresAt: expiresAt,
	}
	require.NoError(t, repo.ReplaceVerificationToken(context.Background(), token))
	return token
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
