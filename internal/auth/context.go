// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"github.com/kaminskia1/excel-autograder/internal/ctxkeys"
	"github.com/kaminskia1/excel-autograder/internal/models"
)

// SetUser stores the authenticated user in the context.
func SetUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxkeys.User{}, user)
}

// GetUser returns the authenticated user from the context, or nil if not authenticated.
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(ctxkeys.User{}).(*models.User); ok {
		return user
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUser(ctx) != nil
}

// SetSessionToken stores the encoded session the request carried.
func SetSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxkeys.SessionToken{}, token)
}

// GetSessionToken returns the encoded session of the request, or "".
func GetSessionToken(ctx context.Context) string {
	token, _ := ctx.Value(ctxkeys.SessionToken{}).(string)
	return token
}
