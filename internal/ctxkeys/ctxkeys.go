// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ctxkeys defines typed context keys used across packages.
package ctxkeys

// User is the context key for the authenticated user.
type User struct{}

// SessionToken is the context key for the encoded session the request was
// authenticated with.
type SessionToken struct{}
