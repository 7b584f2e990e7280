// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// TokenType distinguishes what a verification token proves.
type TokenType string

const (
	// TokenTypeVerify proves control of the account's current email.
	TokenTypeVerify TokenType = "verify"
	// TokenTypeChange proves control of a requested new email.
	TokenTypeChange TokenType = "change"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	return t == TokenTypeVerify || t == TokenTypeChange
}

// VerificationToken is a one-time token mailed to a user. At most one token
// per (UserID, Type) exists at any time.
type VerificationToken struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Token     string    `db:"token" json:"-"`
	Type      TokenType `db:"token_type" json:"token_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

// ExpiredAt reports whether the token is expired at now.
func (t *VerificationToken) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
