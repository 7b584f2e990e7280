// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"
)

// User is an account of the autograder.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                        int64      `db:"id" json:"-"`
	UUID                      string     `db:"uuid" json:"uuid"`
	Username                  string     `db:"username" json:"username"`
	Email                     string     `db:"email" json:"email"`
	PendingEmail              *string    `db:"pending_email" json:"pending_email"`
	EmailVerified             bool       `db:"email_verified" json:"email_verified"`
	LastVerificationEmailSent *time.Time `db:"last_verification_email_sent" json:"-"`
	PasswordHash              string     `db:"password_hash" json:"-"`
	SessionVersion            int64      `db:"session_version" json:"-"`
	Metadata                  Document   `db:"metadata" json:"metadata"`
	CreatedAt                 time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time  `db:"updated_at" json:"updated_at"`
}

// HasPendingEmail reports whether an email change is in flight.
func (u *User) HasPendingEmail() bool {
	return u.PendingEmail != nil && *u.PendingEmail != ""
}

// PendingEmailValue returns the pending email or "".
func (u *User) PendingEmailValue() string {
	if u.PendingEmail == nil {
		return ""
	}
	return *u.PendingEmail
}

// HasEmail reports whether email equals the current address, ignoring case.
func (u *User) HasEmail(email string) bool {
	return strings.EqualFold(u.Email, email)
}
