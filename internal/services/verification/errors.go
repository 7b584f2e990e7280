// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidToken    = errors.New("invalid verification token")
	ErrTokenExpired    = errors.New("verification token has expired")
	ErrNoPendingChange = errors.New("no pending email change")
	ErrEmailRequired   = errors.New("email is required")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrSameEmail       = errors.New("new email matches the current email")
	ErrEmailInUse      = errors.New("email already in use")
	ErrAlreadyVerified = errors.New("email already verified")
	ErrRateLimited     = errors.New("verification email rate limited")
	ErrSendFailed      = errors.New("failed to send verification email")
)

// RateLimitedError reports how long a user has to wait before the next
// verification mail. It matches ErrRateLimited with errors.Is.
type RateLimitedError struct {
	SecondsRemaining int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry in %d seconds", ErrRateLimited, e.SecondsRemaining)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// Wait splits the remaining time into minutes and seconds.
func (e *RateLimitedError) Wait() (minutes, seconds int) {
	return e.SecondsRemaining / 60, e.SecondsRemaining % 60
}
