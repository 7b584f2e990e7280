// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit gates how often verification mails go out to one user.
package ratelimit

import (
	"context"
	"time"

	"github.com/kaminskia1/excel-autograder/internal/clock"
	"github.com/kaminskia1/excel-autograder/internal/models"
)

// DefaultCooldown is the wait between two verification mails.
const DefaultCooldown = 15 * time.Minute

// Policy is a single-timestamp cooldown. Only the most recent send counts.
type Policy struct {
	Cooldown time.Duration
	Clock    clock.Clock
}

// NewPolicy creates a Policy. A nil clock uses the system clock.
func NewPolicy(cooldown time.Duration, clk clock.Clock) *Policy {
	if clk == nil {
		clk = clock.System{}
	}
	return &Policy{Cooldown: cooldown, Clock: clk}
}

// CanSend reports whether a mail may be sent given the time of the previous
// one. When it may not, the second value holds the whole seconds left,
// rounded up.
func (p *Policy) CanSend(lastSent *time.Time) (bool, int) {
	if lastSent == nil || p.Cooldown <= 0 {
		return true, 0
	}

	elapsed := p.Clock.Now().Sub(*lastSent)
	if elapsed >= p.Cooldown {
		return true, 0
	}

	// A timestamp in the future never waits longer than one cooldown.
	remaining := min(p.Cooldown-elapsed, p.Cooldown)
	return false, int((remaining + time.Second - 1) / time.Second)
}

// Tracker stores when the last verification mail went out to a user.
type Tracker interface {
	LastSent(ctx context.Context, user *models.User) (*time.Time, error)
	MarkSent(ctx context.Context, user *models.User, at time.Time) error
}

// SentStore persists the last-sent timestamp on the user row.
type SentStore interface {
	SetLastVerificationEmailSent(ctx context.Context, userID int64, at time.Time) error
}

// UserTracker keeps the timestamp in the user's
// last_verification_email_sent column.
type UserTracker struct {
	store SentStore
}

// NewUserTracker creates a tracker backed by the user table.
func NewUserTracker(store SentStore) *UserTracker {
	return &UserTracker{store: store}
}

// LastSent returns the timestamp already loaded with the user.
func (t *UserTracker) LastSent(_ context.Context, user *models.User) (*time.Time, error) {
	return user.LastVerificationEmailSent, nil
}

// MarkSent persists at and updates user in place.
func (t *UserTracker) MarkSent(ctx context.Context, user *models.User, at time.Time) error {
	at = at.UTC()
	if err := t.store.SetLastVerificationEmailSent(ctx, user.ID, at); err != nil {
		return err
	}
	user.LastVerificationEmailSent = &at
	return nil
}
