// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package verification manages email verification and email change tokens.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaminskia1/excel-autograder/internal/clock"
	"github.com/kaminskia1/excel-autograder/internal/models"
	"github.com/kaminskia1/excel-autograder/internal/repository"
	"github.com/kaminskia1/excel-autograder/internal/services/ratelimit"
)

const (
	// DefaultExpiry is how long a token stays valid.
	DefaultExpiry = 7 * 24 * time.Hour

	maxTokenAttempts = 3
)

// Sender delivers the mail for a freshly issued token.
type Sender interface {
	SendVerification(ctx context.Context, user *models.User, token *models.VerificationToken) error
}

// Result describes a successful verification.
type Result struct {
	User *models.User
	Type models.TokenType
}

// MessageID returns the translation key of the success message.
func (r *Result) MessageID() string {
	if r.Type == models.TokenTypeChange {
		return "msg_email_changed"
	}
	return "msg_email_verified"
}

// Manager issues, redeems and expires verification tokens.
type Manager struct {
	repo     *repository.Repository
	sender   Sender
	clock    clock.Clock
	tracker  ratelimit.Tracker
	policy   *ratelimit.Policy
	expiry   time.Duration
	cooldown time.Duration
	generate func() (string, error)
	locks    userLocks
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithExpiry sets the token lifetime.
func WithExpiry(d time.Duration) Option {
	return func(m *Manager) {
		m.expiry = d
	}
}

// WithCooldown sets the minimum time between two verification mails.
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) {
		m.cooldown = d
	}
}

// WithTracker replaces the default user-row tracker.
func WithTracker(t ratelimit.Tracker) Option {
	return func(m *Manager) {
		m.tracker = t
	}
}

// NewManager creates a Manager.
func NewManager(repo *repository.Repository, sender Sender, opts ...Option) *Manager {
	m := &Manager{
		repo:     repo,
		sender:   sender,
		clock:    clock.System{},
		expiry:   DefaultExpiry,
		cooldown: ratelimit.DefaultCooldown,
		generate: generateToken,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.tracker == nil {
		m.tracker = ratelimit.NewUserTracker(repo)
	}
	m.policy = ratelimit.NewPolicy(m.cooldown, m.clock)

	return m
}

// CreateToken issues a new token of tokenType for user, replacing any
// previous token of the same type.
func (m *Manager) CreateToken(ctx context.Context, user *models.User, tokenType models.TokenType) (*models.VerificationToken, error) {
	return m.createToken(ctx, m.repo, user, tokenType)
}

func (m *Manager) createToken(ctx context.Context, repo *repository.Repository, user *models.User, tokenType models.TokenType) (*models.VerificationToken, error) {
	if !tokenType.Valid() {
		return nil, fmt.Errorf("unknown token type %q", tokenType)
	}

	now := m.clock.Now()
	var lastErr error
	for range maxTokenAttempts {
		value, err := m.generate()
		if err != nil {
			return nil, err
		}

		token := &models.VerificationToken{
			UserID:    user.ID,
			Token:     value,
			Type:      tokenType,
			CreatedAt: now,
			ExpiresAt: now.Add(m.expiry),
		}

		err = repo.ReplaceVerificationToken(ctx, token)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("storing verification token: %w", err)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("storing verification token: %w", lastErr)
}

// IsExpired reports whether token is past its expiry.
func (m *Manager) IsExpired(token *models.VerificationToken) bool {
	return token.ExpiredAt(m.clock.Now())
}

// CleanupExpired deletes all expired tokens and returns how many were removed.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpiredVerificationTokens(ctx, m.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	if n > 0 {
		slog.Info("expired_tokens_deleted", "count", n)
	}
	return n, nil
}

// Verify redeems a token. Verify tokens mark the current email verified,
// change tokens move the pending email into place. An expired token is
// deleted before ErrTokenExpired is returned. A change token whose user has
// no pending email is kept and ErrNoPendingChange is returned.
func (m *Manager) Verify(ctx context.Context, value string) (*Result, error) {
	if value == "" {
		return nil, ErrInvalidToken
	}

	var (
		result  *Result
		outcome error
	)

	err := m.repo.InTx(ctx, func(tx *repository.Repository) error {
		token, err := tx.GetVerificationToken(ctx, value)
		if errors.Is(err, repository.ErrNotFound) {
			outcome = ErrInvalidToken
			return nil
		}
		if err != nil {
			return err
		}

		// The delete commits, the caller still sees the failure.
		if m.IsExpired(token) {
			if err := tx.DeleteVerificationToken(ctx, value); err != nil {
				return err
			}
			outcome = ErrTokenExpired
			return nil
		}

		user, err := tx.GetUserByID(ctx, token.UserID)
		if err != nil {
			return err
		}

		switch token.Type {
		case models.TokenTypeVerify:
			if err := tx.MarkEmailVerified(ctx, user.ID); err != nil {
				return err
			}
			user.EmailVerified = true
		case models.TokenTypeChange:
			if !user.HasPendingEmail() {
				outcome = ErrNoPendingChange
				return nil
			}
			newEmail := user.PendingEmailValue()
			if err := tx.ApplyEmailChange(ctx, user.ID, newEmail); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return ErrEmailInUse
				}
				return err
			}
			user.Email = newEmail
			user.PendingEmail = nil
			user.EmailVerified = true
		default:
			return fmt.Errorf("unknown token type %q", token.Type)
		}

		if err := tx.DeleteVerificationToken(ctx, value); err != nil {
			return err
		}

		result = &Result{User: user, Type: token.Type}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return nil, outcome
	}

	slog.Info("email_verified", "user_id", result.User.ID, "token_type", result.Type)
	return result, nil
}

// SendInitial issues a verify token for a newly registered user and mails
// it. It skips the cooldown check.
func (m *Manager) SendInitial(ctx context.Context, user *models.User) error {
	token, err := m.CreateToken(ctx, user, models.TokenTypeVerify)
	if err != nil {
		return err
	}
	return m.deliver(ctx, user, token)
}

// Resend issues a new token and mails it. Users with a pending email change
// get a change token for the new address, everyone else a verify token. When
// sending fails the new token stays valid. Concurrent calls for the same user
// are serialized so only one of them passes the cooldown.
func (m *Manager) Resend(ctx context.Context, user *models.User) error {
	if user.EmailVerified && !user.HasPendingEmail() {
		return ErrAlreadyVerified
	}

	unlock := m.locks.lock(user.ID)
	defer unlock()

	if err := m.checkRateLimit(ctx, user); err != nil {
		return err
	}

	tokenType := models.TokenTypeVerify
	if user.HasPendingEmail() {
		tokenType = models.TokenTypeChange
	}

	token, err := m.CreateToken(ctx, user, tokenType)
	if err != nil {
		return err
	}
	return m.deliver(ctx, user, token)
}

// RequestEmailChange stores newEmail as pending and mails a change token to
// it. When sending fails the pending email is cleared again.
func (m *Manager) RequestEmailChange(ctx context.Context, user *models.User, newEmail string) error {
	email, err := NormalizeEmail(newEmail)
	if err != nil {
		return err
	}

	if user.HasEmail(email) {
		return ErrSameEmail
	}

	inUse, err := m.repo.EmailInUse(ctx, email, user.ID)
	if err != nil {
		return err
	}
	if inUse {
		return ErrEmailInUse
	}

	unlock := m.locks.lock(user.ID)
	defer unlock()

	if err := m.checkRateLimit(ctx, user); err != nil {
		return err
	}

	var token *models.VerificationToken
	err = m.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.SetPendingEmail(ctx, user.ID, &email); err != nil {
			return err
		}
		token, err = m.createToken(ctx, tx, user, models.TokenTypeChange)
		return err
	})
	if err != nil {
		return err
	}
	user.PendingEmail = &email

	if err := m.deliver(ctx, user, token); err != nil {
		if errors.Is(err, ErrSendFailed) {
			if rbErr := m.repo.SetPendingEmail(ctx, user.ID, nil); rbErr != nil {
				return errors.Join(err, fmt.Errorf("clearing pending email: %w", rbErr))
			}
			user.PendingEmail = nil
		}
		return err
	}

	slog.Info("email_change_requested", "user_id", user.ID)
	return nil
}

// CancelEmailChange clears the pending email and deletes its change tokens.
func (m *Manager) CancelEmailChange(ctx context.Context, user *models.User) error {
	if !user.HasPendingEmail() {
		return ErrNoPendingChange
	}

	err := m.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := tx.SetPendingEmail(ctx, user.ID, nil); err != nil {
			return err
		}
		return tx.DeleteUserVerificationTokens(ctx, user.ID, models.TokenTypeChange)
	})
	if err != nil {
		return err
	}

	user.PendingEmail = nil
	slog.Info("email_change_cancelled", "user_id", user.ID)
	return nil
}

// CanSend reports whether user may receive another verification mail now,
// and if not, how many seconds remain.
func (m *Manager) CanSend(ctx context.Context, user *models.User) (bool, int, error) {
	last, err := m.tracker.LastSent(ctx, user)
	if err != nil {
		return false, 0, err
	}
	ok, remaining := m.policy.CanSend(last)
	return ok, remaining, nil
}

// checkRateLimit reloads the last send time of user before applying the
// cooldown, as user may have been loaded before a concurrent send. Callers
// hold the user's lock until the send is recorded.
func (m *Manager) checkRateLimit(ctx context.Context, user *models.User) error {
	stored, err := m.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}
	user.LastVerificationEmailSent = stored.LastVerificationEmailSent

	ok, remaining, err := m.CanSend(ctx, user)
	if err != nil {
		return err
	}
	if !ok {
		return &RateLimitedError{SecondsRemaining: remaining}
	}
	return nil
}

// deliver sends the mail for token and records the send time on success.
func (m *Manager) deliver(ctx context.Context, user *models.User, token *models.VerificationToken) error {
	if err := m.sender.SendVerification(ctx, user, token); err != nil {
		slog.Error("email_send_failed", "user_id", user.ID, "token_type", token.Type, "error", err)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	if err := m.tracker.MarkSent(ctx, user, m.clock.Now()); err != nil {
		return fmt.Errorf("recording send time: %w", err)
	}

	slog.Info("verification_sent", "user_id", user.ID, "token_type", token.Type)
	return nil
}
