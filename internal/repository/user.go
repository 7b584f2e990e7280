// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kaminskia1/excel-autograder/internal/models"
	"github.com/vinovest/sqlx"
)

const userColumns = `id, uuid, username, email, pending_email, email_verified,
	last_verification_email_sent, password_hash, session_version, metadata, created_at, updated_at`

// CreateUser inserts a new user and fills in its ID and UUID.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.UUID == "" {
		user.UUID = uuid.NewString()
	}
	if user.Metadata == nil {
		user.Metadata = models.Document{}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.q.ExecContext(ctx,
		`INSERT INTO users (uuid, username, email, password_hash, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.UUID, user.Username, user.Email, user.PasswordHash, user.Metadata, now, now)
	if err != nil {
		return wrapError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

func (r *Repository) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.q, &user, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, "username = ?", username)
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email = ? COLLATE NOCASE", email)
}

// UsernameExists checks if a user with the given username exists.
func (r *Repository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username)
	return exists, err
}

// EmailInUse reports whether any user other than excludeID owns email,
// ignoring case. Pass 0 to check against all users.
func (r *Repository) EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? COLLATE NOCASE AND id != ?)`,
		email, excludeID)
	return exists, err
}

// MarkEmailVerified sets email_verified for a user.
func (r *Repository) MarkEmailVerified(ctx context.Context, userID int64) error {
	return r.updateUser(ctx, userID, `email_verified = 1`)
}

// ApplyEmailChange moves the pending email into place and marks it verified.
func (r *Repository) ApplyEmailChange(ctx context.Context, userID int64, email string) error {
	return r.updateUser(ctx, userID,
		`email = ?, pending_email = NULL, email_verified = 1`, email)
}

// SetPendingEmail sets or clears (nil) the pending email of a user.
func (r *Repository) SetPendingEmail(ctx context.Context, userID int64, email *string) error {
	return r.updateUser(ctx, userID, `pending_email = ?`, email)
}

// SetLastVerificationEmailSent records when a verification mail went out.
func (r *Repository) SetLastVerificationEmailSent(ctx context.Context, userID int64, at time.Time) error {
	return r.updateUser(ctx, userID, `last_verification_email_sent = ?`, at.UTC())
}

// UpdateUserMetadata replaces the metadata document of a user.
func (r *Repository) UpdateUserMetadata(ctx context.Context, userID int64, metadata models.Document) error {
	return r.updateUser(ctx, userID, `metadata = ?`, metadata)
}

// UpdateUserPassword updates a user's password hash.
func (r *Repository) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	return r.updateUser(ctx, userID, `password_hash = ?`, passwordHash)
}

// RevokeSessions invalidates every session issued to the user so far.
func (r *Repository) RevokeSessions(ctx context.Context, userID int64) error {
	return r.updateUser(ctx, userID, `session_version = session_version + 1`)
}

// DeleteUser deletes a user. Tokens are removed by the foreign key cascade.
func (r *Repository) DeleteUser(ctx context.Context, userID int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *Repository) updateUser(ctx context.Context, userID int64, set string, args ...any) error {
	args = append(args, time.Now().UTC(), userID)
	res, err := r.q.ExecContext(ctx, `UPDATE users SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return wrapError(err)
	}
	return requireAffected(res)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireAffected(res rowsAffecter) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
