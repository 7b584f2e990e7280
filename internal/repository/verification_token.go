// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/kaminskia1/excel-autograder/internal/models"
	"github.com/vinovest/sqlx"
)

// ReplaceVerificationToken deletes every token of the same user and type and
// inserts token, in one transaction. token.ID is filled in.
func (r *Repository) ReplaceVerificationToken(ctx context.Context, token *models.VerificationToken) error {
	return r.InTx(ctx, func(tx *Repository) error {
		if err := tx.DeleteUserVerificationTokens(ctx, token.UserID, token.Type); err != nil {
			return err
		}

		res, err := tx.q.ExecContext(ctx,
			`INSERT INTO verification_tokens (user_id, token, token_type, created_at, expires_at)
			 VALUES (?, ?, ?, ?, ?)`,
			token.UserID, token.Token, token.Type, token.CreatedAt.UTC(), token.ExpiresAt.UTC())
		if err != nil {
			return wrapError(err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		token.ID = id
		return nil
	})
}

// GetVerificationToken retrieves a token by its value.
func (r *Repository) GetVerificationToken(ctx context.Context, value string) (*models.VerificationToken, error) {
	var token models.VerificationToken
	err := sqlx.GetContext(ctx, r.q, &token, `SELECT * FROM verification_tokens WHERE token = ?`, value)
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// ListUserVerificationTokens returns all tokens of a user, oldest first.
func (r *Repository) ListUserVerificationTokens(ctx context.Context, userID int64) ([]models.VerificationToken, error) {
	var tokens []models.VerificationToken
	err := sqlx.SelectContext(ctx, r.q, &tokens,
		`SELECT * FROM verification_tokens WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteVerificationToken deletes a token by its value.
func (r *Repository) DeleteVerificationToken(ctx context.Context, value string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM verification_tokens WHERE token = ?`, value)
	return err
}

// DeleteUserVerificationTokens deletes all tokens of the given type for a user.
func (r *Repository) DeleteUserVerificationTokens(ctx context.Context, userID int64, tokenType models.TokenType) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE user_id = ? AND token_type = ?`,
		userID, tokenType)
	return err
}

// DeleteExpiredVerificationTokens deletes tokens that expired before now and
// returns how many were removed.
func (r *Repository) DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM verification_tokens WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
