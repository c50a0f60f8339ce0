package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/memories-social/apiserver/types"
)

// ResetTokenRepository handles persistence for password reset tokens.
type ResetTokenRepository struct {
	db *sql.DB
}

func NewResetTokenRepository(db *sql.DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

func (r *ResetTokenRepository) GetByHash(ctx context.Context, tokenHash string) (types.PasswordResetToken, error) {
	const query = `
		SELECT id, user_id, token_hash, created_at, expires_at
		FROM password_reset_tokens
		WHERE token_hash = $1`
	var token types.PasswordResetToken
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.PasswordResetToken{}, ErrNotFound
		}
		return types.PasswordResetToken{}, err
	}
	return token, nil
}

func (r *ResetTokenRepository) Create(ctx context.Context, token types.PasswordResetToken) (types.PasswordResetToken, error) {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO password_reset_tokens (user_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		token.UserID,
		token.TokenHash,
		token.CreatedAt,
		token.ExpiresAt,
	).Scan(&token.ID); err != nil {
		return types.PasswordResetToken{}, err
	}
	return token, nil
}

// DeleteByUser removes any token issued to the user. Missing rows are not
// an error: issuing a fresh token always clears prior ones first.
func (r *ResetTokenRepository) DeleteByUser(ctx context.Context, userID int) error {
	const query = `DELETE FROM password_reset_tokens WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *ResetTokenRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM password_reset_tokens WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
