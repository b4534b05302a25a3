package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sebasr/reset-mailer/internal/models"
)

// PostgresResetTokenRepository implements ResetTokenRepository using PostgreSQL
type PostgresResetTokenRepository struct {
	db *sql.DB
}

// NewPostgresResetTokenRepository creates a new PostgreSQL reset token repository
func NewPostgresResetTokenRepository(db *sql.DB) *PostgresResetTokenRepository {
	return &PostgresResetTokenRepository{db: db}
}

// Create stores a new reset token
func (r *PostgresResetTokenRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (
			id, email, token_hash, expires_at, created_at,
			used_at, request_ip, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		token.ID,
		token.Email,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
		token.UsedAt,
		token.RequestIP,
		token.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reset token: %w", err)
	}

	return nil
}

// GetByHash retrieves a usable reset token by its hash
func (r *PostgresResetTokenRepository) GetByHash(ctx context.Context, hash string) (*models.PasswordResetToken, error) {
	query := `
		SELECT
			id, email, token_hash, expires_at, created_at,
			used_at, request_ip, user_agent
		FROM password_reset_tokens
		WHERE token_hash = $1
	`

	var token models.PasswordResetToken
	var usedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&token.ID,
		&token.Email,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
		&usedAt,
		&token.RequestIP,
		&token.UserAgent,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResetTokenNotFound
		}
		return nil, err
	}

	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
	}

	if token.IsUsed() {
		return nil, ErrResetTokenUsed
	}
	if token.IsExpired() {
		return nil, ErrResetTokenNotFound
	}

	return &token, nil
}

// MarkUsed consumes a reset token by its ID
func (r *PostgresResetTokenRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE password_reset_tokens
		SET used_at = NOW()
		WHERE id = $1 AND used_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrResetTokenNotFound
	}

	return nil
}

// InvalidateForEmail consumes every outstanding token for an email
func (r *PostgresResetTokenRepository) InvalidateForEmail(ctx context.Context, email string) (int64, error) {
	query := `
		UPDATE password_reset_tokens
		SET used_at = NOW()
		WHERE email = $1 AND used_at IS NULL AND expires_at > NOW()
	`

	result, err := r.db.ExecContext(ctx, query, email)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteExpired removes all expired tokens and returns the count
func (r *PostgresResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM password_reset_tokens
		WHERE expires_at < NOW()
	`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

var _ ResetTokenRepository = (*PostgresResetTokenRepository)(nil)
