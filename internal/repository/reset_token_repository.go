package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sebasr/reset-mailer/internal/models"
)

var (
	// ErrResetTokenNotFound is returned when a reset token is unknown or expired
	ErrResetTokenNotFound = errors.New("reset token not found")

	// ErrResetTokenUsed is returned when a reset token was already consumed
	ErrResetTokenUsed = errors.New("reset token has already been used")
)

// ResetTokenRepository defines the interface for password reset token storage
type ResetTokenRepository interface {
	// Create stores a new reset token
	Create(ctx context.Context, token *models.PasswordResetToken) error

	// GetByHash retrieves a usable reset token by its hash
	GetByHash(ctx context.Context, hash string) (*models.PasswordResetToken, error)

	// MarkUsed consumes a reset token by its ID
	MarkUsed(ctx context.Context, id uuid.UUID) error

	// InvalidateForEmail consumes every outstanding token for an email and returns the count
	InvalidateForEmail(ctx context.Context, email string) (int64, error)

	// DeleteExpired removes all expired tokens and returns the count
	DeleteExpired(ctx context.Context) (int64, error)
}
