package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sebasr/reset-mailer/internal/models"
)

// MockResetTokenRepository is a mock implementation of ResetTokenRepository for testing
type MockResetTokenRepository struct {
	CreateFunc             func(ctx context.Context, token *models.PasswordResetToken) error
	GetByHashFunc          func(ctx context.Context, hash string) (*models.PasswordResetToken, error)
	MarkUsedFunc           func(ctx context.Context, id uuid.UUID) error
	InvalidateForEmailFunc func(ctx context.Context, email string) (int64, error)
	DeleteExpiredFunc      func(ctx context.Context) (int64, error)
}

// NewMockResetTokenRepository creates a new mock reset token repository
func NewMockResetTokenRepository() *MockResetTokenRepository {
	return &MockResetTokenRepository{
		CreateFunc: func(_ context.Context, _ *models.PasswordResetToken) error {
			return nil
		},
		GetByHashFunc: func(_ context.Context, _ string) (*models.PasswordResetToken, error) {
			return nil, ErrResetTokenNotFound
		},
		MarkUsedFunc: func(_ context.Context, _ uuid.UUID) error {
			return nil
		},
		InvalidateForEmailFunc: func(_ context.Context, _ string) (int64, error) {
			return 0, nil
		},
		DeleteExpiredFunc: func(_ context.Context) (int64, error) {
			return 0, nil
		},
	}
}

// Create implements ResetTokenRepository.Create
func (m *MockResetTokenRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	return m.CreateFunc(ctx, token)
}

// GetByHash implements ResetTokenRepository.GetByHash
func (m *MockResetTokenRepository) GetByHash(ctx context.Context, hash string) (*models.PasswordResetToken, error) {
	return m.GetByHashFunc(ctx, hash)
}

// MarkUsed implements ResetTokenRepository.MarkUsed
func (m *MockResetTokenRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	return m.MarkUsedFunc(ctx, id)
}

// InvalidateForEmail implements ResetTokenRepository.InvalidateForEmail
func (m *MockResetTokenRepository) InvalidateForEmail(ctx context.Context, email string) (int64, error) {
	return m.InvalidateForEmailFunc(ctx, email)
}

// DeleteExpired implements ResetTokenRepository.DeleteExpired
func (m *MockResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	return m.DeleteExpiredFunc(ctx)
}

var _ ResetTokenRepository = (*MockResetTokenRepository)(nil)
