package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sebasr/reset-mailer/internal/models"
)

// MemoryResetTokenRepository keeps reset tokens in process memory.
// It is used when no DATABASE_URL is configured; tokens do not survive a restart.
type MemoryResetTokenRepository struct {
	mu     sync.RWMutex
	byHash map[string]*models.PasswordResetToken
	now    func() time.Time
}

// NewMemoryResetTokenRepository creates an empty in-memory store
func NewMemoryResetTokenRepository() *MemoryResetTokenRepository {
	return &MemoryResetTokenRepository{
		byHash: make(map[string]*models.PasswordResetToken),
		now:    time.Now,
	}
}

// Create stores a new reset token
func (r *MemoryResetTokenRepository) Create(_ context.Context, token *models.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *token
	r.byHash[token.TokenHash] = &stored
	return nil
}

// GetByHash retrieves a usable reset token by its hash
func (r *MemoryResetTokenRepository) GetByHash(_ context.Context, hash string) (*models.PasswordResetToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.byHash[hash]
	if !ok {
		return nil, ErrResetTokenNotFound
	}
	if token.IsUsed() {
		return nil, ErrResetTokenUsed
	}
	if token.IsExpiredAt(r.now()) {
		return nil, ErrResetTokenNotFound
	}

	found := *token
	return &found, nil
}

// MarkUsed consumes a reset token by its ID
func (r *MemoryResetTokenRepository) MarkUsed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range r.byHash {
		if token.ID == id && !token.IsUsed() {
			now := r.now()
			token.UsedAt = &now
			return nil
		}
	}
	return ErrResetTokenNotFound
}

// InvalidateForEmail consumes every outstanding token for an email
func (r *MemoryResetTokenRepository) InvalidateForEmail(_ context.Context, email string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var count int64
	for _, token := range r.byHash {
		if token.Email == email && token.IsValidAt(now) {
			usedAt := now
			token.UsedAt = &usedAt
			count++
		}
	}
	return count, nil
}

// DeleteExpired removes all expired tokens and returns the count
func (r *MemoryResetTokenRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var count int64
	for hash, token := range r.byHash {
		if token.ExpiresAt.Before(now) {
			delete(r.byHash, hash)
			count++
		}
	}
	return count, nil
}

var _ ResetTokenRepository = (*MemoryResetTokenRepository)(nil)
