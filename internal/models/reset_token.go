package models

import (
	"time"

	"github.com/google/uuid"
)

// PasswordResetToken is a stored password reset request.
// Only the SHA256 hash of the token is persisted.
type PasswordResetToken struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	TokenHash string     `json:"-" db:"token_hash"` // Never expose in JSON
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UsedAt    *time.Time `json:"usedAt,omitempty" db:"used_at"`
	RequestIP string     `json:"requestIp,omitempty" db:"request_ip"`
	UserAgent string     `json:"userAgent,omitempty" db:"user_agent"`
}

// IsValidAt checks if the token is unused and not expired at now
func (t *PasswordResetToken) IsValidAt(now time.Time) bool {
	return !t.IsUsed() && !t.IsExpiredAt(now)
}

// IsExpired checks if the token has expired
func (t *PasswordResetToken) IsExpired() bool {
	return t.IsExpiredAt(time.Now())
}

// IsExpiredAt checks if the token had expired by now
func (t *PasswordResetToken) IsExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsUsed checks if the token has already been consumed
func (t *PasswordResetToken) IsUsed() bool {
	return t.UsedAt != nil
}

// ForgotPasswordRequest is the body of a forgot-password call
type ForgotPasswordRequest struct {
	Email      string `json:"email" binding:"required,email"`
	PersonName string `json:"personName" binding:"omitempty,max=100"`
}

// ForgotPasswordResponse is returned for every accepted forgot-password call.
// ResetLink is only filled outside production when no email went out.
type ForgotPasswordResponse struct {
	Message         string `json:"message"`
	DevelopmentMode bool   `json:"developmentMode,omitempty"`
	ResetLink       string `json:"resetLink,omitempty"`
}

// ConsumeResetTokenRequest redeems a reset token. The token travels in the
// body so it never shows up in access logs.
type ConsumeResetTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// ConsumeResetTokenResponse names the account a redeemed token belongs to
type ConsumeResetTokenResponse struct {
	Email      string    `json:"email"`
	ConsumedAt time.Time `json:"consumedAt"`
}

// ValidateResetTokenResponse reports a token that can still be used
type ValidateResetTokenResponse struct {
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expiresAt"`
}
