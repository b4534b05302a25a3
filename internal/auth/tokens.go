// Package auth generates and hashes password reset tokens.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// ResetTokenLength is the number of random bytes in a reset token (256 bits).
const ResetTokenLength = 32

var (
	// ErrNoToken is returned when no token is provided
	ErrNoToken = errors.New("no token provided")
	// ErrTokenGeneration is returned when the random source fails
	ErrTokenGeneration = errors.New("failed to generate token")
)

// HashToken returns the hex-encoded SHA256 of token. Only the hash is stored.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// GenerateSecureToken returns a URL-safe reset token of ResetTokenLength
// random bytes. The result needs no escaping inside a reset link.
func GenerateSecureToken() (string, error) {
	return GenerateSecureTokenWithLength(ResetTokenLength)
}

// GenerateSecureTokenWithLength is GenerateSecureToken with a custom byte length.
func GenerateSecureTokenWithLength(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: length must be positive", ErrTokenGeneration)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewResetToken generates a token and its storage hash in one step.
func NewResetToken() (token, hash string, err error) {
	token, err = GenerateSecureToken()
	if err != nil {
		return "", "", err
	}
	return token, HashToken(token), nil
}
