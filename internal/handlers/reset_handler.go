package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sebasr/reset-mailer/internal/auth"
	"github.com/sebasr/reset-mailer/internal/email"
	"github.com/sebasr/reset-mailer/internal/metrics"
	"github.com/sebasr/reset-mailer/internal/models"
	"github.com/sebasr/reset-mailer/internal/repository"
)

// forgotPasswordMessage is returned whether or not the address is known
const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

// Forgot-password request outcomes
const (
	requestAccepted = "accepted"
	requestInvalid  = "invalid"
	requestError    = "error"
)

// Mailer dispatches password reset emails.
type Mailer interface {
	Dispatch(ctx context.Context, to, token string, meta email.Metadata) *email.Result
}

// ResetHandler handles password reset requests
type ResetHandler struct {
	tokens     repository.ResetTokenRepository
	mailer     Mailer
	production bool
	logger     *zap.Logger
	now        func() time.Time
}

// NewResetHandler creates a new password reset handler
func NewResetHandler(tokens repository.ResetTokenRepository, mailer Mailer, production bool, logger *zap.Logger) *ResetHandler {
	return &ResetHandler{
		tokens:     tokens,
		mailer:     mailer,
		production: production,
		logger:     logger.Named("reset"),
		now:        time.Now,
	}
}

// ForgotPassword issues a reset token and mails the reset link
// POST /api/v1/auth/forgot-password
func (h *ResetHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.ResetRequestsTotal.WithLabelValues(requestInvalid).Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	address := strings.ToLower(strings.TrimSpace(req.Email))

	token, hash, err := auth.NewResetToken()
	if err != nil {
		h.internalError(c, "failed to generate reset token", err)
		return
	}

	// A new request supersedes any link sent earlier
	if _, err := h.tokens.InvalidateForEmail(ctx, address); err != nil {
		h.logger.Warn("failed to invalidate previous reset tokens", zap.String("email", address), zap.Error(err))
	}

	now := h.now()
	record := &models.PasswordResetToken{
		ID:        uuid.New(),
		Email:     address,
		TokenHash: hash,
		ExpiresAt: now.Add(email.TokenExpiry),
		CreatedAt: now,
		RequestIP: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if err := h.tokens.Create(ctx, record); err != nil {
		h.internalError(c, "failed to store reset token", err)
		return
	}

	// The email goes out even if the client hangs up mid-request
	result := h.mailer.Dispatch(context.WithoutCancel(ctx), address, token, email.Metadata{
		PersonName: strings.TrimSpace(req.PersonName),
		RequestIP:  record.RequestIP,
		UserAgent:  record.UserAgent,
	})
	metrics.ResetRequestsTotal.WithLabelValues(requestAccepted).Inc()

	resp := models.ForgotPasswordResponse{Message: forgotPasswordMessage}
	if !h.production && (result.Simulated() || result.FallbackLinkExposed) {
		resp.DevelopmentMode = true
		resp.ResetLink = result.ResetLink
	}
	c.JSON(http.StatusOK, resp)
}

// ValidateResetToken reports whether a reset token can still be used
// GET /api/v1/auth/reset-password/validate?token=...
func (h *ResetHandler) ValidateResetToken(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_token",
			"message": auth.ErrNoToken.Error(),
		})
		return
	}

	record, err := h.tokens.GetByHash(c.Request.Context(), auth.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) || errors.Is(err, repository.ErrResetTokenUsed) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_token",
				"message": "Reset link is invalid or has expired",
			})
			return
		}
		h.logger.Error("failed to look up reset token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to validate reset token",
		})
		return
	}

	c.JSON(http.StatusOK, models.ValidateResetTokenResponse{
		Valid:     true,
		ExpiresAt: record.ExpiresAt,
	})
}

// ConsumeResetToken redeems a reset token exactly once and returns the
// address it was issued for
// POST /api/v1/auth/reset-password/consume
func (h *ResetHandler) ConsumeResetToken(c *gin.Context) {
	var req models.ConsumeResetTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	token := strings.TrimSpace(req.Token)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_token",
			"message": auth.ErrNoToken.Error(),
		})
		return
	}

	record, err := h.tokens.GetByHash(ctx, auth.HashToken(token))
	if err == nil {
		// Lost races against a concurrent consume surface as not found
		err = h.tokens.MarkUsed(ctx, record.ID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) || errors.Is(err, repository.ErrResetTokenUsed) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_token",
				"message": "Reset link is invalid or has expired",
			})
			return
		}
		h.logger.Error("failed to consume reset token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to consume reset token",
		})
		return
	}

	h.logger.Info("reset token consumed", zap.String("email", record.Email), zap.String("tokenId", record.ID.String()))
	c.JSON(http.StatusOK, models.ConsumeResetTokenResponse{
		Email:      record.Email,
		ConsumedAt: h.now().UTC(),
	})
}

func (h *ResetHandler) internalError(c *gin.Context, msg string, err error) {
	metrics.ResetRequestsTotal.WithLabelValues(requestError).Inc()
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "Failed to process password reset request",
	})
}
