package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sebasr/reset-mailer/internal/auth"
	"github.com/sebasr/reset-mailer/internal/email"
	"github.com/sebasr/reset-mailer/internal/models"
	"github.com/sebasr/reset-mailer/internal/repository"
)

func newTestDispatcher(setup *email.Setup) *email.Dispatcher {
	return email.NewDispatcher(setup, email.DispatcherConfig{
		FrontendBaseURL:    "https://app.example.com",
		DefaultFromAddress: "mailer@example.com",
		Console:            io.Discard,
	}, zap.NewNop())
}

func setupResetTest(setup *email.Setup, production bool) (*ResetHandler, *repository.MockResetTokenRepository) {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMockResetTokenRepository()
	handler := NewResetHandler(repo, newTestDispatcher(setup), production, zap.NewNop())
	return handler, repo
}

func postForgotPassword(handler *ResetHandler, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password", bytes.NewBuffer(data))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set("User-Agent", "test-agent/1.0")
	handler.ForgotPassword(c)
	return w
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestResetHandler_ForgotPassword_Simulated(t *testing.T) {
	handler, repo := setupResetTest(&email.Setup{State: email.StateUnconfigured}, false)

	var stored *models.PasswordResetToken
	repo.CreateFunc = func(_ context.Context, token *models.PasswordResetToken) error {
		stored = token
		return nil
	}
	var invalidated string
	repo.InvalidateForEmailFunc = func(_ context.Context, address string) (int64, error) {
		invalidated = address
		return 1, nil
	}

	w := postForgotPassword(handler, models.ForgotPasswordRequest{
		Email:      "  User@Example.com ",
		PersonName: "Alice",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ForgotPasswordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, forgotPasswordMessage, resp.Message)
	assert.True(t, resp.DevelopmentMode)
	require.NotEmpty(t, resp.ResetLink)

	token := tokenFromLink(t, resp.ResetLink)
	require.NotEmpty(t, token)

	require.NotNil(t, stored)
	assert.Equal(t, "user@example.com", stored.Email)
	assert.Equal(t, "user@example.com", invalidated)
	assert.Equal(t, auth.HashToken(token), stored.TokenHash)
	assert.Equal(t, "test-agent/1.0", stored.UserAgent)
	assert.WithinDuration(t, time.Now().Add(email.TokenExpiry), stored.ExpiresAt, 5*time.Second)
	assert.NotContains(t, w.Body.String(), stored.TokenHash)
}

func TestResetHandler_ForgotPassword_Delivered(t *testing.T) {
	transport := email.NewMockTransport()
	handler, _ := setupResetTest(&email.Setup{State: email.StateReady, Transport: transport}, false)

	w := postForgotPassword(handler, models.ForgotPasswordRequest{Email: "user@example.com", PersonName: "Bob"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "resetLink")
	assert.NotContains(t, w.Body.String(), "developmentMode")

	sent := transport.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "user@example.com", sent[0].To)
	assert.Contains(t, sent[0].TextBody, "Dear Bob,")
}

func TestResetHandler_ForgotPassword_SendFailure(t *testing.T) {
	newFailing := func() *email.MockTransport {
		transport := email.NewMockTransport()
		transport.SendFunc = func(context.Context, *email.Message) (*email.SendInfo, error) {
			return nil, errors.New("Connection timed out")
		}
		return transport
	}

	t.Run("development exposes the link", func(t *testing.T) {
		handler, _ := setupResetTest(&email.Setup{State: email.StateReady, Transport: newFailing()}, false)

		w := postForgotPassword(handler, models.ForgotPasswordRequest{Email: "user@example.com"})

		require.Equal(t, http.StatusOK, w.Code)
		var resp models.ForgotPasswordResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.DevelopmentMode)
		assert.Contains(t, resp.ResetLink, "https://app.example.com/reset-password.html?token=")
		assert.NotContains(t, w.Body.String(), "Connection timed out")
	})

	t.Run("production hides the link", func(t *testing.T) {
		handler, _ := setupResetTest(&email.Setup{State: email.StateReady, Transport: newFailing()}, true)

		w := postForgotPassword(handler, models.ForgotPasswordRequest{Email: "user@example.com"})

		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "resetLink")
		assert.Contains(t, w.Body.String(), forgotPasswordMessage)
	})
}

func TestResetHandler_ForgotPassword_InvalidatePreviousFails(t *testing.T) {
	handler, repo := setupResetTest(&email.Setup{State: email.StateUnconfigured}, false)
	repo.InvalidateForEmailFunc = func(context.Context, string) (int64, error) {
		return 0, errors.New("connection reset")
	}

	w := postForgotPassword(handler, models.ForgotPasswordRequest{Email: "user@example.com"})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResetHandler_ForgotPassword_StoreFailure(t *testing.T) {
	transport := email.NewMockTransport()
	handler, repo := setupResetTest(&email.Setup{State: email.StateReady, Transport: transport}, false)
	repo.CreateFunc = func(context.Context, *models.PasswordResetToken) error {
		return errors.New("connection refused")
	}

	w := postForgotPassword(handler, models.ForgotPasswordRequest{Email: "user@example.com"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
	assert.NotContains(t, w.Body.String(), "connection refused")
	// No email for a token that was never stored
	assert.Empty(t, transport.SentMessages())
}

func TestResetHandler_ForgotPassword_InvalidRequest(t *testing.T) {
	handler, _ := setupResetTest(&email.Setup{State: email.StateUnconfigured}, false)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "missing email", body: map[string]string{}},
		{name: "invalid email format", body: map[string]string{"email": "not-an-email"}},
		{name: "wrong type", body: map[string]int{"email": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForgotPassword(handler, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "invalid_request")
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password", bytes.NewBufferString("{"))
		c.Request.Header.Set("Content-Type", "application/json")

		handler.ForgotPassword(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func getValidate(handler *ResetHandler, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/auth/reset-password/validate?token="+url.QueryEscape(token), nil)
	handler.ValidateResetToken(c)
	return w
}

func TestResetHandler_ValidateResetToken(t *testing.T) {
	expiresAt := time.Date(2026, 5, 1, 12, 5, 0, 0, time.UTC)

	handler, repo := setupResetTest(&email.Setup{State: email.StateUnconfigured}, false)
	repo.GetByHashFunc = func(_ context.Context, hash string) (*models.PasswordResetToken, error) {
		switch hash {
		case auth.HashToken("good"):
			return &models.PasswordResetToken{Email: "user@example.com", ExpiresAt: expiresAt}, nil
		case auth.HashToken("used"):
			return nil, repository.ErrResetTokenUsed
		case auth.HashToken("broken"):
			return nil, errors.New("connection refused")
		default:
			return nil, repository.ErrResetTokenNotFound
		}
	}

	t.Run("valid token", func(t *testing.T) {
		w := getValidate(handler, "good")

		require.Equal(t, http.StatusOK, w.Code)
		var resp models.ValidateResetTokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
		assert.True(t, expiresAt.Equal(resp.ExpiresAt))
		assert.NotContains(t, w.Body.String(), "user@example.com")
	})

	for _, token := range []string{"", "unknown", "used"} {
		t.Run("rejects "+token, func(t *testing.T) {
			w := getValidate(handler, token)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "invalid_token")
		})
	}

	t.Run("store failure", func(t *testing.T) {
		w := getValidate(handler, "broken")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestResetHandler_RoundTripWithMemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := repository.NewMemoryResetTokenRepository()
	handler := NewResetHandler(store, newTestDispatcher(&email.Setup{State: email.StateUnconfigured}), false, zap.NewNop())

	first := postForgotPassword(handler, models.ForgotPasswordRequest{Email: "user@example.com"})
	require.Equal(t, http.StatusOK, first.Code)
	var firstResp models.ForgotPasswordResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	firstToken := tokenFromLink(t, firstResp.ResetLink)

	assert.Equal(t, http.StatusOK, getValidate(handler, firstToken).Code)

	// Requesting again invalidates the earlier link
	second := postForgotPassword(handler, models.ForgotPasswordRequest{Email: "user@example.com"})
	require.Equal(t, http.StatusOK, second.Code)
	var secondResp models.ForgotPasswordResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))

	assert.Equal(t, http.StatusBadRequest, getValidate(handler, firstToken).Code)
	secondToken := tokenFromLink(t, secondResp.ResetLink)
	assert.Equal(t, http.StatusOK, getValidate(handler, secondToken).Code)

	// A consumed link works exactly once
	consumed := postConsume(handler, models.ConsumeResetTokenRequest{Token: secondToken})
	require.Equal(t, http.StatusOK, consumed.Code)
	var consumedResp models.ConsumeResetTokenResponse
	require.NoError(t, json.Unmarshal(consumed.Body.Bytes(), &consumedResp))
	assert.Equal(t, "user@example.com", consumedResp.Email)

	assert.Equal(t, http.StatusBadRequest, getValidate(handler, secondToken).Code)
	assert.Equal(t, http.StatusBadRequest, postConsume(handler, models.ConsumeResetTokenRequest{Token: secondToken}).Code)
	assert.Equal(t, http.StatusBadRequest, postConsume(handler, models.ConsumeResetTokenRequest{Token: firstToken}).Code)
}

func postConsume(handler *ResetHandler, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/reset-password/consume", bytes.NewBuffer(data))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.ConsumeResetToken(c)
	return w
}

func TestResetHandler_ConsumeResetToken(t *testing.T) {
	tokenID := uuid.New()
	consumedAt := time.Date(2026, 5, 1, 12, 1, 0, 0, time.UTC)

	newHandler := func() (*ResetHandler, *repository.MockResetTokenRepository) {
		handler, repo := setupResetTest(&email.Setup{State: email.StateUnconfigured}, false)
		handler.now = func() time.Time { return consumedAt }
		repo.GetByHashFunc = func(_ context.Context, hash string) (*models.PasswordResetToken, error) {
			switch hash {
			case auth.HashToken("good"):
				return &models.PasswordResetToken{ID: tokenID, Email: "user@example.com"}, nil
			case auth.HashToken("used"):
				return nil, repository.ErrResetTokenUsed
			case auth.HashToken("broken"):
				return nil, errors.New("connection refused")
			default:
				return nil, repository.ErrResetTokenNotFound
			}
		}
		return handler, repo
	}

	t.Run("valid token is marked used", func(t *testing.T) {
		handler, repo := newHandler()
		var marked []uuid.UUID
		repo.MarkUsedFunc = func(_ context.Context, id uuid.UUID) error {
			marked = append(marked, id)
			return nil
		}

		w := postConsume(handler, models.ConsumeResetTokenRequest{Token: " good "})

		require.Equal(t, http.StatusOK, w.Code)
		var resp models.ConsumeResetTokenResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "user@example.com", resp.Email)
		assert.True(t, consumedAt.Equal(resp.ConsumedAt))
		assert.Equal(t, []uuid.UUID{tokenID}, marked)
	})

	t.Run("concurrent consume loses the race", func(t *testing.T) {
		handler, repo := newHandler()
		repo.MarkUsedFunc = func(_ context.Context, _ uuid.UUID) error {
			return repository.ErrResetTokenNotFound
		}

		w := postConsume(handler, models.ConsumeResetTokenRequest{Token: "good"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_token")
	})

	for _, token := range []string{"unknown", "used", "   "} {
		t.Run("rejects "+token, func(t *testing.T) {
			handler, repo := newHandler()
			repo.MarkUsedFunc = func(_ context.Context, _ uuid.UUID) error {
				t.Fatal("MarkUsed must not be called")
				return nil
			}

			w := postConsume(handler, models.ConsumeResetTokenRequest{Token: token})

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "invalid_token")
		})
	}

	t.Run("missing token", func(t *testing.T) {
		handler, _ := newHandler()

		w := postConsume(handler, map[string]string{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_request")
	})

	t.Run("store failure", func(t *testing.T) {
		handler, _ := newHandler()

		w := postConsume(handler, models.ConsumeResetTokenRequest{Token: "broken"})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("mark failure", func(t *testing.T) {
		handler, repo := newHandler()
		repo.MarkUsedFunc = func(_ context.Context, _ uuid.UUID) error {
			return errors.New("connection reset")
		}

		w := postConsume(handler, models.ConsumeResetTokenRequest{Token: "good"})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

// contextRecordingMailer captures the context a dispatch ran under
type contextRecordingMailer struct {
	ctx context.Context
}

func (m *contextRecordingMailer) Dispatch(ctx context.Context, to, token string, _ email.Metadata) *email.Result {
	m.ctx = ctx
	return &email.Result{Success: true, To: to}
}

func TestResetHandler_ForgotPassword_DispatchOutlivesClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mailer := &contextRecordingMailer{}
	handler := NewResetHandler(repository.NewMockResetTokenRepository(), mailer, false, zap.NewNop())

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()

	data, _ := json.Marshal(models.ForgotPasswordRequest{Email: "user@example.com"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password", bytes.NewBuffer(data)).WithContext(reqCtx)
	c.Request.Header.Set("Content-Type", "application/json")
	handler.ForgotPassword(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mailer.ctx)
	assert.NoError(t, mailer.ctx.Err())
}
