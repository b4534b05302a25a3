// Package server provides HTTP server setup and configuration.
package server

import (
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sebasr/reset-mailer/internal/config"
	"github.com/sebasr/reset-mailer/internal/email"
	"github.com/sebasr/reset-mailer/internal/handlers"
	"github.com/sebasr/reset-mailer/internal/metrics"
	"github.com/sebasr/reset-mailer/internal/middleware"
	"github.com/sebasr/reset-mailer/internal/repository"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("RequestID", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

// validateTokenPath carries the reset token in its query string, so it is
// kept out of the access log
const validateTokenPath = "/api/v1/auth/reset-password/validate"

// Dependencies holds all dependencies needed to create a server
type Dependencies struct {
	Config         *config.Config
	Logger         *zap.Logger
	Mailer         handlers.Mailer
	TransportState email.State
	Tokens         repository.ResetTokenRepository
	DB             handlers.HealthChecker // Optional: nil when tokens are kept in memory
}

// New creates a new Gin router with all routes configured
func New(deps *Dependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(
		ginzap.GinzapWithConfig(logger, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			SkipPaths:  []string{"/api/v1/health", "/metrics", validateTokenPath},
		}),
		ginzap.RecoveryWithZap(logger, true),
	)

	// Add CORS middleware for the password reset frontend
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(deps.Config),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Encoding", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(RequestIDMiddleware())
	router.Use(middleware.NewRateLimitMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithDecompressFn(gzip.DefaultDecompressHandle)))

	production := deps.Config != nil && deps.Config.IsProduction()
	resetHandler := handlers.NewResetHandler(deps.Tokens, deps.Mailer, production, logger)
	healthHandler := handlers.NewHealthHandler(deps.TransportState, deps.DB)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/forgot-password", middleware.NewResetRateLimitMiddleware(), resetHandler.ForgotPassword)
			authGroup.GET("/reset-password/validate", resetHandler.ValidateResetToken)
			authGroup.POST("/reset-password/consume", resetHandler.ConsumeResetToken)
		}
	}

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}

// allowedOrigins returns the frontend origin in production and any origin otherwise
func allowedOrigins(cfg *config.Config) []string {
	if cfg != nil && cfg.IsProduction() {
		if u, err := url.Parse(cfg.Email.FrontendBaseURL); err == nil && u.Scheme != "" && u.Host != "" {
			return []string{u.Scheme + "://" + u.Host}
		}
	}
	return []string{"*"}
}
