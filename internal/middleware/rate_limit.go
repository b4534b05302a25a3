// Package middleware provides gin middleware shared by the HTTP routes.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Default per-IP limits
const (
	GeneralRateLimit = 100 // requests per minute on all routes
	ResetRateLimit   = 5   // forgot-password requests per minute
)

// NewRateLimitMiddleware allows GeneralRateLimit requests per minute per IP address.
func NewRateLimitMiddleware() gin.HandlerFunc {
	return NewRateLimitMiddlewareWithConfig(GeneralRateLimit, time.Minute)
}

// NewResetRateLimitMiddleware limits how often a client can request reset
// emails. Each allowed request may send mail, so the limit is much lower
// than the general one.
func NewResetRateLimitMiddleware() gin.HandlerFunc {
	return NewRateLimitMiddlewareWithConfig(ResetRateLimit, time.Minute)
}

// NewRateLimitMiddlewareWithConfig creates a rate limiting middleware with custom configuration
func NewRateLimitMiddlewareWithConfig(limit int64, period time.Duration) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}

	store := memory.NewStore()
	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(limitReached))
}

func limitReached(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":   "rate_limited",
		"message": "Too many requests, please try again later",
	})
}
