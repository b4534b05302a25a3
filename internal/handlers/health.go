package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sebasr/reset-mailer/internal/email"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Transport string `json:"transport"`
	Database  string `json:"database"`
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports service health
type HealthHandler struct {
	transport email.State
	db        HealthChecker
}

// NewHealthHandler creates a health handler. db may be nil when tokens are kept in memory.
func NewHealthHandler(transport email.State, db HealthChecker) *HealthHandler {
	return &HealthHandler{transport: transport, db: db}
}

// Health handles health check requests.
// The mail transport state is informational: a simulated transport is still healthy.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Transport: h.transport.String(),
		Database:  "memory",
	}
	code := http.StatusOK

	if h.db != nil {
		resp.Database = "ok"
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, resp)
}
