package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-assessment/internal/response"
)

// StoreChecker pings the backing stores.
type StoreChecker interface {
	Check(ctx context.Context) (map[string]string, bool)
}

// HealthHandler serves the liveness/readiness probe.
type HealthHandler struct {
	checker StoreChecker
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checker StoreChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health godoc
// GET /health
// Returns 503 while PostgreSQL or Redis is unreachable.
func (h *HealthHandler) Health(c *gin.Context) {
	stores, healthy := h.checker.Check(c.Request.Context())
	if !healthy {
		response.Success(c, http.StatusServiceUnavailable, gin.H{"status": "degraded", "stores": stores})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "stores": stores})
}
