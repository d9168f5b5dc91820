package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenapps/relay-service/internal/core/cache"
)

// Pinger reports reachability of an upstream collaborator.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	cacheClient cache.Client
	backend     Pinger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(cacheClient cache.Client, backend Pinger) *HealthHandler {
	return &HealthHandler{
		cacheClient: cacheClient,
		backend:     backend,
	}
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// Health handles the /health endpoint.
// @Summary Health check
// @Description Returns the overall health status and component statuses
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service healthy"
// @Failure 503 {object} HealthResponse "Service unhealthy"
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	components := make(map[string]string)
	healthy := true

	if err := h.cacheClient.Ping(c.Request.Context()); err != nil {
		components["cache"] = "unhealthy"
		healthy = false
	} else {
		components["cache"] = "healthy"
	}

	if err := h.backend.Ping(c.Request.Context()); err != nil {
		components["backend"] = "unreachable"
		healthy = false
	} else {
		components["backend"] = "reachable"
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status:     status,
		Components: components,
	})
}

// Ready handles the /ready endpoint.
// @Summary Readiness check
// @Description Returns whether the service is ready to accept traffic
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.cacheClient.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "not ready"})
		return
	}
	if err := h.backend.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "not ready"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
}

// Live handles the /live endpoint.
// @Summary Liveness check
// @Description Returns whether the process is alive
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /api/v1/live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "alive"})
}
