package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-occurrences-api/internal/service"
	"github.com/noah-isme/sma-occurrences-api/pkg/response"
)

type cacheInvalidator interface {
	Invalidate(ctx context.Context)
}

type readinessChecker interface {
	Ready(ctx context.Context) error
}

// MetricsHandler exposes observability and cache control endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	cache   cacheInvalidator
	ready   readinessChecker
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, cache cacheInvalidator, ready readinessChecker) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, cache: cache, ready: ready}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the occurrence store answers.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready.Ready(c.Request.Context()); err != nil {
			response.Error(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// CacheStats godoc
// @Summary Snapshot cache statistics
// @Tags Cache
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cache/stats [get]
func (h *MetricsHandler) CacheStats(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// InvalidateCache godoc
// @Summary Drop every cached snapshot
// @Tags Cache
// @Success 204
// @Router /cache/invalidate [post]
func (h *MetricsHandler) InvalidateCache(c *gin.Context) {
	if h.cache != nil {
		h.cache.Invalidate(c.Request.Context())
	}
	response.NoContent(c)
}
