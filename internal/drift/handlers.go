package drift

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for drift monitoring.
type Handler struct {
	monitor *Monitor
}

// NewHandler creates a new drift handler.
func NewHandler(monitor *Monitor) *Handler {
	return &Handler{monitor: monitor}
}

// RegisterRoutes sets up monitoring routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/monitoring/drift", h.GetDrift)
	r.PUT("/monitoring/drift/reference", h.SetReference)
}

// GetDrift handles GET /api/v1/monitoring/drift
func (h *Handler) GetDrift(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Snapshot())
}

// SetReferenceRequest installs the reference sample for one monitored feature.
type SetReferenceRequest struct {
	Feature string    `json:"feature" binding:"required"`
	Samples []float64 `json:"samples"`
}

// SetReference handles PUT /api/v1/monitoring/drift/reference. Operators
// install the calibration-time distribution here so live traffic has a
// baseline to drift from.
func (h *Handler) SetReference(c *gin.Context) {
	var req SetReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "feature and samples are required",
		})
		return
	}

	switch req.Feature {
	case FeatureScore, FeatureAmount, FeatureTime:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unknown_feature",
			"message": "feature must be one of: score, Amount, Time",
		})
		return
	}

	if len(req.Samples) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "empty_samples",
			"message": "samples must be non-empty",
		})
		return
	}

	h.monitor.SetReference(req.Feature, req.Samples)
	c.JSON(http.StatusOK, gin.H{
		"feature": req.Feature,
		"samples": len(req.Samples),
	})
}
