package threshold

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bedaniele0/fraud-detection/internal/calibration"
	"github.com/bedaniele0/fraud-detection/internal/metrics"
	"github.com/bedaniele0/fraud-detection/internal/traces"
)

// Events receives threshold lifecycle notifications for live streaming.
// Implementations must not block.
type Events interface {
	ThresholdUpdated(snap *Snapshot)
	CalibrationCompleted(result *calibration.Result)
}

// Handler provides HTTP endpoints for threshold management and calibration.
type Handler struct {
	cell   *Cell
	events Events  // nil disables streaming
	fpCost float64 // configured unit costs for the cost objective;
	fnCost float64 // zero falls back to the calibration package defaults
}

// NewHandler creates a new threshold handler.
func NewHandler(cell *Cell) *Handler {
	return &Handler{cell: cell}
}

// WithEvents attaches a streaming sink.
func (h *Handler) WithEvents(events Events) *Handler {
	h.events = events
	return h
}

// WithCosts sets the false-positive/false-negative unit costs calibration
// runs use when the cost objective is requested.
func (h *Handler) WithCosts(fpCost, fnCost float64) *Handler {
	h.fpCost = fpCost
	h.fnCost = fnCost
	return h
}

// RegisterRoutes sets up threshold and calibration routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/model/threshold", h.GetThreshold)
	r.PUT("/model/threshold", h.SetThreshold)
	r.POST("/model/calibrate", h.Calibrate)
}

// GetThreshold handles GET /api/v1/model/threshold
func (h *Handler) GetThreshold(c *gin.Context) {
	snap, err := h.cell.Get()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "threshold_not_configured",
			"message": "No decision threshold configured; calibrate or set one first",
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// setThresholdRequest is the body of a manual threshold update.
type setThresholdRequest struct {
	Threshold *float64 `json:"threshold" binding:"required"`
}

// SetThreshold handles PUT /api/v1/model/threshold
func (h *Handler) SetThreshold(c *gin.Context) {
	var req setThresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Threshold value is required",
		})
		return
	}

	var oldValue *float64
	if prev, err := h.cell.Get(); err == nil {
		oldValue = &prev.Value
	}

	snap, err := h.cell.Set(c.Request.Context(), *req.Threshold)
	if err != nil {
		if errors.Is(err, ErrInvalidThreshold) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_threshold",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	metrics.ActiveThreshold.Set(snap.Value)
	if h.events != nil {
		h.events.ThresholdUpdated(snap)
	}

	c.JSON(http.StatusOK, gin.H{
		"old_threshold": oldValue,
		"new_threshold": snap.Value,
		"source":        snap.Source,
		"adopted_at":    snap.AdoptedAt,
	})
}

// calibrateRequest is the body of an inline calibration run: model scores
// over a labeled evaluation set.
type calibrateRequest struct {
	Scores    []float64 `json:"scores" binding:"required"`
	Labels    []int     `json:"labels" binding:"required"`
	Objective string    `json:"objective"`
}

// Calibrate handles POST /api/v1/model/calibrate
//
// A failed run never disturbs the active threshold; the previous value keeps
// serving decisions.
func (h *Handler) Calibrate(c *gin.Context) {
	var req calibrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Scores and labels arrays are required",
		})
		return
	}

	opts := calibration.Options{
		FalsePositiveCost: h.fpCost,
		FalseNegativeCost: h.fnCost,
	}
	switch req.Objective {
	case "":
	case string(calibration.ObjectiveF1), string(calibration.ObjectiveCost):
		opts.Objective = calibration.Objective(req.Objective)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Objective must be \"f1\" or \"cost\"",
		})
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "calibration.run",
		traces.BatchSize(len(req.Scores)),
	)
	defer span.End()

	result, err := calibration.Calibrate(req.Scores, req.Labels, opts)
	if err != nil {
		metrics.CalibrationsTotal.WithLabelValues(req.Objective, "error").Inc()
		if errors.Is(err, calibration.ErrEmptyDataset) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "empty_dataset",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	span.SetAttributes(
		traces.Objective(string(result.Objective)),
		traces.Threshold(result.Threshold),
	)

	snap, err := h.cell.Commit(ctx, result)
	if err != nil {
		metrics.CalibrationsTotal.WithLabelValues(string(result.Objective), "error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	metrics.CalibrationsTotal.WithLabelValues(string(result.Objective), "adopted").Inc()
	metrics.ActiveThreshold.Set(snap.Value)
	if h.events != nil {
		h.events.CalibrationCompleted(result)
		h.events.ThresholdUpdated(snap)
	}

	c.JSON(http.StatusOK, result)
}
