package decision

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bedaniele0/fraud-detection/internal/threshold"
	"github.com/bedaniele0/fraud-detection/internal/transaction"
)

// Handler provides HTTP endpoints for fraud decisions.
type Handler struct {
	service *Service
}

// NewHandler creates a new decision handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up decision routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/predict", h.Predict)
	r.POST("/predict/batch", h.PredictBatch)
	r.GET("/decisions", h.ListRecent)
	r.GET("/model/info", h.ModelInfo)
}

// ModelInfo handles GET /api/v1/model/info
func (h *Handler) ModelInfo(c *gin.Context) {
	info, err := h.service.ModelInfo()
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gin.H{
		"model_type":     info.Type,
		"model_version":  info.Version,
		"features_count": info.FeatureCount,
	}
	if info.TrainedAt != "" {
		resp["training_date"] = info.TrainedAt
	}

	if snap, err := h.service.ThresholdSnapshot(); err == nil {
		resp["threshold"] = snap.Value
		resp["threshold_source"] = snap.Source
		if snap.Calibration != nil {
			resp["metrics"] = snap.Calibration
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Predict handles POST /api/v1/predict
func (h *Handler) Predict(c *gin.Context) {
	var record map[string]any
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must be a JSON object",
		})
		return
	}

	d, err := h.service.DecideOne(c.Request.Context(), record)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

// batchRequest is the body of a batch prediction call.
type batchRequest struct {
	Transactions []map[string]any `json:"transactions"`
}

// PredictBatch handles POST /api/v1/predict/batch
func (h *Handler) PredictBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Request body must carry a transactions array",
		})
		return
	}

	outcome, err := h.service.DecideBatch(c.Request.Context(), req.Transactions)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// ListRecent handles GET /api/v1/decisions
func (h *Handler) ListRecent(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	decisions, err := h.service.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// writeError maps service errors onto HTTP responses. Client mistakes are
// 400s with a machine-readable reason; absent collaborators are 503s so load
// balancers retry elsewhere; contract violations are plain 500s.
func (h *Handler) writeError(c *gin.Context, err error) {
	var fe *transaction.FieldError
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"field":   fe.Field,
			"reason":  fe.Reason,
			"message": fe.Error(),
		})
	case errors.Is(err, transaction.ErrEmptyBatch):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "empty_batch",
			"message": err.Error(),
		})
	case errors.Is(err, transaction.ErrBatchTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "batch_too_large",
			"message": err.Error(),
		})
	case errors.Is(err, threshold.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "threshold_not_configured",
			"message": "No decision threshold configured; calibrate or set one first",
		})
	case errors.Is(err, ErrModelNotLoaded):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "model_not_loaded",
			"message": "No model loaded; configure MODEL_PATH or restart with a model artifact",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}
