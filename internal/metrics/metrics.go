// Package metrics provides Prometheus instrumentation for the fraud
// decision service.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fraud",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DecisionsTotal counts served decisions by outcome and risk tier.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud",
			Name:      "decisions_total",
			Help:      "Total decisions served by outcome (fraud/legit) and risk tier.",
		},
		[]string{"outcome", "risk_tier"},
	)

	// DecisionScores observes the distribution of model scores at decision time.
	DecisionScores = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraud",
		Name:      "decision_scores",
		Help:      "Distribution of fraud probabilities at decision time.",
		Buckets:   prometheus.LinearBuckets(0.05, 0.05, 19),
	})

	// BatchSize observes the size of batch decision requests.
	BatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fraud",
		Name:      "batch_size",
		Help:      "Number of transactions per batch decision request.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	// ValidationFailuresTotal counts rejected transaction records by reason.
	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud",
			Name:      "validation_failures_total",
			Help:      "Total transaction records rejected by validation, by reason.",
		},
		[]string{"reason"},
	)

	// ActiveThreshold tracks the currently active decision threshold.
	ActiveThreshold = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraud",
		Name:      "active_threshold",
		Help:      "Currently active decision threshold.",
	})

	// CalibrationsTotal counts calibration runs by objective and result.
	CalibrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fraud",
			Name:      "calibrations_total",
			Help:      "Total threshold calibration runs by objective and result.",
		},
		[]string{"objective", "result"},
	)

	// ActiveWebSocketClients tracks connected event-stream clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fraud",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraud", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraud", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraud", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fraud", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DecisionsTotal,
		DecisionScores,
		BatchSize,
		ValidationFailuresTotal,
		ActiveThreshold,
		CalibrationsTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
