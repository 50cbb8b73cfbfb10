// Package metrics provides Prometheus instrumentation for the Voicedeck
// governance service.
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
			Namespace: "voicedeck",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voicedeck",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// QuotaDecisionsTotal counts quota gate outcomes by resource and result.
	QuotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicedeck",
			Name:      "quota_decisions_total",
			Help:      "Total quota gate decisions by resource and outcome.",
		},
		[]string{"resource", "outcome"},
	)

	// FeatureChecksTotal counts feature gate outcomes.
	FeatureChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicedeck",
			Name:      "feature_checks_total",
			Help:      "Total feature gate checks by outcome.",
		},
		[]string{"outcome"},
	)

	// UsageRecordsTotal counts ledger writes by result.
	UsageRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicedeck",
			Name:      "usage_records_total",
			Help:      "Total usage ledger writes by result (applied, duplicate, conflict, error).",
		},
		[]string{"result"},
	)

	// UsageMinutesRecorded sums positive minute deltas applied to the ledger.
	UsageMinutesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voicedeck",
			Name:      "usage_minutes_recorded_total",
			Help:      "Total minutes of consumption recorded in the usage ledger.",
		},
	)

	// ReconcileRunsTotal counts ledger reconciliation runs by result.
	ReconcileRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicedeck",
			Name:      "reconcile_runs_total",
			Help:      "Total ledger reconciliation runs by result.",
		},
		[]string{"result"},
	)

	// ReconcileDriftTotal counts tenants whose materialized minutes_used
	// disagreed with the ledger sum.
	ReconcileDriftTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voicedeck",
			Name:      "reconcile_drift_total",
			Help:      "Total tenants found with minutes_used drifted from the ledger sum.",
		},
	)

	// AdminOverridesTotal counts privileged admin mutations by operation.
	AdminOverridesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voicedeck",
			Name:      "admin_overrides_total",
			Help:      "Total admin override operations by type.",
		},
		[]string{"operation"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "voicedeck", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "voicedeck", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "voicedeck", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "voicedeck", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotaDecisionsTotal,
		FeatureChecksTotal,
		UsageRecordsTotal,
		UsageMinutesRecorded,
		ReconcileRunsTotal,
		ReconcileDriftTotal,
		AdminOverridesTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime
// goroutine count into Prometheus gauges. Call in a goroutine; exits when
// ctx is done.
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
			c.FullPath(), // route pattern, not actual path (avoids cardinality explosion)
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

// Handler returns the Prometheus metrics HTTP handler for /metrics.
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
