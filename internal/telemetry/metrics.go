// Package telemetry provides structured logging setup and Prometheus metrics.
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<PHUB_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// HTTP metrics use c.FullPath() (route template such as
// /api/organizations/projects/:projectId) rather than the raw URL so ids in the
// path do not produce unbounded label cardinality.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "projecthub"

// HTTP metrics, labelled by method, route template and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request latencies, by method and route template.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Authentication and tenancy metrics.
//
// LoginAttemptsTotal outcome label values: success, org_not_found, org_inactive,
// invalid_credentials.
var (
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	CapacityRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_rejections_total",
			Help:      "Creates refused because an organization reached its user or project ceiling.",
		},
		[]string{"resource"},
	)

	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter, by limiter tier.",
		},
		[]string{"tier"},
	)
)

// Audit sink metrics. A non-zero failure rate means events are being dropped.
var (
	AuditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_total",
			Help:      "Audit events persisted, by action.",
		},
		[]string{"action"},
	)

	AuditFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Audit events that could not be persisted or shipped.",
		},
	)
)

// Database connection pool gauges, sampled by StartDBStatsCollector.
var (
	DBOpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_open_connections",
			Help:      "Current number of open database connections in the pool.",
		},
	)

	DBInUseConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_in_use_connections",
			Help:      "Current number of database connections in use.",
		},
	)

	DBIdleConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_idle_connections",
			Help:      "Current number of idle database connections.",
		},
	)
)

// StatsSource is the part of *sql.DB the collector needs.
type StatsSource interface {
	Stats() sql.DBStats
}

// RecordDBStats copies one pool snapshot into the gauges.
func RecordDBStats(db StatsSource) {
	s := db.Stats()
	DBOpenConnections.Set(float64(s.OpenConnections))
	DBInUseConnections.Set(float64(s.InUse))
	DBIdleConnections.Set(float64(s.Idle))
}

// StartDBStatsCollector samples pool statistics every interval until ctx is cancelled.
func StartDBStatsCollector(ctx context.Context, db StatsSource, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("db stats collector stopped")
				return
			case <-ticker.C:
				RecordDBStats(db)
			}
		}
	}()
}
