package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	AuthzDenialsTotal      *prometheus.CounterVec
	AlertsAcknowledgedTotal prometheus.Counter
	MeasurementsIngestedTotal prometheus.Counter

	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	SessionsActive      prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all instruments on the registry. A nil
// registry gets a fresh one, keeping tests isolated from the default
// global registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigia_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vigia_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigia_store_operations_total",
				Help: "Total number of store operations",
			},
			[]string{"operation", "entity", "status"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vigia_store_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "entity"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigia_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigia_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_type"},
		),
		AuthzDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigia_authz_denials_total",
				Help: "Total number of denied operations",
			},
			[]string{"resource", "operation"},
		),
		AlertsAcknowledgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vigia_alerts_acknowledged_total",
				Help: "Total number of alerts acknowledged",
			},
		),
		MeasurementsIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vigia_measurements_ingested_total",
				Help: "Total number of measurements recorded",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vigia_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vigia_db_connections_idle",
				Help: "Idle database connections",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vigia_sessions_active",
				Help: "Sessions not yet expired or revoked",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StoreOperationsTotal,
		m.StoreOperationDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.AuthzDenialsTotal,
		m.AlertsAcknowledgedTotal,
		m.MeasurementsIngestedTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.SessionsActive,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one completed request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveStoreOperation records one store call.
func (m *Metrics) ObserveStoreOperation(operation, entity string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(operation, entity, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation, entity).Observe(duration.Seconds())
}
