package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fooder/fooder/internal/ports/outbound"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestSize      *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	scansTotal      *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	detectedItems   *prometheus.CounterVec
	recipesReturned prometheus.Histogram
	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	cacheOperations *prometheus.CounterVec
	errorRateTotal  *prometheus.CounterVec
}

var _ outbound.ScanMetrics = (*MetricsCollector)(nil)

// NewMetricsCollector creates a new metrics collector on its own registry
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsCollector{
		logger:   logger,
		registry: reg,

		// HTTP metrics
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests being served",
			},
		),

		// Business metrics
		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fooder_scans_total",
				Help: "Total number of image scans by outcome",
			},
			[]string{"outcome"},
		),
		scanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fooder_scan_duration_seconds",
				Help:    "End-to-end scan duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
		),
		detectedItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fooder_detected_items_total",
				Help: "Food items detected, by label",
			},
			[]string{"label"},
		),
		recipesReturned: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fooder_recipes_returned",
				Help:    "Number of recipes returned per successful scan",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
			},
		),
		backendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fooder_backend_requests_total",
				Help: "Requests to external backends",
			},
			[]string{"backend", "operation", "status"},
		),
		backendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fooder_backend_request_duration_seconds",
				Help:    "External backend request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"backend", "operation"},
		),
		cacheOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fooder_cache_operations_total",
				Help: "Recipe cache operations",
			},
			[]string{"operation", "result"},
		),
		errorRateTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "error_type"},
		),
	}
}

// HTTPMiddleware creates a Gin middleware for HTTP metrics collection
func (m *MetricsCollector) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		if c.Request.ContentLength > 0 {
			m.httpRequestSize.WithLabelValues(c.Request.Method, path).Observe(float64(c.Request.ContentLength))
		}

		c.Next()

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(c.Writer.Status())

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, statusCode).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path, statusCode).Observe(duration)

		if c.Writer.Status() >= 400 {
			errorType := "client_error"
			if c.Writer.Status() >= 500 {
				errorType = "server_error"
			}
			m.errorRateTotal.WithLabelValues("http", errorType).Inc()
		}
	}
}

// RecordScan records the outcome of one scan
func (m *MetricsCollector) RecordScan(outcome string, detected []string, recipes int, duration time.Duration) {
	m.scansTotal.WithLabelValues(outcome).Inc()
	m.scanDuration.Observe(duration.Seconds())
	for _, label := range detected {
		m.detectedItems.WithLabelValues(label).Inc()
	}
	if outcome == outbound.ScanOutcomeSuccess {
		m.recipesReturned.Observe(float64(recipes))
	}
	if outcome == outbound.ScanOutcomeError {
		m.errorRateTotal.WithLabelValues("scan", "scan_failed").Inc()
	}
}

// BackendRequest records one call to an external backend
func (m *MetricsCollector) BackendRequest(backend, operation, status string, duration time.Duration) {
	m.backendRequests.WithLabelValues(backend, operation, status).Inc()
	m.backendDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// CacheOperation records a cache lookup or write
func (m *MetricsCollector) CacheOperation(operation, result string) {
	m.cacheOperations.WithLabelValues(operation, result).Inc()
}

// RecordError counts an error for a service
func (m *MetricsCollector) RecordError(service, errorType string) {
	m.errorRateTotal.WithLabelValues(service, errorType).Inc()
}

// Registry exposes the collector's registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
