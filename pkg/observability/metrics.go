package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Webhook metrics
	WebhookEventsTotal *prometheus.CounterVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Cache metrics
	CacheInvalidationsTotal *prometheus.CounterVec
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec

	// Event publishing
	EventsPublishedTotal *prometheus.CounterVec

	// Business metrics
	UsersTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usersync_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usersync_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usersync_webhook_events_total",
				Help: "Total number of webhook deliveries by event type and outcome",
			},
			[]string{"type", "outcome"},
		),

		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usersync_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usersync_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),

		CacheInvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usersync_cache_invalidations_total",
				Help: "Total number of cache tag invalidations",
			},
			[]string{"status"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usersync_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usersync_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"layer"},
		),

		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usersync_events_published_total",
				Help: "Total number of domain events published",
			},
			[]string{"event", "status"},
		),

		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "usersync_users_total",
				Help: "Number of users in the store",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WebhookEventsTotal,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.CacheInvalidationsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EventsPublishedTotal,
		m.UsersTotal,
	)

	return m
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordWebhookEvent counts a webhook delivery
func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordStorageOperation counts and times a storage operation
func (m *Metrics) RecordStorageOperation(op string, d time.Duration, err error) {
	m.StorageOperationsTotal.WithLabelValues(op, status(err)).Inc()
	m.StorageOperationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordCacheInvalidation counts a tag invalidation
func (m *Metrics) RecordCacheInvalidation(err error) {
	m.CacheInvalidationsTotal.WithLabelValues(status(err)).Inc()
}

// RecordCacheLookup counts a cache hit or miss
func (m *Metrics) RecordCacheLookup(layer string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(layer).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(layer).Inc()
}

// RecordPublish counts a domain event publish
func (m *Metrics) RecordPublish(event string, err error) {
	m.EventsPublishedTotal.WithLabelValues(event, status(err)).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Registered with mux.Router.Use, the path label is the route template.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					path = tpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
