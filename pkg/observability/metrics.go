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
	HTTPResponseSize    *prometheus.HistogramVec

	// Decision metrics
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec
	CacheEntries        prometheus.Gauge

	// Resolver metrics
	ResolutionsTotal       *prometheus.CounterVec
	MetadataMalformedTotal *prometheus.CounterVec
	InvalidationsTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authz_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authz_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"resource", "action", "result", "source"},
		),
		DecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authz_decision_duration_seconds",
				Help:    "Time to reach an authorization decision",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
			[]string{"resource"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_cache_hits_total",
				Help: "Total number of decision cache hits",
			},
			[]string{"kind"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_cache_misses_total",
				Help: "Total number of decision cache misses",
			},
			[]string{"kind"},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_cache_evictions_total",
				Help: "Total number of decision cache evictions",
			},
			[]string{"reason"},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "authz_cache_entries",
				Help: "Current number of decision cache entries",
			},
		),

		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_context_resolutions_total",
				Help: "Authorization context resolutions by outcome",
			},
			[]string{"outcome"},
		),
		MetadataMalformedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_metadata_malformed_total",
				Help: "Malformed role metadata elements skipped while building role sets",
			},
			[]string{"field"},
		),
		InvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_cache_invalidations_total",
				Help: "Cache invalidations by scope and origin",
			},
			[]string{"scope", "origin"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.DecisionsTotal,
		m.DecisionDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CacheEntries,
		m.ResolutionsTotal,
		m.MetadataMalformedTotal,
		m.InvalidationsTotal,
	)

	return m
}

// RecordHit implements cache.Recorder
func (m *Metrics) RecordHit(kind string) {
	m.CacheHitsTotal.WithLabelValues(kind).Inc()
}

// RecordMiss implements cache.Recorder
func (m *Metrics) RecordMiss(kind string) {
	m.CacheMissesTotal.WithLabelValues(kind).Inc()
}

// RecordEviction implements cache.Recorder
func (m *Metrics) RecordEviction(reason string) {
	m.CacheEvictionsTotal.WithLabelValues(reason).Inc()
}

// SetEntries implements cache.Recorder
func (m *Metrics) SetEntries(n int) {
	m.CacheEntries.Set(float64(n))
}

// ObserveDecision records one authorization decision. source is "cache" or
// "evaluated".
func (m *Metrics) ObserveDecision(resource, action string, allowed bool, source string, d time.Duration) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.DecisionsTotal.WithLabelValues(resource, action, result, source).Inc()
	m.DecisionDuration.WithLabelValues(resource).Observe(d.Seconds())
}

// ObserveResolution records a resolver outcome (cached, built, anonymous, error)
func (m *Metrics) ObserveResolution(outcome string) {
	m.ResolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveMalformed counts a skipped metadata element
func (m *Metrics) ObserveMalformed(field string) {
	m.MetadataMalformedTotal.WithLabelValues(field).Inc()
}

// ObserveInvalidation counts a user or resource invalidation. origin is
// "local" or "remote".
func (m *Metrics) ObserveInvalidation(scope, origin string) {
	m.InvalidationsTotal.WithLabelValues(scope, origin).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel prefers the mux route template so path parameters do not
// explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := routeLabel(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
