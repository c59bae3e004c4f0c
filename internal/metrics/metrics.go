package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbiteye_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbiteye_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	traceComputationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbiteye_trace_computations_total",
			Help: "Ground trace computations by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	traceDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbiteye_trace_duration_seconds",
			Help:    "Duration of a single ground trace computation.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"mode"},
	)

	traceBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbiteye_trace_batch_size",
			Help:    "Satellites per batch trace request.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	tleParseFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbiteye_tle_parse_failures_total",
			Help: "Element sets rejected as malformed.",
		},
	)

	filterCountDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbiteye_filter_count_duration_seconds",
			Help:    "Time to count matches for every candidate value of one dimension.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"dimension"},
	)

	filterCountScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbiteye_filter_count_scanned_total",
			Help: "Satellites examined while counting option matches.",
		},
		[]string{"dimension"},
	)

	valueIndexRebuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbiteye_filter_value_index_rebuilds_total",
			Help: "Recomputations of the per-dimension value index.",
		},
	)

	catalogSatellites = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orbiteye_catalog_satellites",
			Help: "Satellites in the current catalog.",
		},
		[]string{"state"},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbiteye_trace_cache_hits_total",
			Help: "Trace cache hits.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbiteye_trace_cache_misses_total",
			Help: "Trace cache misses.",
		},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbiteye_trace_cache_evictions_total",
			Help: "Trace cache entries evicted as expired or stale.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbiteye_trace_cache_entries",
			Help: "Trace cache entries currently held.",
		},
	)

	cacheCutoverActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbiteye_trace_cache_cutover_active",
			Help: "1 while the trace cache revalidates entries after a catalog change.",
		},
	)

	cacheCutoverDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbiteye_trace_cache_cutover_duration_seconds",
			Help:    "Time to revalidate the trace cache after a catalog change.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	streamConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbiteye_stream_connections",
			Help: "Open trace stream connections.",
		},
	)

	streamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbiteye_stream_messages_total",
			Help: "Server-sent events written, by event type.",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		traceComputationsTotal,
		traceDurationSeconds,
		traceBatchSize,
		tleParseFailuresTotal,
		filterCountDurationSeconds,
		filterCountScansTotal,
		valueIndexRebuildsTotal,
		catalogSatellites,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheEntries,
		cacheCutoverActive,
		cacheCutoverDurationSeconds,
		streamConnections,
		streamMessagesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Trace outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeMalformed = "malformed"
	OutcomeMissing   = "missing_elements"
	OutcomeCanceled  = "canceled"
	OutcomeError     = "error"
)

// RecordTrace records one ground trace computation. mode is empty when the
// computation failed before a mode was chosen.
func RecordTrace(mode, outcome string, d time.Duration) {
	if mode == "" {
		mode = "none"
	}
	traceComputationsTotal.WithLabelValues(mode, outcome).Inc()
	if outcome == OutcomeOK {
		traceDurationSeconds.WithLabelValues(mode).Observe(d.Seconds())
	}
}

// RecordBatch records the size of a batch trace request.
func RecordBatch(size int) {
	traceBatchSize.Observe(float64(size))
}

// RecordParseFailures adds n rejected element sets.
func RecordParseFailures(n int) {
	tleParseFailuresTotal.Add(float64(n))
}

// RecordFilterCount records one option-count pass over a dimension.
func RecordFilterCount(dimension string, scanned int, d time.Duration) {
	filterCountDurationSeconds.WithLabelValues(dimension).Observe(d.Seconds())
	filterCountScansTotal.WithLabelValues(dimension).Add(float64(scanned))
}

// RecordValueIndexRebuild counts a value index recomputation.
func RecordValueIndexRebuild() {
	valueIndexRebuildsTotal.Inc()
}

// SetCatalogSize publishes the catalog size.
func SetCatalogSize(total, traceable int) {
	catalogSatellites.WithLabelValues("total").Set(float64(total))
	catalogSatellites.WithLabelValues("traceable").Set(float64(traceable))
}

// CacheHit counts a trace cache hit.
func CacheHit() { cacheHitsTotal.Inc() }

// CacheMiss counts a trace cache miss.
func CacheMiss() { cacheMissesTotal.Inc() }

// CacheEvicted counts n evicted entries.
func CacheEvicted(n int) { cacheEvictionsTotal.Add(float64(n)) }

// SetCacheEntries publishes the current cache size.
func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }

// SetCacheCutoverActive flags a running cache cutover.
func SetCacheCutoverActive(active bool) {
	if active {
		cacheCutoverActive.Set(1)
	} else {
		cacheCutoverActive.Set(0)
	}
}

// ObserveCacheCutover records the duration of one cache cutover.
func ObserveCacheCutover(d time.Duration) { cacheCutoverDurationSeconds.Observe(d.Seconds()) }

// StreamOpened increments the open stream gauge.
func StreamOpened() { streamConnections.Inc() }

// StreamClosed decrements the open stream gauge.
func StreamClosed() { streamConnections.Dec() }

// StreamMessage counts one written event.
func StreamMessage(event string) { streamMessagesTotal.WithLabelValues(event).Inc() }

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/catalog/metadata": true,
	"/api/v1/tle/fetch":        true,
	"/api/v1/satellites":       true,
	"/api/v1/filters/options":  true,
	"/api/v1/traces":           true,
	"/api/v1/stream/traces":    true,
	"/api/v1/cache/stats":      true,
}

// normalizeRoute maps a request path to a bounded label set: parameterized
// routes collapse to their pattern and unknown paths to "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/satellites/"); ok {
		if id, ok := strings.CutSuffix(rest, "/trace"); ok && id != "" && !strings.Contains(id, "/") {
			return "/api/v1/satellites/{id}/trace"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so streaming handlers keep working.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
