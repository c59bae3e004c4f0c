// Package api wires the HTTP surface: probes, metrics, catalog and filter
// queries, ground traces and the element-set sync.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jakifasty/orbiteye/internal/auth"
	"github.com/jakifasty/orbiteye/internal/cache"
	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/filter"
	"github.com/jakifasty/orbiteye/internal/health"
	"github.com/jakifasty/orbiteye/internal/httputil"
	"github.com/jakifasty/orbiteye/internal/metrics"
	"github.com/jakifasty/orbiteye/internal/stream"
	"github.com/jakifasty/orbiteye/internal/trace"
)

// Deps are the components the server routes to. Cache and TLE may be nil.
type Deps struct {
	Auth       auth.Config
	TrustProxy bool

	Catalog  *catalog.Store
	Registry *filter.Registry
	Counter  *filter.Counter
	Traces   *trace.Service
	Latest   *trace.Latest
	Stream   *stream.Handler
	Cache    *cache.TraceCache
	TLE      *TLESync
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(logger, deps),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with its middleware chain:
// metrics -> logging -> auth -> mux.
func NewHandler(logger *slog.Logger, deps Deps) http.Handler {
	h := &handlers{deps: deps, logger: logger}
	ready := health.NewReadiness(deps.Catalog)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", ready.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/catalog/metadata", h.catalogMetadata)
	mux.HandleFunc("POST /api/v1/tle/fetch", h.tleFetch)
	mux.HandleFunc("GET /api/v1/satellites", h.satellites)
	mux.HandleFunc("GET /api/v1/filters/options", h.filterOptions)
	mux.HandleFunc("GET /api/v1/satellites/{id}/trace", h.satelliteTrace)
	mux.HandleFunc("GET /api/v1/traces", h.traces)
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/traces", deps.Stream.HandleTraces)
	}
	if deps.Cache != nil {
		mux.HandleFunc("GET /api/v1/cache/stats", h.cacheStats)
	}

	var handler http.Handler = mux
	handler = auth.Middleware(deps.Auth)(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE responses streaming through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
