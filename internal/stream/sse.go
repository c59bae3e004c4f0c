// Package stream implements Server-Sent Events (SSE) streaming of ground
// traces. Clients connect via GET /api/v1/stream/traces with the same filter
// parameters as the batch endpoint and receive one message per satellite as
// soon as its trace is computed.
//
// SSE message format:
//
//	data: {"type":"trace","feature":{"type":"Feature","geometry":{"type":"LineString",...}}}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","request_id":"...","matched":42,"selected":10,...}\n\n
//
// Failed satellites produce "error" messages, and a final "done" message
// closes the stream. A newer request with the same session parameter
// supersedes a running one, which ends with a "superseded" message.
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval while traces
// are being computed.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/filter"
	"github.com/jakifasty/orbiteye/internal/httputil"
	"github.com/jakifasty/orbiteye/internal/metrics"
	"github.com/jakifasty/orbiteye/internal/trace"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxConcurrent      int           // Max concurrent streams overall (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 15s).
	TrustProxy         bool          // Honor proxy headers for client IPs.
}

// Handler manages SSE streaming connections.
type Handler struct {
	service  *trace.Service
	store    *catalog.Store
	registry *filter.Registry
	latest   *trace.Latest
	config   Config
	limiter  *streamLimiter
	logger   *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(service *trace.Service, store *catalog.Store, registry *filter.Registry, latest *trace.Latest, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 15 * time.Second
	}
	return &Handler{
		service:  service,
		store:    store,
		registry: registry,
		latest:   latest,
		config:   config,
		limiter:  newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:   logger,
	}
}

// HandleTraces serves the SSE trace stream.
// GET /api/v1/stream/traces?orbit_class=LEO&owner=US&limit=10&step_ms=1000&session=tab-1
func (h *Handler) HandleTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	settings, err := filter.ParseQuery(h.registry, q)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	step, err := httputil.ParseStep(q, h.service.DefaultStep())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := httputil.ParseLimit(q, h.service.DefaultLimit())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	session := q.Get("session")
	if session == "" {
		session = uuid.NewString()
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.StreamMessage("rate_limited")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}
	defer h.limiter.release(ip)

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, requestID, done := h.latest.Begin(r.Context(), session)
	defer done()

	sel, outcomes, err := h.service.StreamMatching(ctx, settings, step, limit)
	if err != nil {
		if errors.Is(err, trace.ErrNoDataset) {
			httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.StreamOpened()
	startTime := time.Now()
	var c *client
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"request_id", requestID,
		"session", session,
		"filter", settings.String(),
		"selected", sel.Selected,
	)
	defer func() {
		metrics.StreamClosed()
		var sent, written int64
		if c != nil {
			sent, written = c.messagesSent, c.bytesSent
		}
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"request_id", requestID,
			"duration_ms", time.Since(startTime).Milliseconds(),
			"messages_sent", sent,
			"bytes_sent", written,
		)
	}()

	// Set SSE response headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Use ResponseController to manage write deadlines for long-lived SSE.
	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c = &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Send jittered retry interval (3-7s) to prevent thundering-herd
	// reconnection storms when the server restarts.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	if err := c.sendJSON("metadata", h.metadata(requestID, session, sel)); err != nil {
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	var traces, failures int
	for {
		select {
		case <-ctx.Done():
			h.finishCanceled(ctx, c, requestID)
			return

		case o, ok := <-outcomes:
			if ctx.Err() != nil {
				h.finishCanceled(ctx, c, requestID)
				return
			}
			if !ok {
				err := c.sendJSON("done", doneMessage{
					Type:      "done",
					RequestID: requestID,
					Traces:    traces,
					Failures:  failures,
					ElapsedMS: time.Since(startTime).Milliseconds(),
				})
				if err != nil {
					h.logger.Warn("stream send error (done)", "remote_ip", ip, "error", err)
				}
				return
			}

			var err error
			if o.Failure != nil {
				failures++
				err = c.sendJSON("error", errorMessage{
					Type:        "error",
					SatelliteID: o.Failure.SatelliteID,
					Error:       o.Failure.Err.Error(),
				})
			} else {
				traces++
				err = c.sendJSON("trace", traceMessage{Type: "trace", Feature: trace.Feature(o.Trace)})
			}
			if err != nil {
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// finishCanceled tells a superseded client why its stream ended. A client
// that went away gets nothing.
func (h *Handler) finishCanceled(ctx context.Context, c *client, requestID string) {
	if !trace.Superseded(ctx) {
		return
	}
	if err := c.sendJSON("superseded", supersededMessage{Type: "superseded", RequestID: requestID}); err != nil {
		h.logger.Debug("stream send error (superseded)", "remote_ip", c.ip, "error", err)
	}
}

func (h *Handler) metadata(requestID, session string, sel trace.Selection) metadataMessage {
	msg := metadataMessage{
		Type:      "metadata",
		RequestID: requestID,
		Session:   session,
		Matched:   sel.Matched,
		Selected:  sel.Selected,
		Limit:     sel.Limit,
		Truncated: sel.Truncated(),
		StepMS:    sel.Step.Milliseconds(),
		Ref:       sel.Ref.UTC().Format(time.RFC3339Nano),
	}
	if ds := h.store.Get(); ds != nil {
		msg.CatalogSource = ds.Source
		msg.CatalogLoadedAt = ds.LoadedAt.UTC().Format(time.RFC3339)
	}
	return msg
}

// SSE message payload types.

type metadataMessage struct {
	Type            string `json:"type"`
	RequestID       string `json:"request_id"`
	Session         string `json:"session"`
	Matched         int    `json:"matched"`
	Selected        int    `json:"selected"`
	Limit           int    `json:"limit"`
	Truncated       bool   `json:"truncated"`
	StepMS          int64  `json:"step_ms"`
	Ref             string `json:"ref"`
	CatalogSource   string `json:"catalog_source,omitempty"`
	CatalogLoadedAt string `json:"catalog_loaded_at,omitempty"`
}

type traceMessage struct {
	Type    string           `json:"type"`
	Feature *geojson.Feature `json:"feature"`
}

type errorMessage struct {
	Type        string `json:"type"`
	SatelliteID string `json:"satellite_id"`
	Error       string `json:"error"`
}

type doneMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Traces    int    `json:"traces"`
	Failures  int    `json:"failures"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

type supersededMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}
