package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/filter"
	"github.com/jakifasty/orbiteye/internal/httputil"
	"github.com/jakifasty/orbiteye/internal/orbit"
	"github.com/jakifasty/orbiteye/internal/tle"
	"github.com/jakifasty/orbiteye/internal/trace"
)

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"service": "orbiteye",
		"routes": []string{
			"/api/v1/catalog/metadata",
			"/api/v1/satellites",
			"/api/v1/filters/options",
			"/api/v1/satellites/{id}/trace",
			"/api/v1/traces",
			"/api/v1/stream/traces",
		},
	})
}

// dataset returns the loaded catalog or writes 503.
func (h *handlers) dataset(w http.ResponseWriter) (*catalog.Dataset, bool) {
	ds := h.deps.Catalog.Get()
	if ds == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "no catalog loaded")
		return nil, false
	}
	return ds, true
}

type catalogMetadata struct {
	Source     string      `json:"source"`
	LoadedAt   time.Time   `json:"loaded_at"`
	AgeSeconds float64     `json:"age_seconds"`
	Hash       string      `json:"hash"`
	Satellites int         `json:"satellites"`
	Traceable  int         `json:"traceable"`
	Elements   *SyncResult `json:"elements,omitempty"`
}

// GET /api/v1/catalog/metadata
func (h *handlers) catalogMetadata(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.dataset(w)
	if !ok {
		return
	}
	md := catalogMetadata{
		Source:     ds.Source,
		LoadedAt:   ds.LoadedAt,
		AgeSeconds: h.deps.Catalog.AgeSeconds(),
		Hash:       strconv.FormatUint(ds.Hash, 16),
		Satellites: ds.Len(),
		Traceable:  len(ds.Traceable()),
	}
	if h.deps.TLE != nil {
		if last, ok := h.deps.TLE.Last(); ok {
			md.Elements = &last
		}
	}
	httputil.WriteJSON(w, http.StatusOK, md)
}

// POST /api/v1/tle/fetch
func (h *handlers) tleFetch(w http.ResponseWriter, r *http.Request) {
	if h.deps.TLE == nil || !h.deps.TLE.Enabled() {
		httputil.WriteError(w, http.StatusForbidden, ErrFetchDisabled.Error())
		return
	}
	res, err := h.deps.TLE.Fetch(r.Context())
	if err != nil {
		h.logger.Error("TLE fetch failed", "error", err)
		httputil.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// GET /api/v1/satellites?orbit_class=LEO&owner=US
func (h *handlers) satellites(w http.ResponseWriter, r *http.Request) {
	settings, err := filter.ParseQuery(h.deps.Registry, r.URL.Query())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, ok := h.dataset(w)
	if !ok {
		return
	}
	sats := filter.Select(ds.Satellites, settings.Predicate())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"total":      ds.Len(),
		"count":      len(sats),
		"satellites": sats,
	})
}

// GET /api/v1/filters/options?owner=US[&dimension=orbit_class]
func (h *handlers) filterOptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	settings, err := filter.ParseQuery(h.deps.Registry, q)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	ds, ok := h.dataset(w)
	if !ok {
		return
	}

	if dim := q.Get("dimension"); dim != "" {
		opts, err := h.deps.Counter.Options(ds, settings, dim)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, filter.DimensionOptions{
			Dimension: dim,
			Selected:  settings.Selected(dim),
			Options:   opts,
		})
		return
	}

	all, err := h.deps.Counter.AllOptions(ds, settings)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"matched":    filter.CountMatching(ds.Satellites, settings.Predicate()),
		"dimensions": all,
	})
}

// GET /api/v1/satellites/{id}/trace?step_ms=1000
func (h *handlers) satelliteTrace(w http.ResponseWriter, r *http.Request) {
	step, err := httputil.ParseStep(r.URL.Query(), h.deps.Traces.DefaultStep())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")

	tr, err := h.deps.Traces.Trace(r.Context(), id, step)
	if err != nil {
		h.writeTraceError(w, id, err)
		return
	}
	writeGeoJSON(w, trace.Feature(tr))
}

func (h *handlers) writeTraceError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, trace.ErrNoDataset):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, trace.ErrUnknownSatellite):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orbit.ErrMissingElements), errors.Is(err, tle.ErrMalformedElements):
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		h.logger.Error("trace failed", "satellite_id", id, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

type tracesResponse struct {
	RequestID string                     `json:"request_id"`
	Matched   int                        `json:"matched"`
	Selected  int                        `json:"selected"`
	Limit     int                        `json:"limit"`
	Truncated bool                       `json:"truncated"`
	StepMS    int64                      `json:"step_ms"`
	Ref       time.Time                  `json:"ref"`
	Traces    *geojson.FeatureCollection `json:"traces"`
	Failures  []trace.FailureJSON        `json:"failures"`
}

// GET /api/v1/traces?orbit_class=LEO&limit=10&step_ms=1000[&session=tab-1]
//
// A request carrying the session of one still in flight cancels it; the
// older request answers 409.
func (h *handlers) traces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	settings, err := filter.ParseQuery(h.deps.Registry, q)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	step, err := httputil.ParseStep(q, h.deps.Traces.DefaultStep())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := httputil.ParseLimit(q, h.deps.Traces.DefaultLimit())
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	requestID := uuid.NewString()
	if session := q.Get("session"); session != "" && h.deps.Latest != nil {
		var done func()
		ctx, requestID, done = h.deps.Latest.Begin(ctx, session)
		defer done()
	}

	sel, res, err := h.deps.Traces.TraceMatching(ctx, settings, step, limit)
	if err != nil {
		switch {
		case trace.Superseded(ctx):
			httputil.WriteError(w, http.StatusConflict, "superseded by a newer request")
		case errors.Is(err, trace.ErrNoDataset):
			httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, context.Canceled):
		default:
			h.logger.Error("batch trace failed", "request_id", requestID, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tracesResponse{
		RequestID: requestID,
		Matched:   sel.Matched,
		Selected:  sel.Selected,
		Limit:     sel.Limit,
		Truncated: sel.Truncated(),
		StepMS:    sel.Step.Milliseconds(),
		Ref:       sel.Ref.UTC(),
		Traces:    trace.FeatureCollection(res.Traces),
		Failures:  trace.FailuresJSON(res.Failures),
	})
}

// GET /api/v1/cache/stats
func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.deps.Cache.Stats())
}

func writeGeoJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
