package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/filter"
	"github.com/jakifasty/orbiteye/internal/orbit"
)

// DefaultLimit caps how many satellites a selection traces when the caller
// gives no limit.
const DefaultLimit = 10

var (
	// ErrNoDataset is returned before any catalog has been loaded.
	ErrNoDataset = errors.New("no catalog loaded")
	// ErrUnknownSatellite is returned for an ID not in the current catalog.
	ErrUnknownSatellite = errors.New("unknown satellite")
)

// Config holds trace service parameters.
type Config struct {
	Workers int
	Step    time.Duration
	Limit   int
}

// Selection describes which satellites a filtered request traces.
type Selection struct {
	// Matched counts traceable satellites satisfying the filter.
	Matched int `json:"matched"`
	// Selected is the number actually traced after the limit.
	Selected int `json:"selected"`
	// Limit is the cap that was applied.
	Limit int `json:"limit"`
	// Step is the sampling interval used.
	Step time.Duration `json:"-"`
	// Ref is the reference time shared by every trace of the request.
	Ref time.Time `json:"ref"`

	sats []catalog.Satellite
}

// Truncated reports whether the limit dropped matching satellites.
func (s Selection) Truncated() bool { return s.Selected < s.Matched }

// Service serves trace requests against the current catalog.
type Service struct {
	store    *catalog.Store
	computer Computer
	pool     *WorkerPool
	config   Config
	logger   *slog.Logger

	// Now is the reference clock.
	Now func() time.Time
}

// NewService creates a trace service.
func NewService(store *catalog.Store, computer Computer, config Config, logger *slog.Logger) *Service {
	if config.Step <= 0 {
		config.Step = orbit.DefaultStep
	}
	if config.Limit <= 0 {
		config.Limit = DefaultLimit
	}
	return &Service{
		store:    store,
		computer: computer,
		pool:     NewWorkerPool(config.Workers, logger),
		config:   config,
		logger:   logger,
		Now:      time.Now,
	}
}

// DefaultStep returns the configured sampling interval.
func (s *Service) DefaultStep() time.Duration { return s.config.Step }

// DefaultLimit returns the configured selection limit.
func (s *Service) DefaultLimit() int { return s.config.Limit }

// Trace computes the ground trace of the satellite with the given ID.
func (s *Service) Trace(ctx context.Context, id string, step time.Duration) (*orbit.Trace, error) {
	ds := s.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}
	sat, ok := ds.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSatellite, id)
	}
	return computeOne(ctx, s.computer, sat, step, s.Now())
}

// Select applies settings to the traceable satellites of the current
// catalog and caps the selection at limit (the configured limit when
// limit <= 0).
func (s *Service) Select(settings filter.Settings, step time.Duration, limit int) (Selection, error) {
	ds := s.store.Get()
	if ds == nil {
		return Selection{}, ErrNoDataset
	}
	if limit <= 0 {
		limit = s.config.Limit
	}
	matched := filter.Select(ds.Traceable(), settings.Predicate())
	sel := Selection{
		Matched: len(matched),
		Limit:   limit,
		Step:    step,
		Ref:     s.Now(),
		sats:    matched,
	}
	if len(sel.sats) > limit {
		sel.sats = sel.sats[:limit]
	}
	sel.Selected = len(sel.sats)
	return sel, nil
}

// TraceMatching traces the satellites selected by settings.
func (s *Service) TraceMatching(ctx context.Context, settings filter.Settings, step time.Duration, limit int) (Selection, *Result, error) {
	sel, err := s.Select(settings, step, limit)
	if err != nil {
		return Selection{}, nil, err
	}
	res, err := s.pool.TraceBatch(ctx, s.computer, sel.sats, step, sel.Ref)
	if err != nil {
		return Selection{}, nil, err
	}
	s.logger.Debug("traced selection",
		"filter", settings.String(),
		"matched", sel.Matched,
		"traced", len(res.Traces),
		"failed", len(res.Failures),
	)
	return sel, res, nil
}

// StreamMatching is TraceMatching delivering outcomes as they finish. The
// selection is known before the first outcome arrives.
func (s *Service) StreamMatching(ctx context.Context, settings filter.Settings, step time.Duration, limit int) (Selection, <-chan Outcome, error) {
	sel, err := s.Select(settings, step, limit)
	if err != nil {
		return Selection{}, nil, err
	}
	return sel, s.pool.Stream(ctx, s.computer, sel.sats, step, sel.Ref), nil
}
