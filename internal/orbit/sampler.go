package orbit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/tle"
	"github.com/jakifasty/orbiteye/internal/transform"
)

// Sampler defaults.
const (
	DefaultStep           = time.Second
	DefaultFallbackWindow = day / 4
	DefaultFallbackStep   = time.Minute
)

// Sampler computes ground traces. It holds no per-trace state and is safe
// for concurrent use.
type Sampler struct {
	factory PropagatorFactory
	logger  *slog.Logger

	// Locator anchors traces on the antimeridian.
	Locator Locator

	// FallbackWindow and FallbackStep bound traces of orbits that never
	// cross the antimeridian. They are never widened to look for one.
	FallbackWindow time.Duration
	FallbackStep   time.Duration

	// Now is the clock GroundTrace samples from.
	Now func() time.Time
}

// NewSampler creates a Sampler with default locator and fallback settings.
func NewSampler(factory PropagatorFactory, logger *slog.Logger) *Sampler {
	return &Sampler{
		factory:        factory,
		logger:         logger,
		FallbackWindow: DefaultFallbackWindow,
		FallbackStep:   DefaultFallbackStep,
		Now:            time.Now,
	}
}

// GroundTrace is GroundTraceAt with the sampler's clock as reference time.
func (s *Sampler) GroundTrace(ctx context.Context, sat *catalog.Satellite, step time.Duration) (*Trace, error) {
	return s.GroundTraceAt(ctx, sat, step, s.Now())
}

// GroundTraceAt computes the ground trace of sat relative to ref.
//
// When a crossing is found at T the trace samples T+k*step for every k with
// T+k*step < T+period. Otherwise it samples ref+k*FallbackStep across
// FallbackWindow and ignores step. A non-positive step yields an empty
// trace in either mode.
//
// Elements with an invalid period yield a fallback trace, never an error.
// When the propagator also rejects them the trace has no points.
//
// A satellite without elements fails with *MissingElementsError and an
// unparsable element set with *tle.MalformedElementsError. No partial trace
// is returned on error, including cancellation.
func (s *Sampler) GroundTraceAt(ctx context.Context, sat *catalog.Satellite, step time.Duration, ref time.Time) (*Trace, error) {
	if !sat.HasElements() {
		return nil, &MissingElementsError{SatelliteID: sat.ID}
	}
	el, err := tle.ParseElements(sat.TLE)
	if err != nil {
		return nil, fmt.Errorf("satellite %s: %w", sat.ID, err)
	}
	tr := &Trace{SatelliteID: sat.ID, Step: step}

	period, periodErr := AveragePeriod(el)
	if periodErr != nil {
		s.logger.Debug("invalid orbit, using fallback window", "satellite_id", sat.ID, "error", periodErr)
	}

	prop, err := s.factory(el)
	if err != nil {
		if periodErr != nil {
			// No propagator accepts the elements: a fallback trace with
			// no points.
			s.fallback(tr, ref)
			tr.Points = []GroundPoint{}
			return tr, nil
		}
		return nil, fmt.Errorf("satellite %s: initializing propagator: %w", sat.ID, err)
	}

	var crossing Crossing
	if periodErr == nil {
		tr.Period = period
		crossing, err = s.Locator.LastCrossingBefore(ctx, prop, period, ref)
		if err != nil {
			return nil, fmt.Errorf("satellite %s: %w", sat.ID, err)
		}
	}

	if anchor, ok := crossing.Anchor(); ok {
		tr.Mode = Anchored
		tr.Start = anchor
		tr.Span = period
	} else {
		s.logger.Debug("no antimeridian crossing, using fallback window",
			"satellite_id", sat.ID,
			"period", period,
		)
		s.fallback(tr, ref)
	}

	if step <= 0 {
		tr.Points = []GroundPoint{}
		return tr, nil
	}

	points, err := sample(ctx, prop, tr.Start, tr.Step, tr.Span)
	if err != nil {
		return nil, fmt.Errorf("satellite %s: %w", sat.ID, err)
	}
	tr.Points = points
	return tr, nil
}

func (s *Sampler) fallback(tr *Trace, ref time.Time) {
	tr.Mode = Fallback
	tr.Start = ref
	tr.Step = s.fallbackStep()
	tr.Span = s.fallbackWindow()
}

func (s *Sampler) fallbackWindow() time.Duration {
	if s.FallbackWindow > 0 {
		return s.FallbackWindow
	}
	return DefaultFallbackWindow
}

func (s *Sampler) fallbackStep() time.Duration {
	if s.FallbackStep > 0 {
		return s.FallbackStep
	}
	return DefaultFallbackStep
}

// sample propagates start+k*step for every k with k*step < span.
func sample(ctx context.Context, prop Propagator, start time.Time, step, span time.Duration) ([]GroundPoint, error) {
	n := 1
	if step < span {
		n = int(span/step) + 1
	}
	points := make([]GroundPoint, 0, n)
	for off := time.Duration(0); off < span; off += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := start.Add(off)
		lat, lng, err := prop.PositionAt(t)
		if err != nil {
			return nil, fmt.Errorf("propagating at %s: %w", t.UTC().Format(time.RFC3339), err)
		}
		points = append(points, GroundPoint{
			Lng:  transform.NormalizeLongitude(lng),
			Lat:  lat,
			Time: t,
		})
		if step > span-off {
			break
		}
	}
	return points, nil
}
