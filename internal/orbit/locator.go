package orbit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Locator defaults.
const (
	DefaultSearchStep       = 3 * time.Minute
	DefaultSearchResolution = time.Second
	DefaultMinAbsLng        = 100.0
)

// Crossing is the outcome of an antimeridian search: either an anchor
// instant or none. The zero value is none.
type Crossing struct {
	at    time.Time
	found bool
}

func crossingAt(t time.Time) Crossing { return Crossing{at: t, found: true} }

// Anchor returns the first instant after the crossing and whether one was found.
func (c Crossing) Anchor() (time.Time, bool) { return c.at, c.found }

// Found reports whether a crossing was located.
func (c Crossing) Found() bool { return c.found }

func (c Crossing) String() string {
	if !c.found {
		return "none"
	}
	return c.at.UTC().Format(time.RFC3339Nano)
}

// Locator finds the most recent antimeridian crossing before a reference
// instant. It walks backward in Step increments and refines the bracket by
// bisection down to Resolution. Zero fields take the package defaults.
type Locator struct {
	// Step is the coarse backward sampling interval.
	Step time.Duration

	// Resolution is the width of the final bracket. Sample instants are
	// aligned to it, so anchors are stable across calls.
	Resolution time.Duration

	// MinAbsLng is the magnitude both bracketing longitudes must exceed for a
	// sign change to count as an antimeridian crossing rather than a
	// prime-meridian one.
	MinAbsLng float64

	// MaxLookback bounds the search. Zero means one orbital period.
	MaxLookback time.Duration
}

func (l *Locator) params(period time.Duration) (step, res, lookback time.Duration, minAbs float64) {
	step, res, lookback, minAbs = l.Step, l.Resolution, l.MaxLookback, l.MinAbsLng
	if step <= 0 {
		step = DefaultSearchStep
	}
	if res <= 0 {
		res = DefaultSearchResolution
	}
	if lookback <= 0 {
		lookback = period
	}
	if minAbs <= 0 {
		minAbs = DefaultMinAbsLng
	}
	return step, res, lookback, minAbs
}

// LastCrossingBefore returns the latest antimeridian crossing within the
// lookback window ending at ref. The anchor is the later instant of the
// final bracket, i.e. the first resolution-aligned sample east of the
// antimeridian for a prograde pass. No crossing is a normal outcome; a
// non-positive period always yields none.
func (l *Locator) LastCrossingBefore(ctx context.Context, prop Propagator, period time.Duration, ref time.Time) (Crossing, error) {
	if period <= 0 {
		return Crossing{}, nil
	}
	step, res, lookback, minAbs := l.params(period)

	hi := ref.Truncate(res)
	earliest := hi.Add(-lookback)
	if aligned := earliest.Truncate(res); aligned.Before(earliest) {
		earliest = aligned.Add(res)
	}
	hiLng, err := longitudeAt(prop, hi)
	if err != nil {
		return Crossing{}, err
	}

	for hi.After(earliest) {
		if err := ctx.Err(); err != nil {
			return Crossing{}, err
		}

		lo := hi.Add(-step)
		if lo.Before(earliest) {
			lo = earliest
		}
		loLng, err := longitudeAt(prop, lo)
		if err != nil {
			return Crossing{}, err
		}

		if isAntimeridianCrossing(loLng, hiLng, minAbs) {
			anchor, err := bisect(ctx, prop, lo, hi, loLng, res)
			if err != nil {
				return Crossing{}, err
			}
			return crossingAt(anchor), nil
		}
		hi, hiLng = lo, loLng
	}
	return Crossing{}, nil
}

// bisect narrows [lo, hi] around the sign change until it is one resolution
// wide and returns hi.
func bisect(ctx context.Context, prop Propagator, lo, hi time.Time, loLng float64, res time.Duration) (time.Time, error) {
	for hi.Sub(lo) > res {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}
		mid := lo.Add(hi.Sub(lo) / 2).Truncate(res)
		if !mid.After(lo) {
			mid = lo.Add(res)
		}
		midLng, err := longitudeAt(prop, mid)
		if err != nil {
			return time.Time{}, err
		}
		if east(midLng) != east(loLng) {
			hi = mid
		} else {
			lo, loLng = mid, midLng
		}
	}
	return hi, nil
}

func longitudeAt(prop Propagator, t time.Time) (float64, error) {
	_, lng, err := prop.PositionAt(t)
	if err != nil {
		return 0, fmt.Errorf("locating antimeridian crossing at %s: %w", t.UTC().Format(time.RFC3339), err)
	}
	return lng, nil
}

func east(lng float64) bool { return lng >= 0 }

// isAntimeridianCrossing reports a sign change between two longitudes that
// are both far from the prime meridian.
func isAntimeridianCrossing(a, b, minAbs float64) bool {
	return east(a) != east(b) && math.Abs(a) > minAbs && math.Abs(b) > minAbs
}
