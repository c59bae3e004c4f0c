package orbit

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/tle"
)

const (
	noaa19Line1 = "1 33591U 09005A   25074.18988975  .00000419  00000+0  24768-3 0  9991"
	noaa19Line2 = "2 33591  99.0072 138.3781 0012918 245.4492 114.5334 14.13308947829901"

	// Synthetic geostationary set parked near 75°W at its epoch.
	geoLine1 = "1 41866U 16071A   24100.50000000 -.00000099  00000+0  00000+0 0  9999"
	geoLine2 = "2 41866   0.0500  90.0000 0001000   0.0000 213.2245  1.00273791 28001"

	// Synthetic set at 16 rev/day: period exactly 90 minutes.
	leoLine1 = "1 90001U 24001A   24100.50000000  .00000000  00000+0  00000+0 0  9997"
	leoLine2 = "2 90001  51.6000 100.0000 0001000   0.0000   0.0000 16.00000000    14"

	// Synthetic set with zero mean motion.
	stalledLine1 = "1 90002U 24001B   24100.50000000  .00000000  00000+0  00000+0 0  9998"
	stalledLine2 = "2 90002  51.6000 100.0000 0001000   0.0000   0.0000  0.00000000    18"
)

const leoPeriod = 90 * time.Minute

// t0 is the instant the fake LEO crosses the antimeridian westward-to-eastward.
var t0 = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func satellite(id, l1, l2 string) *catalog.Satellite {
	return &catalog.Satellite{ID: id, TLE: l1 + "\n" + l2}
}

func mustParse(t *testing.T, l1, l2 string) *tle.Elements {
	t.Helper()
	el, err := tle.ParseElements(l1 + "\n" + l2)
	if err != nil {
		t.Fatalf("ParseElements: %v", err)
	}
	return el
}

// linearOrbit moves east at 360° per period and is at -180° at crossing.
func linearOrbit(crossing time.Time, period time.Duration) PropagatorFunc {
	return func(t time.Time) (float64, float64, error) {
		frac := float64(t.Sub(crossing)) / float64(period)
		frac -= math.Floor(frac)
		lng := -180 + 360*frac
		lat := 51.6 * math.Sin(2*math.Pi*frac)
		return lat, lng, nil
	}
}

// fixedPoint never moves.
func fixedPoint(lat, lng float64) PropagatorFunc {
	return func(time.Time) (float64, float64, error) { return lat, lng, nil }
}

// fakeFactory routes element sets to fake propagators by catalog number.
func fakeFactory(byNORAD map[int]Propagator) PropagatorFactory {
	return func(el *tle.Elements) (Propagator, error) {
		p, ok := byNORAD[el.NORADID]
		if !ok {
			return nil, errors.New("no fake propagator")
		}
		return p, nil
	}
}

// countingPropagator counts PositionAt calls.
type countingPropagator struct {
	Propagator
	calls atomic.Int64
}

func (c *countingPropagator) PositionAt(t time.Time) (float64, float64, error) {
	c.calls.Add(1)
	return c.Propagator.PositionAt(t)
}
