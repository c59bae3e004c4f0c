package trace

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/orbit"
	"github.com/jakifasty/orbiteye/internal/tle"
)

const (
	// Synthetic geostationary set.
	geoLine1 = "1 41866U 16071A   24100.50000000 -.00000099  00000+0  00000+0 0  9999"
	geoLine2 = "2 41866   0.0500  90.0000 0001000   0.0000 213.2245  1.00273791 28001"

	// Synthetic set at 16 rev/day: period exactly 90 minutes.
	leoLine1 = "1 90001U 24001A   24100.50000000  .00000000  00000+0  00000+0 0  9997"
	leoLine2 = "2 90001  51.6000 100.0000 0001000   0.0000   0.0000 16.00000000    14"

	// leoLine1 with a corrupted checksum digit.
	badLine1 = "1 90001U 24001A   24100.50000000  .00000000  00000+0  00000+0 0  9990"
)

const leoPeriod = 90 * time.Minute

// t0 is the instant the fake LEO crosses the antimeridian.
var t0 = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// linearOrbit moves east at 360° per period and is at -180° at crossing.
func linearOrbit(crossing time.Time, period time.Duration) orbit.PropagatorFunc {
	return func(t time.Time) (float64, float64, error) {
		frac := float64(t.Sub(crossing)) / float64(period)
		frac -= math.Floor(frac)
		return 51.6 * math.Sin(2*math.Pi*frac), -180 + 360*frac, nil
	}
}

func fakeFactory(el *tle.Elements) (orbit.Propagator, error) {
	switch el.NORADID {
	case 41866:
		return orbit.PropagatorFunc(func(time.Time) (float64, float64, error) { return 0, -75, nil }), nil
	case 90001:
		return linearOrbit(t0, leoPeriod), nil
	}
	return nil, errors.New("no fake propagator")
}

func fakeSampler() *orbit.Sampler {
	return orbit.NewSampler(fakeFactory, testLogger())
}

func testSatellites() []catalog.Satellite {
	return []catalog.Satellite{
		{ID: "geo", NORADID: 41866, Owner: "US", OrbitClass: catalog.OrbitGEO, TLE: geoLine1 + "\n" + geoLine2},
		{ID: "leo", NORADID: 90001, Owner: "US", OrbitClass: catalog.OrbitLEO, TLE: leoLine1 + "\n" + leoLine2},
		{ID: "bad", NORADID: 90001, Owner: "PRC", OrbitClass: catalog.OrbitLEO, TLE: badLine1 + "\n" + leoLine2},
		{ID: "bare", Owner: "US", OrbitClass: catalog.OrbitLEO},
	}
}

func testStore() *catalog.Store {
	s := catalog.NewStore()
	s.Set(catalog.NewDataset("test", t0, testSatellites()))
	return s
}
