package orbit

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/tle"
)

func fakeSampler() *Sampler {
	s := NewSampler(fakeFactory(map[int]Propagator{
		90001: linearOrbit(t0, leoPeriod),
		90002: linearOrbit(t0, leoPeriod),
		41866: fixedPoint(0.01, -75),
	}), testLogger())
	s.Now = func() time.Time { return t0.Add(37 * time.Minute) }
	return s
}

func checkOrdered(t *testing.T, tr *Trace) {
	t.Helper()
	for i, p := range tr.Points {
		if p.Lng < -180 || p.Lng >= 180 {
			t.Fatalf("point %d: lng %v outside [-180, 180)", i, p.Lng)
		}
		if i == 0 {
			continue
		}
		if d := p.Time.Sub(tr.Points[i-1].Time); d != tr.Step {
			t.Fatalf("point %d: gap %v, want %v", i, d, tr.Step)
		}
	}
}

func TestGroundTraceAnchored(t *testing.T) {
	s := fakeSampler()
	tr, err := s.GroundTrace(context.Background(), satellite("leo", leoLine1, leoLine2), DefaultStep)
	if err != nil {
		t.Fatalf("GroundTrace: %v", err)
	}

	if tr.Mode != Anchored {
		t.Fatalf("Mode = %v, want anchored", tr.Mode)
	}
	if !tr.Start.Equal(t0) || tr.Span != leoPeriod || tr.Period != leoPeriod {
		t.Errorf("Start/Span/Period = %v/%v/%v", tr.Start, tr.Span, tr.Period)
	}
	// [T0, T0+90m) at 1 s: exactly 5400 points.
	if len(tr.Points) != 5400 {
		t.Fatalf("got %d points, want 5400", len(tr.Points))
	}
	if first := tr.Points[0]; !first.Time.Equal(t0) || first.Lng != -180 {
		t.Errorf("first point = %+v, want -180 at T0", first)
	}
	if last := tr.Points[len(tr.Points)-1]; !last.Time.Equal(t0.Add(leoPeriod - time.Second)) {
		t.Errorf("last point at %v, want T0+P-1s", last.Time)
	}
	if !tr.End().Equal(t0.Add(leoPeriod)) {
		t.Errorf("End = %v", tr.End())
	}
	checkOrdered(t, tr)
}

func TestGroundTraceStepCounts(t *testing.T) {
	s := fakeSampler()
	sat := satellite("leo", leoLine1, leoLine2)
	ref := t0.Add(time.Hour)

	tests := []struct {
		step time.Duration
		want int
	}{
		{time.Second, 5400},
		{7 * time.Second, 772}, // 771*7 = 5397 < 5400
		{time.Minute, 90},
		{500 * time.Millisecond, 10800},
		{leoPeriod, 1},
		{2 * time.Hour, 1},
		{time.Duration(math.MaxInt64), 1},
		{0, 0},
		{-time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.step.String(), func(t *testing.T) {
			tr, err := s.GroundTraceAt(context.Background(), sat, tt.step, ref)
			if err != nil {
				t.Fatalf("GroundTraceAt: %v", err)
			}
			if len(tr.Points) != tt.want {
				t.Errorf("got %d points, want %d", len(tr.Points), tt.want)
			}
			if tr.Points == nil {
				t.Error("Points must be non-nil")
			}
			if len(tr.Points) > 0 && !tr.Points[0].Time.Equal(t0) {
				t.Errorf("first point at %v, want T0", tr.Points[0].Time)
			}
			for _, p := range tr.Points {
				if !p.Time.Before(t0.Add(leoPeriod)) {
					t.Fatalf("point at %v is outside [T0, T0+P)", p.Time)
				}
			}
		})
	}
}

func TestGroundTraceFallbackStationary(t *testing.T) {
	s := fakeSampler()
	ref := t0.Add(123 * time.Second)
	tr, err := s.GroundTraceAt(context.Background(), satellite("geo", geoLine1, geoLine2), DefaultStep, ref)
	if err != nil {
		t.Fatalf("GroundTraceAt: %v", err)
	}
	if tr.Mode != Fallback {
		t.Fatalf("Mode = %v, want fallback", tr.Mode)
	}
	if len(tr.Points) != 360 {
		t.Errorf("got %d points, want 360", len(tr.Points))
	}
	if !tr.Start.Equal(ref) || tr.Step != time.Minute || tr.Span != 6*time.Hour {
		t.Errorf("Start/Step/Span = %v/%v/%v", tr.Start, tr.Step, tr.Span)
	}
	if tr.Period <= 0 {
		t.Errorf("Period = %v, want the estimated period", tr.Period)
	}
	checkOrdered(t, tr)
}

func TestGroundTraceFallbackInvalidOrbit(t *testing.T) {
	s := fakeSampler()
	ref := t0.Add(37 * time.Minute)
	tr, err := s.GroundTraceAt(context.Background(), satellite("stalled", stalledLine1, stalledLine2), 5*time.Second, ref)
	if err != nil {
		t.Fatalf("GroundTraceAt: %v", err)
	}
	// The propagator would cross the antimeridian, but with no period the
	// sampler never searches.
	if tr.Mode != Fallback || tr.Period != 0 {
		t.Fatalf("Mode/Period = %v/%v, want fallback/0", tr.Mode, tr.Period)
	}
	if len(tr.Points) != 360 || !tr.Points[0].Time.Equal(ref) {
		t.Errorf("got %d points starting %v", len(tr.Points), tr.Points[0].Time)
	}
}

func TestGroundTraceFallbackBounded(t *testing.T) {
	s := fakeSampler()
	s.FallbackWindow = 10 * time.Minute
	s.FallbackStep = 3 * time.Minute
	tr, err := s.GroundTraceAt(context.Background(), satellite("geo", geoLine1, geoLine2), time.Second, t0)
	if err != nil {
		t.Fatal(err)
	}
	// 0, 3, 6, 9 minutes.
	if len(tr.Points) != 4 {
		t.Errorf("got %d points, want 4", len(tr.Points))
	}
}

func TestGroundTraceIdempotent(t *testing.T) {
	s := fakeSampler()
	ref := t0.Add(11 * time.Minute)
	for _, sat := range []struct{ id, l1, l2 string }{
		{"leo", leoLine1, leoLine2},
		{"geo", geoLine1, geoLine2},
	} {
		a, err := s.GroundTraceAt(context.Background(), satellite(sat.id, sat.l1, sat.l2), 10*time.Second, ref)
		if err != nil {
			t.Fatal(err)
		}
		b, err := s.GroundTraceAt(context.Background(), satellite(sat.id, sat.l1, sat.l2), 10*time.Second, ref)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("%s: repeated traces differ", sat.id)
		}
	}
}

func TestGroundTraceMissingElements(t *testing.T) {
	called := false
	s := NewSampler(func(*tle.Elements) (Propagator, error) {
		called = true
		return fixedPoint(0, 0), nil
	}, testLogger())

	for _, raw := range []string{"", "   \n  "} {
		tr, err := s.GroundTrace(context.Background(), &catalog.Satellite{ID: "bare", TLE: raw}, DefaultStep)
		if tr != nil {
			t.Error("expected no trace")
		}
		if !errors.Is(err, ErrMissingElements) {
			t.Errorf("err = %v, want ErrMissingElements", err)
		}
		var me *MissingElementsError
		if !errors.As(err, &me) || me.SatelliteID != "bare" {
			t.Errorf("err %v is not *MissingElementsError for bare", err)
		}
	}
	if called {
		t.Error("propagator factory must not be called without elements")
	}
}

func TestGroundTraceMalformed(t *testing.T) {
	s := fakeSampler()
	bad := satellite("bad", leoLine1, leoLine2[:68]+"0")
	tr, err := s.GroundTrace(context.Background(), bad, DefaultStep)
	if tr != nil {
		t.Error("expected no trace")
	}
	if !errors.Is(err, tle.ErrMalformedElements) {
		t.Errorf("err = %v, want ErrMalformedElements", err)
	}
	var me *tle.MalformedElementsError
	if !errors.As(err, &me) || me.Line != 2 {
		t.Errorf("err %v is not a line 2 *MalformedElementsError", err)
	}
}

func TestGroundTraceFactoryError(t *testing.T) {
	s := fakeSampler()
	_, err := s.GroundTrace(context.Background(), satellite("noaa", noaa19Line1, noaa19Line2), DefaultStep)
	if err == nil {
		t.Fatal("expected error when no propagator can be built")
	}
}

func TestGroundTracePropagationError(t *testing.T) {
	boom := errors.New("decayed")
	calls := 0
	s := NewSampler(func(*tle.Elements) (Propagator, error) {
		return PropagatorFunc(func(ts time.Time) (float64, float64, error) {
			calls++
			if calls > 100 {
				return 0, 0, boom
			}
			return linearOrbit(t0, leoPeriod)(ts)
		}), nil
	}, testLogger())

	tr, err := s.GroundTraceAt(context.Background(), satellite("leo", leoLine1, leoLine2), DefaultStep, t0.Add(time.Minute))
	if tr != nil {
		t.Error("expected no partial trace")
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}

func TestGroundTraceCancellation(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		tr, err := fakeSampler().GroundTrace(ctx, satellite("leo", leoLine1, leoLine2), DefaultStep)
		if tr != nil || !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, %v; want nil, context.Canceled", tr, err)
		}
	})

	t.Run("mid sampling", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		calls := 0
		s := NewSampler(func(*tle.Elements) (Propagator, error) {
			return PropagatorFunc(func(time.Time) (float64, float64, error) {
				calls++
				if calls == 50 {
					cancel()
				}
				return 0, -75, nil
			}), nil
		}, testLogger())

		// No period, so the first call is already a sample.
		tr, err := s.GroundTraceAt(ctx, satellite("stalled", stalledLine1, stalledLine2), DefaultStep, t0)
		if tr != nil || !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, %v; want nil, context.Canceled", tr, err)
		}
		if calls != 50 {
			t.Errorf("kept sampling after cancel: %d calls", calls)
		}
	})
}
