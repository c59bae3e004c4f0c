package orbit

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/tle"
)

func TestAveragePeriod(t *testing.T) {
	tests := []struct {
		name   string
		l1, l2 string
		want   time.Duration
	}{
		{"16 rev/day", leoLine1, leoLine2, 90 * time.Minute},
		// 86400000 / 14.13308947 = 6113313.03 ms, truncated.
		{"NOAA 19", noaa19Line1, noaa19Line2, 6113313 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AveragePeriod(mustParse(t, tt.l1, tt.l2))
			if err != nil {
				t.Fatalf("AveragePeriod: %v", err)
			}
			if got != tt.want {
				t.Errorf("AveragePeriod = %v, want %v", got, tt.want)
			}
			ms, err := AveragePeriodMS(mustParse(t, tt.l1, tt.l2))
			if err != nil || ms != tt.want.Milliseconds() {
				t.Errorf("AveragePeriodMS = %d, %v", ms, err)
			}
		})
	}
}

func TestAveragePeriodPositiveForValidMotion(t *testing.T) {
	for _, n := range []float64{0.00001, 0.5, 1.00273791, 2.0, 14.13308947, 16, 17.5, 99999} {
		el := &tle.Elements{NORADID: 1, MeanMotion: n}
		p, err := AveragePeriod(el)
		if err != nil {
			t.Errorf("mean motion %v: %v", n, err)
			continue
		}
		if p <= 0 {
			t.Errorf("mean motion %v: period %v not positive", n, p)
		}
	}
}

func TestAveragePeriodInvalid(t *testing.T) {
	cases := []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1), 1e-12, 1e12}
	for _, n := range cases {
		_, err := AveragePeriod(&tle.Elements{NORADID: 7, MeanMotion: n})
		if !errors.Is(err, ErrInvalidOrbit) {
			t.Errorf("mean motion %v: err = %v, want ErrInvalidOrbit", n, err)
		}
		var ioe *InvalidOrbitError
		if !errors.As(err, &ioe) || ioe.NORADID != 7 {
			t.Errorf("mean motion %v: err %v is not *InvalidOrbitError for NORAD 7", n, err)
		}
	}

	_, err := AveragePeriod(mustParse(t, stalledLine1, stalledLine2))
	if !errors.Is(err, ErrInvalidOrbit) {
		t.Errorf("stalled element set: err = %v, want ErrInvalidOrbit", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		el   *tle.Elements
		want catalog.OrbitClass
	}{
		{"LEO", &tle.Elements{MeanMotion: 15.5}, catalog.OrbitLEO},
		{"MEO GPS", &tle.Elements{MeanMotion: 2.005}, catalog.OrbitMEO},
		{"GEO", &tle.Elements{MeanMotion: 1.0027}, catalog.OrbitGEO},
		{"Molniya", &tle.Elements{MeanMotion: 2.006, Eccentricity: 0.74}, catalog.OrbitElliptical},
		{"invalid", &tle.Elements{MeanMotion: 0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.el); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}
