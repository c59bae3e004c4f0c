package orbit

import (
	"math"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/tle"
)

const day = 24 * time.Hour

// maxPeriodMS keeps the period representable as a time.Duration.
const maxPeriodMS = float64(math.MaxInt64 / int64(time.Millisecond))

// AveragePeriod returns the mean orbital period, one day divided by the mean
// motion, truncated to whole milliseconds. Non-positive or non-finite mean
// motion yields *InvalidOrbitError.
func AveragePeriod(el *tle.Elements) (time.Duration, error) {
	ms, err := periodMS(el)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// AveragePeriodMS is AveragePeriod in milliseconds.
func AveragePeriodMS(el *tle.Elements) (int64, error) {
	return periodMS(el)
}

func periodMS(el *tle.Elements) (int64, error) {
	n := el.MeanMotion
	if !(n > 0) || math.IsInf(n, 0) {
		return 0, &InvalidOrbitError{NORADID: el.NORADID, MeanMotion: n}
	}
	ms := math.Floor(float64(day/time.Millisecond) / n)
	if ms < 1 || ms > maxPeriodMS {
		return 0, &InvalidOrbitError{NORADID: el.NORADID, MeanMotion: n}
	}
	return int64(ms), nil
}

// Orbit class boundaries.
const (
	maxLEOPeriod           = 128 * time.Minute
	minGEOPeriod           = 1300 * time.Minute
	maxGEOPeriod           = 1600 * time.Minute
	minEllipticalEccentric = 0.25
)

// Classify derives a coarse orbit class from period and eccentricity.
// Elements without a valid period classify as "".
func Classify(el *tle.Elements) catalog.OrbitClass {
	p, err := AveragePeriod(el)
	if err != nil {
		return ""
	}
	switch {
	case el.Eccentricity > minEllipticalEccentric:
		return catalog.OrbitElliptical
	case p < maxLEOPeriod:
		return catalog.OrbitLEO
	case p >= minGEOPeriod && p <= maxGEOPeriod:
		return catalog.OrbitGEO
	default:
		return catalog.OrbitMEO
	}
}
