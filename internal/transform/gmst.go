package transform

import (
	"math"
	"time"
)

const (
	// j2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
	j2000 = 2451545.0

	// unixEpochJD is the Julian Date of 1970-01-01T00:00:00Z.
	unixEpochJD = 2440587.5

	secondsPerDay = 86400.0
)

// JulianDate converts t to a Julian Date. Leap seconds are ignored, matching
// the UTC-as-UT1 approximation SGP4 consumers use.
func JulianDate(t time.Time) float64 {
	days := float64(t.Unix()) / secondsPerDay
	days += float64(t.Nanosecond()) / 1e9 / secondsPerDay
	return unixEpochJD + days
}

// GMST returns Greenwich Mean Sidereal Time in radians, in [0, 2π), using the
// IAU-82 model (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0 and θ is in seconds of time.
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	sec := 67310.54841 +
		(876600.0*3600.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec / secondsPerDay * 2 * math.Pi
}
