package propagation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/jakifasty/orbiteye/internal/tle"
	"github.com/jakifasty/orbiteye/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, explicit TEME output, includes GSTimeFromDate and ECIToECEF for
// cross-validation of the transform package.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. Failures are detected by checking output for NaN/Inf and
// unreasonable position magnitudes.

// ErrPropagationFailed is wrapped by every error returned from PositionAt.
var ErrPropagationFailed = errors.New("sgp4 propagation failed")

// SGP4Propagator wraps the go-satellite library for a single satellite.
// It is immutable after construction and safe for concurrent use.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Propagator initializes SGP4 from parsed elements.
//
// The element lines are re-validated before reaching the library, because
// go-satellite calls log.Fatal on malformed input (which would kill the process).
func NewSGP4Propagator(el *tle.Elements) (*SGP4Propagator, error) {
	if err := validateTLELines(el.Line1, el.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", el.NORADID, err)
	}
	if !(el.MeanMotion > 0) {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: mean motion %v", el.NORADID, el.MeanMotion)
	}

	sat := satellite.TLEToSat(el.Line1, el.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", el.NORADID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: el.NORADID}, nil
}

func validateTLELines(line1, line2 string) error {
	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if !strings.HasPrefix(line1, "1 ") {
		return fmt.Errorf("line1 must start with '1 ', got %q", line1[:2])
	}
	if !strings.HasPrefix(line2, "2 ") {
		return fmt.Errorf("line2 must start with '2 ', got %q", line2[:2])
	}
	return nil
}

// NORADID returns the catalog number the propagator was built for.
func (p *SGP4Propagator) NORADID() int { return p.noradID }

// PositionAt returns the sub-satellite point at t: geodetic latitude and
// longitude in degrees, longitude in [-180, 180).
func (p *SGP4Propagator) PositionAt(t time.Time) (lat, lng float64, err error) {
	ecef, err := p.ECEFAt(t)
	if err != nil {
		return 0, 0, err
	}
	g := transform.ECEFToGeodetic(ecef)
	return g.Lat, g.Lng, nil
}

// ECEFAt returns the ECEF position at t in km.
//
// The library resolves time to whole seconds. Sub-second instants are
// linearly interpolated between the enclosing seconds; the chord error
// over one second is about a meter for LEO.
func (p *SGP4Propagator) ECEFAt(t time.Time) (transform.Vector, error) {
	t = t.UTC()
	base := t.Truncate(time.Second)

	teme, err := p.teme(base)
	if err != nil {
		return transform.Vector{}, err
	}
	if frac := t.Sub(base); frac > 0 {
		next, err := p.teme(base.Add(time.Second))
		if err != nil {
			return transform.Vector{}, err
		}
		f := frac.Seconds()
		teme = transform.Vector{
			X: teme.X + (next.X-teme.X)*f,
			Y: teme.Y + (next.Y-teme.Y)*f,
			Z: teme.Z + (next.Z-teme.Z)*f,
		}
	}

	return transform.TEMEToECEF(teme, t), nil
}

func (p *SGP4Propagator) teme(t time.Time) (transform.Vector, error) {
	pos, _ := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	v := transform.Vector{X: pos.X, Y: pos.Y, Z: pos.Z}
	if !transform.ValidRadius(v) {
		return transform.Vector{}, fmt.Errorf("%w for NORAD %d at %s: position %.1f km from geocenter",
			ErrPropagationFailed, p.noradID, t.Format(time.RFC3339), v.Norm())
	}
	return v, nil
}
