package orbit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrbit matches every *InvalidOrbitError.
	ErrInvalidOrbit = errors.New("invalid orbit")

	// ErrMissingElements matches every *MissingElementsError.
	ErrMissingElements = errors.New("missing element set")
)

// InvalidOrbitError reports elements whose mean motion yields no physical
// period. The sampler treats it as a fallback trigger, not a failure.
type InvalidOrbitError struct {
	NORADID    int
	MeanMotion float64
}

func (e *InvalidOrbitError) Error() string {
	return fmt.Sprintf("invalid orbit for NORAD %d: mean motion %v rev/day", e.NORADID, e.MeanMotion)
}

func (e *InvalidOrbitError) Is(target error) bool { return target == ErrInvalidOrbit }

// MissingElementsError is returned when a satellite without an element set
// reaches the sampler. Callers are expected to filter those out first, so
// this signals a bug upstream.
type MissingElementsError struct {
	SatelliteID string
}

func (e *MissingElementsError) Error() string {
	return fmt.Sprintf("satellite %q has no element set", e.SatelliteID)
}

func (e *MissingElementsError) Is(target error) bool { return target == ErrMissingElements }
