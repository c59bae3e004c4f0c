package orbit

import (
	"time"

	"github.com/jakifasty/orbiteye/internal/tle"
)

// Propagator yields the sub-satellite point of one satellite at an absolute
// instant. Latitude and longitude are degrees.
type Propagator interface {
	PositionAt(t time.Time) (lat, lng float64, err error)
}

// PropagatorFunc adapts a function to Propagator.
type PropagatorFunc func(t time.Time) (lat, lng float64, err error)

func (f PropagatorFunc) PositionAt(t time.Time) (float64, float64, error) { return f(t) }

// PropagatorFactory builds a Propagator for parsed elements.
type PropagatorFactory func(el *tle.Elements) (Propagator, error)
