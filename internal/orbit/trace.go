package orbit

import "time"

// Mode says how a trace was anchored.
type Mode int

const (
	// Anchored traces start at an antimeridian crossing and span one period.
	Anchored Mode = iota
	// Fallback traces start at the reference time and span FallbackWindow.
	Fallback
)

func (m Mode) String() string {
	switch m {
	case Anchored:
		return "anchored"
	case Fallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// MarshalText encodes the mode as its name.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// GroundPoint is one sub-satellite sample. Lng is in [-180, 180).
type GroundPoint struct {
	Lng  float64   `json:"lng"`
	Lat  float64   `json:"lat"`
	Time time.Time `json:"time"`
}

// Trace is the ordered ground track of one satellite over one logical pass.
type Trace struct {
	SatelliteID string
	Mode        Mode
	Start       time.Time
	Step        time.Duration
	// Span is the sampled interval [Start, Start+Span).
	Span time.Duration
	// Period is the estimated orbital period; zero when the elements gave none.
	Period time.Duration
	Points []GroundPoint
}

// End returns Start+Span, the exclusive end of the sampled interval.
func (t *Trace) End() time.Time { return t.Start.Add(t.Span) }
