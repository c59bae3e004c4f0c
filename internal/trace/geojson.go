package trace

import (
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/jakifasty/orbiteye/internal/orbit"
)

// Feature renders tr as a GeoJSON LineString feature with [lng, lat]
// coordinates in sample order. Sample times are given by the start, step
// and point count properties.
func Feature(tr *orbit.Trace) *geojson.Feature {
	coords := make([][]float64, len(tr.Points))
	for i, p := range tr.Points {
		coords[i] = []float64{p.Lng, p.Lat}
	}
	f := geojson.NewLineStringFeature(coords)
	f.ID = tr.SatelliteID
	f.SetProperty("satellite_id", tr.SatelliteID)
	f.SetProperty("mode", tr.Mode.String())
	f.SetProperty("start", tr.Start.UTC().Format(time.RFC3339Nano))
	f.SetProperty("end", tr.End().UTC().Format(time.RFC3339Nano))
	f.SetProperty("step_ms", tr.Step.Milliseconds())
	f.SetProperty("points", len(tr.Points))
	if tr.Period > 0 {
		f.SetProperty("period_ms", tr.Period.Milliseconds())
	}
	return f
}

// FeatureCollection renders traces in order.
func FeatureCollection(traces []*orbit.Trace) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(traces))
	for _, tr := range traces {
		fc.AddFeature(Feature(tr))
	}
	return fc
}

// FailureJSON is the wire form of a Failure.
type FailureJSON struct {
	SatelliteID string `json:"satellite_id"`
	Error       string `json:"error"`
}

// FailuresJSON converts failures for encoding.
func FailuresJSON(failures []Failure) []FailureJSON {
	out := make([]FailureJSON, len(failures))
	for i, f := range failures {
		out[i] = FailureJSON{SatelliteID: f.SatelliteID, Error: f.Err.Error()}
	}
	return out
}
