package filter

import (
	"fmt"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/metrics"
)

// MatchCounter counts the satellites satisfying a predicate. It is the seam
// for replacing full scans with an incremental count index.
type MatchCounter interface {
	Count(sats []catalog.Satellite, pred Predicate) int
}

// ScanCounter counts by scanning every satellite.
type ScanCounter struct{}

func (ScanCounter) Count(sats []catalog.Satellite, pred Predicate) int {
	return CountMatching(sats, pred)
}

// Option is one candidate value of a dimension with its live match count.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// DimensionOptions groups the options of one dimension.
type DimensionOptions struct {
	Dimension   string   `json:"dimension"`
	Placeholder bool     `json:"placeholder,omitempty"`
	Selected    []string `json:"selected"`
	Options     []Option `json:"options"`
}

// Counter annotates filter options with the number of satellites that would
// remain selected if that option alone were chosen for its dimension.
//
// Each option costs one MatchCounter call, so a dimension with v values over
// n satellites is O(v·n) with the default ScanCounter.
type Counter struct {
	index   *ValueIndex
	counter MatchCounter
}

// NewCounter creates a Counter. A nil counter uses ScanCounter.
func NewCounter(index *ValueIndex, counter MatchCounter) *Counter {
	if counter == nil {
		counter = ScanCounter{}
	}
	return &Counter{index: index, counter: counter}
}

// Options counts every candidate value of dim under base with dim's own
// selection replaced by that single value.
func (c *Counter) Options(ds *catalog.Dataset, base Settings, dim string) ([]Option, error) {
	d, ok := base.Registry().Lookup(dim)
	if !ok {
		return nil, fmt.Errorf("unknown filter dimension %q", dim)
	}

	values := c.index.Values(ds, dim)

	start := time.Now()
	opts := make([]Option, 0, len(values))
	for _, v := range values {
		n := c.counter.Count(ds.Satellites, base.With(dim, v).Predicate())
		opts = append(opts, Option{
			Value: v,
			Label: fmt.Sprintf("%s (%d)", d.Label(v), n),
			Count: n,
		})
	}
	metrics.RecordFilterCount(dim, len(values)*len(ds.Satellites), time.Since(start))
	return opts, nil
}

// AllOptions returns the options of every registered dimension in
// registration order. Placeholder dimensions are listed with no options.
func (c *Counter) AllOptions(ds *catalog.Dataset, base Settings) ([]DimensionOptions, error) {
	dims := base.Registry().Dimensions()
	out := make([]DimensionOptions, 0, len(dims))
	for _, d := range dims {
		opts, err := c.Options(ds, base, d.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, DimensionOptions{
			Dimension:   d.Name(),
			Placeholder: isPlaceholder(d),
			Selected:    base.Selected(d.Name()),
			Options:     opts,
		})
	}
	return out, nil
}
