package propagation

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/tle"
)

// sgp4Cache holds preinitialized SGP4 propagators for one catalog dataset.
// Immutable after construction; safe for concurrent reads.
type sgp4Cache struct {
	props map[string]*SGP4Propagator
	hash  uint64
}

// Registry hands out SGP4 propagators, reusing initialized models for the
// element sets of the most recently warmed dataset. SGP4 initialization is
// the expensive part of a propagation; a ground trace calls PositionAt
// thousands of times on one model.
type Registry struct {
	logger *slog.Logger
	cache  atomic.Pointer[sgp4Cache]
	mu     sync.Mutex // serializes cache rebuilds
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

func cacheKey(el *tle.Elements) string {
	return el.Line1 + el.Line2
}

// Warm rebuilds the cache for ds unless it already matches the dataset hash
// (double-checked locking).
func (r *Registry) Warm(ds *catalog.Dataset) {
	if c := r.cache.Load(); c != nil && c.hash == ds.Hash {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c := r.cache.Load(); c != nil && c.hash == ds.Hash {
		return
	}

	start := time.Now()
	props := make(map[string]*SGP4Propagator, len(ds.Satellites))
	var skipped int
	for _, sat := range ds.Satellites {
		if !sat.HasElements() {
			continue
		}
		el, err := tle.ParseElements(sat.TLE)
		if err != nil {
			skipped++
			continue
		}
		key := cacheKey(el)
		if _, ok := props[key]; ok {
			continue
		}
		sp, err := NewSGP4Propagator(el)
		if err != nil {
			r.logger.Warn("sgp4 cache init failed", "satellite_id", sat.ID, "norad_id", el.NORADID, "error", err)
			skipped++
			continue
		}
		props[key] = sp
	}

	r.logger.Info("sgp4 propagator cache rebuilt",
		"cached", len(props),
		"skipped", skipped,
		"dataset_hash", ds.Hash,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	r.cache.Store(&sgp4Cache{props: props, hash: ds.Hash})
}

// Propagator returns a cached propagator for el, or initializes a new one.
// Misses are not cached; the cache only changes through Warm.
func (r *Registry) Propagator(el *tle.Elements) (*SGP4Propagator, error) {
	if c := r.cache.Load(); c != nil {
		if sp, ok := c.props[cacheKey(el)]; ok {
			return sp, nil
		}
	}
	return NewSGP4Propagator(el)
}

// Len returns the number of cached propagators.
func (r *Registry) Len() int {
	if c := r.cache.Load(); c != nil {
		return len(c.props)
	}
	return 0
}
