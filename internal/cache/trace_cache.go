// Package cache provides an in-memory ground trace cache.
//
// Entries are keyed by satellite and sampling step and stay valid for a
// short window after the reference time they were computed for. A
// background worker evicts expired entries and, when the catalog changes,
// revalidates the cache without interrupting reads.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/metrics"
	"github.com/jakifasty/orbiteye/internal/orbit"
	"github.com/jakifasty/orbiteye/internal/trace"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	TTL        time.Duration // How long after its reference time an entry serves (default: 1m)
	Buffer     time.Duration // Keep entries this long past expiration (default: 1m, negative for none)
	Interval   time.Duration // Maintenance tick (default: 15s)
	MaxEntries int           // Upper bound on entries (default: 4096)
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = time.Minute
	}
	if c.Buffer < 0 {
		c.Buffer = 0
	} else if c.Buffer == 0 {
		c.Buffer = time.Minute
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 4096
	}
	return c
}

type entryKey struct {
	satelliteID string
	step        time.Duration
}

// CacheEntry wraps a trace with the inputs it was computed from.
type CacheEntry struct {
	Trace       *orbit.Trace
	Elements    string    // element set text the trace was computed from
	Ref         time.Time // reference time of the computation
	GeneratedAt time.Time
}

// validFor reports whether the entry answers a request for sat at ref.
func (e *CacheEntry) validFor(sat *catalog.Satellite, ref time.Time, ttl time.Duration) bool {
	if e.Elements != sat.TLE || ref.Before(e.Ref) || ref.Sub(e.Ref) >= ttl {
		return false
	}
	return e.Trace.Mode == orbit.Fallback || ref.Before(e.Trace.End())
}

// TraceCache is a read-through cache in front of a trace.Computer.
// Safe for concurrent use by multiple goroutines. Returned traces are
// shared between callers and must not be modified.
type TraceCache struct {
	mu      sync.RWMutex
	entries map[entryKey]*CacheEntry

	config   Config
	computer trace.Computer
	store    *catalog.Store
	logger   *slog.Logger
	now      func() time.Time

	// Hash of the dataset the entries were last validated against.
	currentHash atomic.Uint64
	hashSet     atomic.Bool

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	// Cutover state.
	inCutover atomic.Bool
}

// NewTraceCache creates a trace cache in front of computer.
func NewTraceCache(config Config, computer trace.Computer, store *catalog.Store, logger *slog.Logger) *TraceCache {
	config = config.withDefaults()
	logger.Info("trace cache initialized",
		"ttl_seconds", config.TTL.Seconds(),
		"buffer_seconds", config.Buffer.Seconds(),
		"interval_seconds", config.Interval.Seconds(),
		"max_entries", config.MaxEntries,
	)

	return &TraceCache{
		entries:  make(map[entryKey]*CacheEntry),
		config:   config,
		computer: computer,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// GroundTraceAt returns a cached trace for sat when one is valid at ref and
// computes and stores one otherwise. Non-positive steps bypass the cache.
func (c *TraceCache) GroundTraceAt(ctx context.Context, sat *catalog.Satellite, step time.Duration, ref time.Time) (*orbit.Trace, error) {
	if step <= 0 {
		return c.computer.GroundTraceAt(ctx, sat, step, ref)
	}
	key := entryKey{satelliteID: sat.ID, step: step}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && entry.validFor(sat, ref, c.config.TTL) {
		c.hits.Add(1)
		metrics.CacheHit()
		return entry.Trace, nil
	}

	c.misses.Add(1)
	metrics.CacheMiss()

	tr, err := c.computer.GroundTraceAt(ctx, sat, step, ref)
	if err != nil {
		return nil, err
	}
	c.put(key, &CacheEntry{
		Trace:       tr,
		Elements:    sat.TLE,
		Ref:         ref,
		GeneratedAt: c.now(),
	})
	return tr, nil
}

// put stores an entry, evicting the oldest one when full. Caller must not hold mu.
func (c *TraceCache) put(key entryKey, entry *CacheEntry) {
	var evicted int

	c.mu.Lock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxEntries {
		var oldestKey entryKey
		var oldest time.Time
		for k, e := range c.entries {
			if oldest.IsZero() || e.Ref.Before(oldest) {
				oldestKey, oldest = k, e.Ref
			}
		}
		delete(c.entries, oldestKey)
		evicted = 1
	}
	c.entries[key] = entry
	c.mu.Unlock()

	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		metrics.CacheEvicted(evicted)
	}
	c.updateMetrics()
}

// evictExpired removes entries whose serving window ended more than
// Buffer ago.
func (c *TraceCache) evictExpired() int {
	cutoff := c.now().Add(-c.config.TTL - c.config.Buffer)
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if e.Ref.Before(cutoff) {
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.CacheEvicted(removed)
		c.updateMetrics()
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}

	return removed
}

// replaceAll atomically replaces all cache entries (used during cutover).
func (c *TraceCache) replaceAll(newEntries map[entryKey]*CacheEntry) {
	c.mu.Lock()
	c.entries = newEntries
	c.mu.Unlock()
	c.updateMetrics()
}

// snapshot copies the current entries.
func (c *TraceCache) snapshot() map[entryKey]*CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[entryKey]*CacheEntry, len(c.entries))
	for k, e := range c.entries {
		out[k] = e
	}
	return out
}

// Stats returns current cache statistics.
func (c *TraceCache) Stats() CacheStats {
	c.mu.RLock()
	count := len(c.entries)

	var oldest, newest time.Time
	for _, e := range c.entries {
		if oldest.IsZero() || e.Ref.Before(oldest) {
			oldest = e.Ref
		}
		if newest.IsZero() || e.Ref.After(newest) {
			newest = e.Ref
		}
	}
	c.mu.RUnlock()

	return CacheStats{
		Entries:   count,
		OldestRef: oldest,
		NewestRef: newest,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		InCutover: c.inCutover.Load(),
	}
}

// CacheStats holds cache statistics for the stats endpoint.
type CacheStats struct {
	Entries   int       `json:"entries"`
	OldestRef time.Time `json:"oldest_ref"`
	NewestRef time.Time `json:"newest_ref"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Evictions int64     `json:"evictions"`
	InCutover bool      `json:"in_cutover"`
}

// updateMetrics publishes current cache size to Prometheus.
func (c *TraceCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
}
