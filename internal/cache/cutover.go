package cache

import (
	"context"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/metrics"
)

// catalogChanged checks if the catalog has been replaced since the cache was
// last validated.
func (c *TraceCache) catalogChanged() bool {
	ds := c.store.Get()
	if ds == nil {
		return false
	}
	return !c.hashSet.Load() || ds.Hash != c.currentHash.Load()
}

// performCutover revalidates every entry against the current catalog.
//
// Strategy:
//  1. Set cutover flag (old entries continue serving reads)
//  2. Keep entries whose satellite kept its element set
//  3. Recompute entries whose element set changed, drop vanished satellites
//  4. Atomic swap, then clear the flag
//
// Reads never see a trace computed from elements other than the ones the
// caller passes, because entries are matched on element text.
func (c *TraceCache) performCutover(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}

	c.logger.Info("catalog cutover starting",
		"old_hash", c.currentHash.Load(),
		"new_hash", ds.Hash,
		"satellites", ds.Len(),
	)

	c.inCutover.Store(true)
	metrics.SetCacheCutoverActive(true)
	defer func() {
		c.inCutover.Store(false)
		metrics.SetCacheCutoverActive(false)
	}()

	start := time.Now()
	old := c.snapshot()
	newEntries := make(map[entryKey]*CacheEntry, len(old))
	var kept, recomputed, dropped int

	for key, entry := range old {
		if ctx.Err() != nil {
			c.logger.Warn("cutover cancelled by context")
			return
		}

		sat, ok := ds.Find(key.satelliteID)
		if !ok || !sat.HasElements() {
			dropped++
			continue
		}
		if sat.TLE == entry.Elements {
			newEntries[key] = entry
			kept++
			continue
		}

		ref := c.now()
		tr, err := c.computer.GroundTraceAt(ctx, sat, key.step, ref)
		if err != nil {
			c.logger.Warn("cutover trace failed",
				"satellite_id", key.satelliteID,
				"error", err,
			)
			dropped++
			continue
		}
		newEntries[key] = &CacheEntry{
			Trace:       tr,
			Elements:    sat.TLE,
			Ref:         ref,
			GeneratedAt: c.now(),
		}
		recomputed++
	}

	// Atomic swap. Entries added by readers during the rebuild are merged
	// when they were computed from the new catalog.
	c.mu.Lock()
	for key, entry := range c.entries {
		if _, ok := newEntries[key]; ok {
			continue
		}
		if sat, ok := ds.Find(key.satelliteID); ok && sat.TLE == entry.Elements {
			newEntries[key] = entry
		}
	}
	c.mu.Unlock()
	c.replaceAll(newEntries)
	c.markValidated(ds)

	if dropped > 0 {
		c.evictions.Add(int64(dropped))
		metrics.CacheEvicted(dropped)
	}

	duration := time.Since(start)
	c.logger.Info("catalog cutover complete",
		"duration_ms", duration.Milliseconds(),
		"kept", kept,
		"recomputed", recomputed,
		"dropped", dropped,
	)
	metrics.ObserveCacheCutover(duration)
}

func (c *TraceCache) markValidated(ds *catalog.Dataset) {
	c.currentHash.Store(ds.Hash)
	c.hashSet.Store(true)
}
