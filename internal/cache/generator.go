package cache

import (
	"context"
	"time"
)

// Start begins the background cache maintenance loop. Once a catalog is
// available it continuously:
//   - Evicts expired entries
//   - Detects catalog changes and triggers cutover
//
// Blocks until ctx is cancelled.
func (c *TraceCache) Start(ctx context.Context) {
	// Wait for catalog data before the first validation.
	if !c.waitForCatalog(ctx) {
		return
	}
	if ds := c.store.Get(); ds != nil {
		c.markValidated(ds)
	}

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache maintenance stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// waitForCatalog blocks until a dataset is available in the store,
// checking every second. Returns false if ctx is cancelled.
func (c *TraceCache) waitForCatalog(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("cache waiting for catalog data...")
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				c.logger.Info("catalog available, starting cache maintenance")
				return true
			}
		}
	}
}

// tick runs one iteration of the maintenance loop.
func (c *TraceCache) tick(ctx context.Context) {
	if c.catalogChanged() {
		c.performCutover(ctx)
		return
	}
	c.evictExpired()
}
