package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/metrics"
	"github.com/jakifasty/orbiteye/internal/orbit"
	"github.com/jakifasty/orbiteye/internal/propagation"
	"github.com/jakifasty/orbiteye/internal/tle"
)

// TLEConfig holds element-set sync configuration.
type TLEConfig struct {
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	CacheDir        string
	MaxFiles        int
	MaxAge          time.Duration // element sets older than this are refetched
	AddUnknown      bool          // append fetched sets with no catalog record
}

var (
	ErrFetchDisabled = errors.New("TLE fetch is disabled")
	ErrNoEntries     = errors.New("no valid element sets")
)

// SyncResult summarizes one element-set attach.
type SyncResult struct {
	Source     string    `json:"source"`
	FetchedAt  time.Time `json:"fetched_at"`
	Entries    int       `json:"entries"`
	Skipped    int       `json:"skipped"`
	Attached   int       `json:"attached"`
	Classified int       `json:"classified"`
	Added      int       `json:"added"`
	EpochMin   time.Time `json:"epoch_min"`
	EpochMax   time.Time `json:"epoch_max"`
}

// TLESync downloads element sets, keeps compressed snapshots on disk and
// attaches the sets to the catalog by NORAD catalog number.
type TLESync struct {
	config      TLEConfig
	store       *catalog.Store
	fetcher     *tle.Fetcher
	cache       *tle.Cache
	propagators *propagation.Registry
	logger      *slog.Logger

	mu   sync.Mutex // serializes fetches
	last *SyncResult

	Now func() time.Time
}

// NewTLESync creates a sync for store. propagators may be nil; when set, its
// SGP4 cache is warmed after every attach.
func NewTLESync(config TLEConfig, store *catalog.Store, propagators *propagation.Registry, logger *slog.Logger) *TLESync {
	return &TLESync{
		config:      config,
		store:       store,
		fetcher:     tle.NewFetcher(config.SourceURL, logger, config.ExtraSourceURLs...),
		cache:       tle.NewCache(config.CacheDir, config.MaxFiles),
		propagators: propagators,
		logger:      logger,
		Now:         time.Now,
	}
}

// Enabled reports whether remote fetches are allowed.
func (s *TLESync) Enabled() bool { return s.config.EnableFetch }

// Last returns the most recent successful sync.
func (s *TLESync) Last() (SyncResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return SyncResult{}, false
	}
	return *s.last, true
}

// LoadCached attaches the newest on-disk snapshot.
func (s *TLESync) LoadCached() (SyncResult, error) {
	data, ts, err := s.cache.LoadLatest()
	if err != nil {
		return SyncResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attach(data, "cache", ts)
}

// Fetch downloads the configured sources, snapshots the payload and attaches
// it to the catalog.
func (s *TLESync) Fetch(ctx context.Context) (SyncResult, error) {
	if !s.config.EnableFetch {
		return SyncResult{}, ErrFetchDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	now := s.Now()
	if err := s.cache.Write(data, now); err != nil {
		s.logger.Warn("failed to write TLE cache", "error", err)
	}
	return s.attach(data, s.fetcher.SourceURL(), now)
}

// Stale reports whether the attached element sets are older than MaxAge.
func (s *TLESync) Stale() bool {
	last, ok := s.Last()
	if !ok {
		return true
	}
	return s.config.MaxAge > 0 && s.Now().Sub(last.FetchedAt) >= s.config.MaxAge
}

// Run refetches stale element sets every interval until ctx is canceled.
func (s *TLESync) Run(ctx context.Context, interval time.Duration) {
	if !s.config.EnableFetch || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if s.Stale() {
			if _, err := s.Fetch(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("TLE refresh failed", "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// attach parses data and merges it into the catalog. Callers hold s.mu.
func (s *TLESync) attach(data []byte, source string, ts time.Time) (SyncResult, error) {
	entries, skipped, err := tle.ParseCounted(bytes.NewReader(data), s.logger)
	if err != nil {
		return SyncResult{}, err
	}
	metrics.RecordParseFailures(skipped)
	if len(entries) == 0 {
		return SyncResult{}, fmt.Errorf("%w from %s (%d skipped)", ErrNoEntries, source, skipped)
	}

	var stats catalog.AttachStats
	ds := s.store.Update(func(cur *catalog.Dataset) *catalog.Dataset {
		// Without a catalog every fetched set becomes a satellite.
		addUnknown := s.config.AddUnknown
		if cur == nil {
			cur = catalog.NewDataset(source, ts, nil)
			addUnknown = true
		}
		next, st := cur.WithElements(entries, orbit.Classify, addUnknown, s.Now())
		stats = st
		return next
	})

	traceable := len(ds.Traceable())
	metrics.SetCatalogSize(ds.Len(), traceable)
	if s.propagators != nil {
		s.propagators.Warm(ds)
	}

	epochs := tle.RangeOf(entries)
	res := SyncResult{
		Source:     source,
		FetchedAt:  ts,
		Entries:    len(entries),
		Skipped:    skipped,
		Attached:   stats.Attached,
		Classified: stats.Classified,
		Added:      stats.Added,
		EpochMin:   epochs.Min,
		EpochMax:   epochs.Max,
	}
	s.last = &res

	s.logger.Info("element sets attached",
		"source", source,
		"entries", len(entries),
		"skipped", skipped,
		"attached", stats.Attached,
		"added", stats.Added,
		"traceable", traceable,
		"fetched_at", ts.Format(time.RFC3339),
	)
	return res, nil
}
