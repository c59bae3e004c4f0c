package catalog

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current catalog dataset.
type Store struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes read-modify-write updates
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
}

// Update applies fn to the current dataset under the update lock and stores
// the result. fn receives nil when nothing is loaded; returning nil leaves
// the store unchanged.
func (s *Store) Update(fn func(cur *Dataset) *Dataset) *Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.dataset.Load())
	if next != nil {
		s.dataset.Store(next)
	}
	return s.dataset.Load()
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.LoadedAt).Seconds()
}
