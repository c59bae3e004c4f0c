package filter

import (
	"sync"
	"sync/atomic"

	"github.com/jakifasty/orbiteye/internal/catalog"
	"github.com/jakifasty/orbiteye/internal/metrics"
)

// valueSet is the per-dimension value enumeration of one dataset.
// Immutable after construction.
type valueSet struct {
	hash   uint64
	values map[string][]string
}

// ValueIndex memoizes the sorted unique values of every dimension, keyed on
// the dataset content hash. It is rebuilt only when a dataset with a
// different hash is presented.
type ValueIndex struct {
	reg      *Registry
	cur      atomic.Pointer[valueSet]
	mu       sync.Mutex // serializes rebuilds
	rebuilds atomic.Int64
}

// NewValueIndex creates an empty index over reg.
func NewValueIndex(reg *Registry) *ValueIndex {
	return &ValueIndex{reg: reg}
}

// Values returns the candidate values of dim for ds. The returned slice is
// shared and must not be modified.
func (x *ValueIndex) Values(ds *catalog.Dataset, dim string) []string {
	return x.forDataset(ds).values[dim]
}

// Rebuilds returns how many times the index has been recomputed.
func (x *ValueIndex) Rebuilds() int64 { return x.rebuilds.Load() }

func (x *ValueIndex) forDataset(ds *catalog.Dataset) *valueSet {
	if vs := x.cur.Load(); vs != nil && vs.hash == ds.Hash {
		return vs
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if vs := x.cur.Load(); vs != nil && vs.hash == ds.Hash {
		return vs
	}

	vs := &valueSet{hash: ds.Hash, values: make(map[string][]string)}
	for _, d := range x.reg.Dimensions() {
		vs.values[d.Name()] = uniqueValues(d, ds.Satellites)
	}
	x.cur.Store(vs)
	x.rebuilds.Add(1)
	metrics.RecordValueIndexRebuild()
	return vs
}
