// Package filter implements the catalog filter model: independent
// dimensions combined with AND, selected values within a dimension combined
// with OR, and live match counts for every candidate value.
package filter

import (
	"sort"

	"github.com/jakifasty/orbiteye/internal/catalog"
)

// Dimension is one independent filter axis.
type Dimension interface {
	// Name is the query parameter and registry key.
	Name() string
	// Values returns the values sat contributes to this dimension. A
	// satellite matches a selection when any of its values is selected.
	Values(sat *catalog.Satellite) []string
	// Label renders a value for display.
	Label(value string) string
}

// Candidates is implemented by dimensions with a fixed value set, which is
// offered even when no satellite currently carries a value.
type Candidates interface {
	Candidates() []string
}

// Placeholder marks dimensions that are carried through the API but have no
// defined semantics yet. They enumerate no values and never constrain a match.
type Placeholder interface {
	Placeholder()
}

// Dimension names.
const (
	DimOrbitClass = "orbit_class"
	DimOwner      = "owner"
	DimSector     = "sector"
	DimPurpose    = "purpose"
	DimActive     = "active"
)

type orbitClassDim struct{}

func (orbitClassDim) Name() string { return DimOrbitClass }

func (orbitClassDim) Values(sat *catalog.Satellite) []string {
	if sat.OrbitClass == "" {
		return nil
	}
	return []string{string(sat.OrbitClass)}
}

func (orbitClassDim) Label(v string) string { return v }

func (orbitClassDim) Candidates() []string {
	out := make([]string, len(catalog.AllOrbitClasses))
	for i, c := range catalog.AllOrbitClasses {
		out[i] = string(c)
	}
	return out
}

type ownerDim struct{}

func (ownerDim) Name() string { return DimOwner }

// Values reports the owner as-is; the empty owner is a real value shown as
// "All countries" (multinational or unattributed objects).
func (ownerDim) Values(sat *catalog.Satellite) []string { return []string{sat.Owner} }

func (ownerDim) Label(v string) string {
	if v == "" {
		return "All countries"
	}
	return v
}

type sectorDim struct{}

func (sectorDim) Name() string                           { return DimSector }
func (sectorDim) Values(sat *catalog.Satellite) []string { return sat.Users }
func (sectorDim) Label(v string) string                  { return v }

type placeholderDim struct{ name string }

func (d placeholderDim) Name() string                     { return d.name }
func (placeholderDim) Values(*catalog.Satellite) []string { return nil }
func (placeholderDim) Label(v string) string              { return v }
func (placeholderDim) Placeholder()                       {}

// Registry is an ordered set of dimensions.
type Registry struct {
	dims   []Dimension
	byName map[string]Dimension
}

// NewRegistry builds a registry; later dimensions with a duplicate name
// replace earlier ones in place.
func NewRegistry(dims ...Dimension) *Registry {
	r := &Registry{byName: make(map[string]Dimension, len(dims))}
	for _, d := range dims {
		r.Register(d)
	}
	return r
}

// DefaultRegistry returns the built-in dimensions: orbit class, owner and
// sector, plus the purpose and active placeholders.
func DefaultRegistry() *Registry {
	return NewRegistry(
		orbitClassDim{},
		ownerDim{},
		sectorDim{},
		placeholderDim{name: DimPurpose},
		placeholderDim{name: DimActive},
	)
}

// Register adds d.
func (r *Registry) Register(d Dimension) {
	if _, ok := r.byName[d.Name()]; ok {
		for i := range r.dims {
			if r.dims[i].Name() == d.Name() {
				r.dims[i] = d
			}
		}
	} else {
		r.dims = append(r.dims, d)
	}
	r.byName[d.Name()] = d
}

// Lookup returns the dimension named name. A nil registry has none.
func (r *Registry) Lookup(name string) (Dimension, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.byName[name]
	return d, ok
}

// Dimensions returns the dimensions in registration order.
func (r *Registry) Dimensions() []Dimension {
	if r == nil {
		return nil
	}
	return append([]Dimension(nil), r.dims...)
}

// Names returns the dimension names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.dims))
	for i, d := range r.dims {
		out[i] = d.Name()
	}
	return out
}

func isPlaceholder(d Dimension) bool {
	_, ok := d.(Placeholder)
	return ok
}

// uniqueValues enumerates the sorted distinct values of d across sats. Fixed
// candidates come first in their declared order.
func uniqueValues(d Dimension, sats []catalog.Satellite) []string {
	if isPlaceholder(d) {
		return nil
	}
	seen := make(map[string]struct{})
	var fixed []string
	if c, ok := d.(Candidates); ok {
		fixed = c.Candidates()
		for _, v := range fixed {
			seen[v] = struct{}{}
		}
	}
	var rest []string
	for i := range sats {
		for _, v := range d.Values(&sats[i]) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			rest = append(rest, v)
		}
	}
	sort.Strings(rest)
	return append(fixed, rest...)
}
