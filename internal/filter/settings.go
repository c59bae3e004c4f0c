package filter

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/jakifasty/orbiteye/internal/catalog"
)

// Predicate reports whether a satellite is selected.
type Predicate func(sat *catalog.Satellite) bool

// Settings is an immutable filter selection. The zero value of a dimension's
// selection means no constraint. Methods that change the selection return a
// copy and leave the receiver untouched.
//
// The zero Settings has no registry: it matches every satellite and ignores
// With. Use NewSettings to constrain dimensions.
type Settings struct {
	reg     *Registry
	clauses map[string][]string
}

// NewSettings returns an empty selection over reg.
func NewSettings(reg *Registry) Settings {
	return Settings{reg: reg}
}

// Registry returns the registry the selection is evaluated against.
func (s Settings) Registry() *Registry { return s.reg }

func (s Settings) clone() Settings {
	c := Settings{reg: s.reg, clauses: make(map[string][]string, len(s.clauses)+1)}
	for k, v := range s.clauses {
		c.clauses[k] = v
	}
	return c
}

// With returns a copy with dim's selection replaced by values. An empty
// values list clears the dimension. Unknown and placeholder dimensions are
// ignored.
func (s Settings) With(dim string, values ...string) Settings {
	d, ok := s.reg.Lookup(dim)
	if !ok || isPlaceholder(d) {
		return s
	}
	c := s.clone()
	if len(values) == 0 {
		delete(c.clauses, dim)
		return c
	}
	c.clauses[dim] = dedupe(values)
	return c
}

// Add returns a copy with value added to dim's selection. On an empty
// selection this narrows to the single value; on a non-empty one it widens.
func (s Settings) Add(dim, value string) Settings {
	return s.With(dim, append(append([]string(nil), s.clauses[dim]...), value)...)
}

// Selected returns the sorted values selected for dim.
func (s Settings) Selected(dim string) []string {
	out := make([]string, len(s.clauses[dim]))
	copy(out, s.clauses[dim])
	return out
}

// Empty reports whether no dimension is constrained.
func (s Settings) Empty() bool { return len(s.clauses) == 0 }

// Matches reports whether sat satisfies every constrained dimension.
func (s Settings) Matches(sat *catalog.Satellite) bool {
	for name, selected := range s.clauses {
		d, ok := s.reg.Lookup(name)
		if !ok {
			continue
		}
		if !anySelected(d.Values(sat), selected) {
			return false
		}
	}
	return true
}

// Predicate returns Matches as a Predicate.
func (s Settings) Predicate() Predicate {
	return s.Matches
}

// String renders the selection in query form with sorted keys.
func (s Settings) String() string {
	return s.Query().Encode()
}

// Query renders the selection as URL query values.
func (s Settings) Query() url.Values {
	q := url.Values{}
	for name, vals := range s.clauses {
		q[name] = append([]string(nil), vals...)
	}
	return q
}

func anySelected(have, selected []string) bool {
	for _, v := range have {
		i := sort.SearchStrings(selected, v)
		if i < len(selected) && selected[i] == v {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	j := 0
	for i := range out {
		if i == 0 || out[i] != out[j-1] {
			out[j] = out[i]
			j++
		}
	}
	return out[:j]
}

// ParseQuery builds Settings from query parameters named after registered
// dimensions. Values may repeat the parameter or be comma separated; a
// present but empty parameter selects the empty value (for example the
// unattributed owner). Parameters that name no dimension are ignored.
func ParseQuery(reg *Registry, q url.Values) (Settings, error) {
	s := NewSettings(reg)
	for _, name := range reg.Names() {
		raw, ok := q[name]
		if !ok {
			continue
		}
		var values []string
		for _, r := range raw {
			for _, v := range strings.Split(r, ",") {
				values = append(values, strings.TrimSpace(v))
			}
		}
		if len(values) > 64 {
			return Settings{}, fmt.Errorf("too many values for %s: %d", name, len(values))
		}
		s = s.With(name, values...)
	}
	return s, nil
}

// CountMatching returns how many satellites satisfy pred. Pure, O(n).
func CountMatching(sats []catalog.Satellite, pred Predicate) int {
	n := 0
	for i := range sats {
		if pred(&sats[i]) {
			n++
		}
	}
	return n
}

// Select returns the satellites satisfying pred, in order.
func Select(sats []catalog.Satellite, pred Predicate) []catalog.Satellite {
	out := make([]catalog.Satellite, 0, len(sats))
	for i := range sats {
		if pred(&sats[i]) {
			out = append(out, sats[i])
		}
	}
	return out
}
