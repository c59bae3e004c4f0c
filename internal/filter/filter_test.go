package filter

import (
	"net/url"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jakifasty/orbiteye/internal/catalog"
)

func boolPtr(b bool) *bool { return &b }

func testDataset() *catalog.Dataset {
	return catalog.NewDataset("test", time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC), []catalog.Satellite{
		{ID: "1", Owner: "US", Users: []string{"Military"}, OrbitClass: catalog.OrbitLEO, Purpose: "Earth Observation", Active: boolPtr(true)},
		{ID: "2", Owner: "US", Users: []string{"Civil", "Commercial"}, OrbitClass: catalog.OrbitGEO},
		{ID: "3", Owner: "PRC", Users: []string{"Government"}, OrbitClass: catalog.OrbitLEO},
		{ID: "4", Owner: "", Users: []string{"Commercial"}, OrbitClass: catalog.OrbitMEO, Active: boolPtr(false)},
		{ID: "5", Owner: "UK", Users: []string{}, OrbitClass: catalog.OrbitLEO},
		{ID: "6", Owner: "US", Users: []string{"Commercial"}},
	})
}

func TestSettingsMatches(t *testing.T) {
	reg := DefaultRegistry()
	ds := testDataset()
	base := NewSettings(reg)

	tests := []struct {
		name string
		s    Settings
		want []string
	}{
		{"empty selects all", base, []string{"1", "2", "3", "4", "5", "6"}},
		{"single value", base.With(DimOwner, "US"), []string{"1", "2", "6"}},
		{"OR within dimension", base.With(DimOwner, "US", "UK"), []string{"1", "2", "5", "6"}},
		{"AND across dimensions", base.With(DimOwner, "US").With(DimOrbitClass, "LEO"), []string{"1"}},
		{"any sector tag", base.With(DimSector, "Commercial"), []string{"2", "4", "6"}},
		{"empty owner value", base.With(DimOwner, ""), []string{"4"}},
		{"cleared dimension", base.With(DimOwner, "US").With(DimOwner), []string{"1", "2", "3", "4", "5", "6"}},
		{"placeholder ignored", base.With(DimPurpose, "Navigation").With(DimActive, "true"), []string{"1", "2", "3", "4", "5", "6"}},
		{"unknown dimension ignored", base.With("color", "red"), []string{"1", "2", "3", "4", "5", "6"}},
		{"no match", base.With(DimOwner, "FR"), nil},
		{"zero settings ignore With", Settings{}.With(DimOwner, "US"), []string{"1", "2", "3", "4", "5", "6"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range Select(ds.Satellites, tt.s.Predicate()) {
				got = append(got, s.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("selected %v, want %v", got, tt.want)
			}
			if n := CountMatching(ds.Satellites, tt.s.Predicate()); n != len(tt.want) {
				t.Errorf("CountMatching = %d, want %d", n, len(tt.want))
			}
		})
	}
}

func TestSettingsImmutable(t *testing.T) {
	reg := DefaultRegistry()
	a := NewSettings(reg).With(DimOwner, "US")
	b := a.With(DimOwner, "PRC")
	c := a.Add(DimOwner, "UK")

	if got := a.Selected(DimOwner); !reflect.DeepEqual(got, []string{"US"}) {
		t.Errorf("a changed to %v", got)
	}
	if got := b.Selected(DimOwner); !reflect.DeepEqual(got, []string{"PRC"}) {
		t.Errorf("b = %v", got)
	}
	if got := c.Selected(DimOwner); !reflect.DeepEqual(got, []string{"UK", "US"}) {
		t.Errorf("c = %v", got)
	}
	if !NewSettings(reg).Empty() || a.Empty() {
		t.Error("Empty misreports")
	}
	if got := NewSettings(reg).Selected(DimOwner); got == nil || len(got) != 0 {
		t.Errorf("Selected on empty = %#v, want empty non-nil", got)
	}
}

// Adding an allowed value to a dimension never decreases the count.
func TestCountMatchingMonotonic(t *testing.T) {
	reg := DefaultRegistry()
	ds := testDataset()
	idx := NewValueIndex(reg)

	bases := []Settings{
		NewSettings(reg),
		NewSettings(reg).With(DimOwner, "US"),
		NewSettings(reg).With(DimOrbitClass, "LEO"),
		NewSettings(reg).With(DimSector, "Commercial").With(DimOwner, "US", ""),
	}
	for _, base := range bases {
		for _, dim := range []string{DimOrbitClass, DimOwner, DimSector} {
			cur := base
			prev := CountMatching(ds.Satellites, cur.Predicate())
			if len(cur.Selected(dim)) == 0 {
				// Narrowing from "no constraint" is not widening; start from one value.
				continue
			}
			for _, v := range idx.Values(ds, dim) {
				cur = cur.Add(dim, v)
				n := CountMatching(ds.Satellites, cur.Predicate())
				if n < prev {
					t.Errorf("base %s: adding %s=%q dropped count %d -> %d", base, dim, v, prev, n)
				}
				prev = n
			}
		}
	}

	// Same property from a single selected value of every dimension.
	for _, dim := range []string{DimOrbitClass, DimOwner, DimSector} {
		values := idx.Values(ds, dim)
		cur := NewSettings(reg).With(dim, values[0])
		prev := CountMatching(ds.Satellites, cur.Predicate())
		for _, v := range values[1:] {
			cur = cur.Add(dim, v)
			n := CountMatching(ds.Satellites, cur.Predicate())
			if n < prev {
				t.Errorf("adding %s=%q dropped count %d -> %d", dim, v, prev, n)
			}
			prev = n
		}
	}
}

func TestParseQuery(t *testing.T) {
	reg := DefaultRegistry()
	q := url.Values{
		"owner":       {"US,UK", "PRC"},
		"orbit_class": {"LEO"},
		"sector":      {""},
		"purpose":     {"Navigation"},
		"limit":       {"5"},
	}
	s, err := ParseQuery(reg, q)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	if got := s.Selected(DimOwner); !reflect.DeepEqual(got, []string{"PRC", "UK", "US"}) {
		t.Errorf("owner = %v", got)
	}
	if got := s.Selected(DimOrbitClass); !reflect.DeepEqual(got, []string{"LEO"}) {
		t.Errorf("orbit_class = %v", got)
	}
	if got := s.Selected(DimSector); !reflect.DeepEqual(got, []string{""}) {
		t.Errorf("sector = %v, want the empty value", got)
	}
	if got := s.Selected(DimPurpose); len(got) != 0 {
		t.Errorf("purpose placeholder selected %v", got)
	}

	many := url.Values{"owner": {}}
	for i := 0; i < 65; i++ {
		many["owner"] = append(many["owner"], string(rune('A'+i%26))+string(rune('a'+i/26)))
	}
	if _, err := ParseQuery(reg, many); err == nil {
		t.Error("expected error for too many values")
	}
}

func TestCounterOptions(t *testing.T) {
	reg := DefaultRegistry()
	ds := testDataset()
	c := NewCounter(NewValueIndex(reg), nil)

	t.Run("orbit class lists fixed classes first", func(t *testing.T) {
		opts, err := c.Options(ds, NewSettings(reg), DimOrbitClass)
		if err != nil {
			t.Fatal(err)
		}
		want := []Option{
			{Value: "LEO", Label: "LEO (3)", Count: 3},
			{Value: "MEO", Label: "MEO (1)", Count: 1},
			{Value: "GEO", Label: "GEO (1)", Count: 1},
			{Value: "Elliptical", Label: "Elliptical (0)", Count: 0},
		}
		if !reflect.DeepEqual(opts, want) {
			t.Errorf("options = %+v\nwant %+v", opts, want)
		}
	})

	t.Run("owner labels and base filter", func(t *testing.T) {
		base := NewSettings(reg).With(DimOrbitClass, "LEO").With(DimOwner, "US")
		opts, err := c.Options(ds, base, DimOwner)
		if err != nil {
			t.Fatal(err)
		}
		// The owner selection is replaced per option; the LEO constraint stays.
		want := []Option{
			{Value: "", Label: "All countries (0)", Count: 0},
			{Value: "PRC", Label: "PRC (1)", Count: 1},
			{Value: "UK", Label: "UK (1)", Count: 1},
			{Value: "US", Label: "US (1)", Count: 1},
		}
		if !reflect.DeepEqual(opts, want) {
			t.Errorf("options = %+v\nwant %+v", opts, want)
		}
	})

	t.Run("sectors sorted", func(t *testing.T) {
		opts, err := c.Options(ds, NewSettings(reg), DimSector)
		if err != nil {
			t.Fatal(err)
		}
		var values []string
		for _, o := range opts {
			values = append(values, o.Value)
		}
		if want := []string{"Civil", "Commercial", "Government", "Military"}; !reflect.DeepEqual(values, want) {
			t.Errorf("sector values = %v, want %v", values, want)
		}
		if opts[1].Count != 3 {
			t.Errorf("Commercial count = %d, want 3", opts[1].Count)
		}
	})

	t.Run("unknown dimension", func(t *testing.T) {
		if _, err := c.Options(ds, NewSettings(reg), "color"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("all options", func(t *testing.T) {
		all, err := c.AllOptions(ds, NewSettings(reg).With(DimOwner, "US"))
		if err != nil {
			t.Fatal(err)
		}
		var names []string
		for _, d := range all {
			names = append(names, d.Dimension)
			if d.Placeholder && len(d.Options) != 0 {
				t.Errorf("placeholder %s has options %v", d.Dimension, d.Options)
			}
		}
		if want := []string{"orbit_class", "owner", "sector", "purpose", "active"}; !reflect.DeepEqual(names, want) {
			t.Errorf("dimensions = %v", names)
		}
		if !reflect.DeepEqual(all[1].Selected, []string{"US"}) {
			t.Errorf("owner selected = %v", all[1].Selected)
		}
	})
}

type countingCounter struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCounter) Count(sats []catalog.Satellite, pred Predicate) int {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return CountMatching(sats, pred)
}

func TestCounterUsesMatchCounterSeam(t *testing.T) {
	reg := DefaultRegistry()
	cc := &countingCounter{}
	c := NewCounter(NewValueIndex(reg), cc)
	opts, err := c.Options(testDataset(), NewSettings(reg), DimOwner)
	if err != nil {
		t.Fatal(err)
	}
	if cc.calls != len(opts) {
		t.Errorf("MatchCounter called %d times for %d options", cc.calls, len(opts))
	}
}

func TestValueIndexMemoized(t *testing.T) {
	reg := DefaultRegistry()
	idx := NewValueIndex(reg)
	ds := testDataset()

	owners := idx.Values(ds, DimOwner)
	if want := []string{"", "PRC", "UK", "US"}; !reflect.DeepEqual(owners, want) {
		t.Errorf("owners = %q, want %q", owners, want)
	}
	idx.Values(ds, DimSector)
	idx.Values(testDataset(), DimOwner) // equal content, new value
	if idx.Rebuilds() != 1 {
		t.Errorf("Rebuilds = %d, want 1", idx.Rebuilds())
	}

	changed := catalog.NewDataset("test", time.Now(), append(append([]catalog.Satellite(nil), ds.Satellites...),
		catalog.Satellite{ID: "7", Owner: "FR", Users: []string{}}))
	if got := idx.Values(changed, DimOwner); !reflect.DeepEqual(got, []string{"", "FR", "PRC", "UK", "US"}) {
		t.Errorf("owners after change = %q", got)
	}
	if idx.Rebuilds() != 2 {
		t.Errorf("Rebuilds = %d, want 2", idx.Rebuilds())
	}

	if got := idx.Values(ds, DimPurpose); len(got) != 0 {
		t.Errorf("placeholder values = %v", got)
	}
}

func TestValueIndexConcurrent(t *testing.T) {
	reg := DefaultRegistry()
	idx := NewValueIndex(reg)
	ds := testDataset()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx.Values(ds, DimSector)
		}()
	}
	wg.Wait()
	if idx.Rebuilds() != 1 {
		t.Errorf("Rebuilds = %d, want 1", idx.Rebuilds())
	}
}

func TestNilRegistry(t *testing.T) {
	var reg *Registry
	if _, ok := reg.Lookup(DimOwner); ok {
		t.Error("Lookup on nil registry found a dimension")
	}
	if len(reg.Dimensions()) != 0 || len(reg.Names()) != 0 {
		t.Error("nil registry lists dimensions")
	}
	if s := (Settings{}).Add(DimOwner, "US"); !s.Empty() {
		t.Errorf("zero Settings.Add = %v, want empty", s)
	}
}

func TestRegistryReplace(t *testing.T) {
	reg := DefaultRegistry()
	reg.Register(placeholderDim{name: DimOwner})
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"orbit_class", "owner", "sector", "purpose", "active"}) {
		t.Errorf("Names = %v", got)
	}
	d, _ := reg.Lookup(DimOwner)
	if !isPlaceholder(d) {
		t.Error("owner was not replaced")
	}
}
