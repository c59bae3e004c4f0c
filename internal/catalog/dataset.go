package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jakifasty/orbiteye/internal/tle"
)

// Dataset is an immutable snapshot of the catalog. It is replaced wholesale,
// never mutated, so it can be shared across goroutines without locking.
type Dataset struct {
	Source     string
	LoadedAt   time.Time
	Satellites []Satellite

	// Hash identifies the dataset content. Two datasets with the same
	// satellites in the same order share a hash regardless of LoadedAt.
	Hash uint64

	byID map[string]int
}

// NewDataset builds a dataset and computes its content hash.
func NewDataset(source string, loadedAt time.Time, sats []Satellite) *Dataset {
	ds := &Dataset{
		Source:     source,
		LoadedAt:   loadedAt,
		Satellites: sats,
		byID:       make(map[string]int, len(sats)),
	}
	for i := range sats {
		if _, dup := ds.byID[sats[i].ID]; !dup {
			ds.byID[sats[i].ID] = i
		}
	}
	ds.Hash = contentHash(sats)
	return ds
}

// contentHash digests every field that filters or traces depend on.
func contentHash(sats []Satellite) uint64 {
	d := xxhash.New()
	var buf []byte
	for i := range sats {
		s := &sats[i]
		buf = buf[:0]
		buf = append(buf, s.ID...)
		buf = append(buf, 0)
		buf = append(buf, s.Name...)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, int64(s.NORADID), 10)
		buf = append(buf, 0)
		buf = append(buf, s.TLE...)
		buf = append(buf, 0)
		buf = append(buf, s.Owner...)
		buf = append(buf, 0)
		for _, u := range s.Users {
			buf = append(buf, u...)
			buf = append(buf, 1)
		}
		buf = append(buf, 0)
		buf = append(buf, s.OrbitClass...)
		buf = append(buf, 0)
		buf = append(buf, s.Purpose...)
		buf = append(buf, 0)
		if s.Active != nil {
			buf = strconv.AppendBool(buf, *s.Active)
		}
		buf = append(buf, 0xff)
		_, _ = d.Write(buf)
	}
	return d.Sum64()
}

// Len returns the number of satellites.
func (d *Dataset) Len() int { return len(d.Satellites) }

// Find returns the satellite with the given ID.
func (d *Dataset) Find(id string) (*Satellite, bool) {
	i, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return &d.Satellites[i], true
}

// Traceable returns the satellites that carry an element set, in catalog order.
func (d *Dataset) Traceable() []Satellite {
	out := make([]Satellite, 0, len(d.Satellites))
	for _, s := range d.Satellites {
		if s.HasElements() {
			out = append(out, s)
		}
	}
	return out
}

// Classifier derives an orbit class from parsed elements.
type Classifier func(*tle.Elements) OrbitClass

// AttachStats summarizes a WithElements merge.
type AttachStats struct {
	Attached   int // satellites that received an element set
	Classified int // satellites whose orbit class was derived from elements
	Added      int // entries with no catalog record, appended as new satellites
}

// WithElements returns a new dataset with element sets attached by NORAD
// catalog number. Existing records keep their metadata; entries without a
// matching record are appended when addUnknown is set. classify may be nil.
// An orbit class is derived when the record has none or when it was derived
// from an earlier element set; catalog-supplied classes are kept.
func (d *Dataset) WithElements(entries []tle.TLEEntry, classify Classifier, addUnknown bool, now time.Time) (*Dataset, AttachStats) {
	var stats AttachStats
	byNORAD := make(map[int]tle.TLEEntry, len(entries))
	for _, e := range entries {
		byNORAD[e.NORADID] = e
	}

	sats := make([]Satellite, len(d.Satellites), len(d.Satellites)+len(entries))
	copy(sats, d.Satellites)

	seen := make(map[int]bool, len(entries))
	for i := range sats {
		s := &sats[i]
		if s.NORADID == 0 {
			continue
		}
		e, ok := byNORAD[s.NORADID]
		if !ok {
			continue
		}
		seen[s.NORADID] = true
		s.TLE = e.Raw()
		stats.Attached++
		if (s.OrbitClass == "" || s.ClassDerived) && classify != nil {
			if el, err := tle.ParseElements(s.TLE); err == nil {
				s.OrbitClass = classify(el)
				s.ClassDerived = s.OrbitClass != ""
				stats.Classified++
			}
		}
	}

	if addUnknown {
		unknown := make([]tle.TLEEntry, 0, len(entries))
		for _, e := range entries {
			if !seen[e.NORADID] {
				unknown = append(unknown, e)
				seen[e.NORADID] = true
			}
		}
		sort.Slice(unknown, func(i, j int) bool { return unknown[i].NORADID < unknown[j].NORADID })
		for _, e := range unknown {
			s := Satellite{
				ID:      strconv.Itoa(e.NORADID),
				Name:    e.Name,
				NORADID: e.NORADID,
				TLE:     e.Raw(),
				Users:   []string{},
			}
			if classify != nil {
				if el, err := tle.ParseElements(s.TLE); err == nil {
					s.OrbitClass = classify(el)
					s.ClassDerived = s.OrbitClass != ""
					stats.Classified++
				}
			}
			sats = append(sats, s)
			stats.Added++
		}
	}

	return NewDataset(d.Source, now, sats), stats
}

type fileFormat struct {
	Satellites []Satellite `json:"satellites"`
}

// Load decodes a catalog document: either a bare JSON array of satellites or
// an object with a "satellites" array. Satellites without an ID are rejected.
func Load(r io.Reader, source string, now time.Time) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	var sats []Satellite
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return nil, fmt.Errorf("catalog %s is empty", source)
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &sats); err != nil {
			return nil, fmt.Errorf("decoding catalog array: %w", err)
		}
	default:
		var f fileFormat
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("decoding catalog object: %w", err)
		}
		sats = f.Satellites
	}

	for i := range sats {
		if sats[i].ID == "" {
			if sats[i].NORADID == 0 {
				return nil, fmt.Errorf("satellite %d has neither id nor norad_id", i)
			}
			sats[i].ID = strconv.Itoa(sats[i].NORADID)
		}
		if sats[i].Users == nil {
			sats[i].Users = []string{}
		}
	}
	return NewDataset(source, now, sats), nil
}
