package tle

import "time"

// TLEEntry represents a single satellite's two-line element set as read from
// a catalog stream.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Raw returns the entry in three-line form (name line first when present).
func (e TLEEntry) Raw() string {
	if e.Name == "" {
		return e.Line1 + "\n" + e.Line2
	}
	return e.Name + "\n" + e.Line1 + "\n" + e.Line2
}

// EpochRange represents the minimum and maximum epoch times in a set of entries.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// RangeOf returns the epoch range spanned by entries. The zero range is
// returned for an empty slice.
func RangeOf(entries []TLEEntry) EpochRange {
	if len(entries) == 0 {
		return EpochRange{}
	}
	r := EpochRange{Min: entries[0].Epoch, Max: entries[0].Epoch}
	for _, e := range entries[1:] {
		if e.Epoch.Before(r.Min) {
			r.Min = e.Epoch
		}
		if e.Epoch.After(r.Max) {
			r.Max = e.Epoch
		}
	}
	return r
}

// Elements holds the orbital parameters decoded from one element set.
// Values are immutable once returned by ParseElements.
type Elements struct {
	Name           string
	NORADID        int
	Classification byte
	IntlDesignator string
	Epoch          time.Time

	MeanMotionDot  float64 // rev/day², first derivative / 2
	MeanMotionDDot float64 // rev/day³, second derivative / 6
	BStar          float64 // 1/earth radii
	EphemerisType  int
	ElementSetNo   int

	Inclination  float64 // degrees
	RAAN         float64 // degrees
	Eccentricity float64
	ArgPerigee   float64 // degrees
	MeanAnomaly  float64 // degrees
	MeanMotion   float64 // revolutions per day
	RevNumber    int

	Line1 string
	Line2 string
}

// Entry converts the elements back to a catalog entry.
func (el *Elements) Entry() TLEEntry {
	return TLEEntry{
		NORADID: el.NORADID,
		Name:    el.Name,
		Epoch:   el.Epoch,
		Line1:   el.Line1,
		Line2:   el.Line2,
	}
}
