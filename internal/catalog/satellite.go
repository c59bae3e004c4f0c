// Package catalog holds the satellite dataset served to the map: identity,
// ownership metadata, sector tags and the optional element set each
// satellite is traced from.
package catalog

import (
	"strings"
)

// OrbitClass is the coarse orbit regime used for filtering.
type OrbitClass string

const (
	OrbitLEO        OrbitClass = "LEO"
	OrbitMEO        OrbitClass = "MEO"
	OrbitGEO        OrbitClass = "GEO"
	OrbitElliptical OrbitClass = "Elliptical"
)

// AllOrbitClasses lists every orbit class in display order.
var AllOrbitClasses = []OrbitClass{OrbitLEO, OrbitMEO, OrbitGEO, OrbitElliptical}

// Satellite is one catalog record. A satellite with an empty TLE cannot
// produce a ground trace.
type Satellite struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	NORADID    int        `json:"norad_id,omitempty"`
	TLE        string     `json:"tle,omitempty"`
	Owner      string     `json:"owner"`
	Users      []string   `json:"users"`
	OrbitClass OrbitClass `json:"orbit_class,omitempty"`

	// ClassDerived marks an OrbitClass computed from the element set rather
	// than supplied by the catalog. Derived classes follow new elements.
	ClassDerived bool `json:"class_derived,omitempty"`

	// Carried for the front end; no filter semantics are attached yet.
	Purpose string `json:"purpose,omitempty"`
	Active  *bool  `json:"active,omitempty"`
}

// HasElements reports whether the satellite carries an element set.
func (s *Satellite) HasElements() bool {
	return strings.TrimSpace(s.TLE) != ""
}
