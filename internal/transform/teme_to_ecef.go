// Package transform converts SGP4 output into Earth-fixed and geodetic
// coordinates for ground-trace sampling.
//
// TEME (True Equator Mean Equinox) positions are rotated into ECEF by GMST
// alone (TEME → PEF ≈ ECEF). Polar motion and the equation of the equinoxes
// are ignored; the resulting error is tens of meters, far below what a
// world-map trace can show.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"
)

// Vector is a Cartesian position in kilometers.
type Vector struct {
	X, Y, Z float64
}

// Norm returns the vector magnitude.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// TEMEToECEF rotates a TEME position into ECEF at time t.
func TEMEToECEF(teme Vector, t time.Time) Vector {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST applies r_ECEF = R3(θ) * r_TEME for a precomputed GMST
// angle θ in radians.
func TEMEToECEFWithGMST(teme Vector, gmst float64) Vector {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	return Vector{
		X: teme.X*cosG + teme.Y*sinG,
		Y: -teme.X*sinG + teme.Y*cosG,
		Z: teme.Z,
	}
}

// Orbit radius bounds accepted by ValidRadius, in km. The lower bound sits
// below the surface to tolerate decaying objects; the upper bound clears GEO
// (~42164 km) and graveyard orbits.
const (
	minOrbitRadiusKm = 6200.0
	maxOrbitRadiusKm = 50000.0
)

// ValidRadius reports whether p is a finite position at a plausible
// Earth-orbit radius. SGP4 returns garbage rather than failing for decayed
// or corrupt element sets, so every propagated position is checked.
func ValidRadius(p Vector) bool {
	for _, c := range [...]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	r := p.Norm()
	return r >= minOrbitRadiusKm && r <= maxOrbitRadiusKm
}
