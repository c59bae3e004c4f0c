package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84AKm = 6378.137              // semi-major axis (km)
	wgs84F   = 1.0 / 298.257223563   // flattening
	wgs84E2  = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Geodetic is a WGS-84 position. Latitude and longitude are degrees; Lng is
// in [-180, 180).
type Geodetic struct {
	Lat, Lng float64
	AltKm    float64
}

// ECEFToGeodetic converts an ECEF position in km to geodetic coordinates
// using Bowring's iteration, which converges in 2-3 steps for orbital radii.
func ECEFToGeodetic(p Vector) Geodetic {
	lng := math.Atan2(p.Y, p.X)
	rho := math.Hypot(p.X, p.Y)

	lat := math.Atan2(p.Z, rho*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		s := math.Sin(lat)
		n := wgs84AKm / math.Sqrt(1-wgs84E2*s*s)
		lat = math.Atan2(p.Z+wgs84E2*n*s, rho)
	}

	sinLat, cosLat := math.Sincos(lat)
	n := wgs84AKm / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = rho/cosLat - n
	} else {
		alt = math.Abs(p.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{
		Lat:   lat * 180 / math.Pi,
		Lng:   NormalizeLongitude(lng * 180 / math.Pi),
		AltKm: alt,
	}
}

// NormalizeLongitude wraps lng into [-180, 180). +180 maps to -180.
func NormalizeLongitude(lng float64) float64 {
	return lng - 360*math.Floor((lng+180)/360)
}
