// Coordinate helpers shared by the navigator and the coordinator
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Position holds latitude, longitude, and altitude. Alt is relative to the
// vehicle home unless stated otherwise.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%.7f, %.7f) %.1fm", p.Lat, p.Lon, p.Alt)
}

// Spherical earth radius used for the flat-earth offset approximation.
const offsetEarthRadius = 6378137.0

// WGS-84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
	wgs84B = (1 - wgs84F) * wgs84A
)

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(r float64) float64   { return r * 180 / math.Pi }

// Offset returns the position north and east meters from origin at altRel.
// Longitude is scaled by cos(origin.Lat); accurate for small areas only.
func Offset(origin Position, north, east, altRel float64) Position {
	dLat := north / offsetEarthRadius
	dLon := east / (offsetEarthRadius * math.Cos(rad(origin.Lat)))
	return Position{
		Lat: origin.Lat + deg(dLat),
		Lon: origin.Lon + deg(dLon),
		Alt: altRel,
	}
}

// Distance returns the geodesic distance in meters between two coordinates
// using Vincenty's inverse formula on the WGS-84 ellipsoid. Nearly antipodal
// points that fail to converge fall back to the haversine distance.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	L := rad(lon2 - lon1)
	U1 := math.Atan((1 - wgs84F) * math.Tan(rad(lat1)))
	U2 := math.Atan((1 - wgs84F) * math.Tan(rad(lat2)))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	lambda := L
	for i := 0; i < 200; i++ {
		sinL, cosL := math.Sincos(lambda)
		x := cosU2 * sinL
		y := cosU1*sinU2 - sinU1*cosU2*cosL
		sinSigma := math.Sqrt(x*x + y*y)
		if sinSigma == 0 {
			return 0
		}
		cosSigma := sinU1*sinU2 + cosU1*cosU2*cosL
		sigma := math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinL / sinSigma
		cos2Alpha := 1 - sinAlpha*sinAlpha
		cos2SigmaM := 0.0
		if cos2Alpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cos2Alpha
		}
		C := wgs84F / 16 * cos2Alpha * (4 + wgs84F*(4-3*cos2Alpha))
		prev := lambda
		lambda = L + (1-C)*wgs84F*sinAlpha*(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda-prev) > 1e-12 {
			continue
		}
		u2 := cos2Alpha * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
		A := 1 + u2/16384*(4096+u2*(-768+u2*(320-175*u2)))
		B := u2 / 1024 * (256 + u2*(-128+u2*(74-47*u2)))
		deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
			B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))
		return wgs84B * A * (sigma - deltaSigma)
	}
	return Haversine(lat1, lon1, lat2, lon2)
}

// Haversine calculates the great-circle distance between two lat/lon points
// on a sphere of the WGS-84 equatorial radius.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return orbgeo.DistanceHaversine(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

// GroundDistance returns the horizontal distance between two positions.
func GroundDistance(a, b Position) float64 {
	return Distance(a.Lat, a.Lon, b.Lat, b.Lon)
}

// RelativeOffset returns the (north, east) vector in meters from one
// coordinate to another. Distances to the south or west are negative.
func RelativeOffset(from, to Position) (north, east float64) {
	north = Distance(from.Lat, from.Lon, to.Lat, from.Lon)
	east = Distance(from.Lat, from.Lon, from.Lat, to.Lon)
	return math.Copysign(north, to.Lat-from.Lat), math.Copysign(east, to.Lon-from.Lon)
}
