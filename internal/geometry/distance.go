package geometry

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/sells-group/zone-router/internal/model"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // spherical radius used for haversine
	MetersPerDegree   = 111320.0  // length of one degree of latitude
)

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b model.LatLng) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Planar returns the Euclidean distance in degrees. It is only meaningful for
// relative comparisons over small areas, such as centroid convergence.
func Planar(a, b model.LatLng) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lng-b.Lng)
}

// planarSq is Planar without the square root.
func planarSq(a, b model.LatLng) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return dLat*dLat + dLng*dLng
}

// MetersToDegrees converts a metric distance at the given latitude into
// latitude and longitude degree spans.
func MetersToDegrees(meters, lat float64) (dLat, dLng float64) {
	dLat = meters / MetersPerDegree
	scale := math.Cos(lat * math.Pi / 180)
	if scale < 1e-6 {
		scale = 1e-6
	}
	dLng = meters / (MetersPerDegree * scale)
	return dLat, dLng
}

// Centroid returns the arithmetic mean of the points.
func Centroid(points []model.LatLng) model.LatLng {
	if len(points) == 0 {
		return model.LatLng{}
	}
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return model.LatLng{Lat: sumLat / n, Lng: sumLng / n}
}

// RegularPolygon returns an n-vertex counter-clockwise ring of the given metric
// radius around center.
func RegularPolygon(center model.LatLng, radiusMeters float64, n int) []model.LatLng {
	if n < 3 {
		n = 3
	}
	dLat, dLng := MetersToDegrees(radiusMeters, center.Lat)
	ring := make([]model.LatLng, n)
	for i := range n {
		theta := 2 * math.Pi * float64(i) / float64(n)
		ring[i] = model.LatLng{
			Lat: center.Lat + dLat*math.Sin(theta),
			Lng: center.Lng + dLng*math.Cos(theta),
		}
	}
	return ring
}
