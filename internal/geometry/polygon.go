package geometry

import (
	"math"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersector"

	"github.com/sells-group/zone-router/internal/model"
)

// openRing drops a repeated closing vertex if present.
func openRing(ring []model.LatLng) []model.LatLng {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		return ring[:len(ring)-1]
	}
	return ring
}

func coord(p model.LatLng) geom.Coord {
	return geom.Coord{p.Lng, p.Lat}
}

// FlatRing returns ring as closed XY flat coordinates (x = longitude).
func FlatRing(ring []model.LatLng) []float64 {
	ring = openRing(ring)
	if len(ring) == 0 {
		return nil
	}
	flat := make([]float64, 0, 2*(len(ring)+1))
	for _, p := range ring {
		flat = append(flat, p.Lng, p.Lat)
	}
	return append(flat, ring[0].Lng, ring[0].Lat)
}

// PointInPolygon reports whether p lies inside ring. Points on the boundary
// are classified as inside. The ring may be open or closed.
func PointInPolygon(p model.LatLng, ring []model.LatLng) bool {
	if len(openRing(ring)) < 3 {
		return false
	}
	return xy.IsPointInRing(geom.XY, coord(p), FlatRing(ring))
}

// SegmentsIntersect reports whether segments p1p2 and q1q2 share at least one
// point, touching endpoints included.
func SegmentsIntersect(p1, p2, q1, q2 model.LatLng) bool {
	res := lineintersector.LineIntersectsLine(lineintersector.RobustLineIntersector{},
		coord(p1), coord(p2), coord(q1), coord(q2))
	return res.HasIntersection()
}

// LineIntersectsPolygon counts the polyline-segment / polygon-edge pairs that
// intersect. The count is an exposure proxy, not a traversal length: a route
// lying strictly inside a polygon without crossing its boundary counts zero.
func LineIntersectsPolygon(polyline, ring []model.LatLng) int {
	ring = openRing(ring)
	n := len(ring)
	if len(polyline) < 2 || n < 2 {
		return 0
	}
	count := 0
	for i := 0; i+1 < len(polyline); i++ {
		a, b := polyline[i], polyline[i+1]
		for j := range n {
			if SegmentsIntersect(a, b, ring[j], ring[(j+1)%n]) {
				count++
			}
		}
	}
	return count
}

// RingArea returns the unsigned area of ring in square degrees.
func RingArea(ring []model.LatLng) float64 {
	if len(openRing(ring)) < 3 {
		return 0
	}
	return math.Abs(geom.NewLinearRingFlat(geom.XY, FlatRing(ring)).Area())
}
