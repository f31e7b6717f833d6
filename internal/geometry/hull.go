// Package geometry is the planar and spherical geometry kernel used by the
// partitioning, scoring and clustering engines. Coordinates are treated as
// x = longitude, y = latitude for all planar predicates.
package geometry

import (
	"math"
	"sort"

	"github.com/sells-group/zone-router/internal/model"
)

// Cross returns the z component of (a-o) x (b-o). Positive means o->a->b is a
// counter-clockwise turn.
func Cross(o, a, b model.LatLng) float64 {
	return (a.Lng-o.Lng)*(b.Lat-o.Lat) - (a.Lat-o.Lat)*(b.Lng-o.Lng)
}

// ConvexHull returns the convex hull of points using a Graham scan, in
// counter-clockwise order starting at the pivot (lowest latitude, then lowest
// longitude). Fewer than 3 points are returned unchanged. Collinear inputs
// collapse to their two extreme points. The result is a subset of the input
// and depends only on the input order for exact ties.
func ConvexHull(points []model.LatLng) []model.LatLng {
	if len(points) < 3 {
		out := make([]model.LatLng, len(points))
		copy(out, points)
		return out
	}

	pivotIdx := 0
	for i, p := range points {
		q := points[pivotIdx]
		if p.Lat < q.Lat || (p.Lat == q.Lat && p.Lng < q.Lng) {
			pivotIdx = i
		}
	}
	pivot := points[pivotIdx]

	rest := make([]model.LatLng, 0, len(points)-1)
	for i, p := range points {
		if i != pivotIdx {
			rest = append(rest, p)
		}
	}

	sort.SliceStable(rest, func(i, j int) bool {
		ai := math.Atan2(rest[i].Lat-pivot.Lat, rest[i].Lng-pivot.Lng)
		aj := math.Atan2(rest[j].Lat-pivot.Lat, rest[j].Lng-pivot.Lng)
		if ai != aj {
			return ai < aj
		}
		return planarSq(pivot, rest[i]) < planarSq(pivot, rest[j])
	})

	stack := make([]model.LatLng, 0, len(points))
	stack = append(stack, pivot)
	for _, p := range rest {
		for len(stack) >= 2 && Cross(stack[len(stack)-2], stack[len(stack)-1], p) <= 0 {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 1 && p == pivot {
			continue
		}
		stack = append(stack, p)
	}
	return stack
}

// DistinctCount returns the number of distinct locations in points.
func DistinctCount(points []model.LatLng) int {
	seen := make(map[model.LatLng]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}
