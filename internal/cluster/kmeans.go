// Package cluster groups sensors by location with Lloyd's k-means and
// describes each group with summary statistics and a hull boundary.
package cluster

import (
	"math"
	"math/rand/v2"

	"github.com/sells-group/zone-router/internal/geometry"
	"github.com/sells-group/zone-router/internal/model"
)

// MaxIterations caps Lloyd iterations.
const MaxIterations = 50

// KMeans partitions points into at most k groups and returns the index of
// each point's group together with the final centroids. Initial centroids are
// distinct input locations drawn from rng; k is capped at the number of
// distinct locations. Iteration stops once no assignment changes or after
// maxIter rounds.
func KMeans(points []model.LatLng, k, maxIter int, rng *rand.Rand) (assign []int, centroids []model.LatLng) {
	if len(points) == 0 || k < 1 {
		return []int{}, []model.LatLng{}
	}
	if maxIter <= 0 {
		maxIter = MaxIterations
	}

	centroids = initialCentroids(points, k, rng)
	k = len(centroids)

	assign = make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}

	for range maxIter {
		changed := false
		for i, p := range points {
			c := nearest(p, centroids)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		sumLat := make([]float64, k)
		sumLng := make([]float64, k)
		counts := make([]int, k)
		for i, p := range points {
			c := assign[i]
			sumLat[c] += p.Lat
			sumLng[c] += p.Lng
			counts[c]++
		}
		for c := range k {
			// an emptied cluster keeps its previous centroid
			if counts[c] > 0 {
				n := float64(counts[c])
				centroids[c] = model.LatLng{Lat: sumLat[c] / n, Lng: sumLng[c] / n}
			}
		}
	}
	return assign, centroids
}

// initialCentroids draws up to k distinct locations in random order.
func initialCentroids(points []model.LatLng, k int, rng *rand.Rand) []model.LatLng {
	distinct := make([]model.LatLng, 0, len(points))
	seen := make(map[model.LatLng]bool, len(points))
	for _, p := range points {
		if !seen[p] {
			seen[p] = true
			distinct = append(distinct, p)
		}
	}
	rng.Shuffle(len(distinct), func(i, j int) {
		distinct[i], distinct[j] = distinct[j], distinct[i]
	})
	if k > len(distinct) {
		k = len(distinct)
	}
	out := make([]model.LatLng, k)
	copy(out, distinct[:k])
	return out
}

// nearest returns the index of the closest centroid in planar degrees. Ties
// go to the lowest index.
func nearest(p model.LatLng, centroids []model.LatLng) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := geometry.Planar(p, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
