package cluster

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/geometry"
	"github.com/sells-group/zone-router/internal/model"
)

// Parameter bounds and defaults.
const (
	MinK              = 5
	MaxK              = 8
	DefaultMinMembers = 2

	// degenerate boundary for clusters without a true hull
	degenerateRadiusMeters = 100
	degenerateVertices     = 8
)

// Params configure one clustering run. K of zero selects DefaultK.
type Params struct {
	K          int    `json:"k" mapstructure:"k"`
	MinMembers int    `json:"min_members" mapstructure:"min_members"`
	Bands      []Band `json:"bands,omitempty" mapstructure:"-"`
}

// DefaultParams returns automatic k with the default member minimum.
func DefaultParams() Params {
	return Params{MinMembers: DefaultMinMembers}
}

// Validate range-checks the parameters.
func (p Params) Validate() error {
	var errs []string
	if p.K != 0 && (p.K < MinK || p.K > MaxK) {
		errs = append(errs, fmt.Sprintf("k must be between %d and %d, got %d", MinK, MaxK, p.K))
	}
	if p.MinMembers < 1 {
		errs = append(errs, fmt.Sprintf("min members must be >= 1, got %d", p.MinMembers))
	}
	if len(errs) > 0 {
		return geoerr.NewValidationError(errs...)
	}
	return nil
}

// DefaultK is clamp(n/5, MinK, MaxK).
func DefaultK(n int) int {
	return min(max(n/5, MinK), MaxK)
}

// NewRand returns a PCG generator seeded with seed, or with the current time
// when seed is zero.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
}

// Result is the set of surviving clusters.
type Result struct {
	Metric    string                `json:"metric"`
	K         int                   `json:"k"`
	Clusters  []model.ClusterResult `json:"clusters"`
	Discarded int                   `json:"discarded"`
	Warnings  []geoerr.Warning      `json:"warnings,omitempty"`
}

// Build clusters samples by location and summarizes metric per cluster.
// Clusters smaller than MinMembers are dropped. A nil rng is time-seeded.
func Build(samples []model.SensorValue, p Params, metric string, rng *rand.Rand) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRand(0)
	}
	bands := p.Bands
	if len(bands) == 0 {
		bands = DefaultBands(metric)
	}

	res := &Result{Metric: metric, Clusters: []model.ClusterResult{}}

	valid := make([]model.SensorValue, 0, len(samples))
	for _, s := range samples {
		if !s.Location.Valid() || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			res.Warnings = append(res.Warnings, geoerr.Skipped("sensor", s.ID, "invalid location or value"))
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return res, nil
	}

	k := p.K
	if k == 0 {
		k = DefaultK(len(valid))
	}
	res.K = k

	locs := make([]model.LatLng, len(valid))
	for i, s := range valid {
		locs[i] = s.Location
	}
	assign, centroids := KMeans(locs, k, MaxIterations, rng)

	members := make([][]model.SensorValue, len(centroids))
	for i, c := range assign {
		members[c] = append(members[c], valid[i])
	}

	for c, group := range members {
		if len(group) < p.MinMembers {
			if len(group) > 0 {
				res.Discarded++
			}
			continue
		}
		res.Clusters = append(res.Clusters, summarize(fmt.Sprintf("cluster_%d", len(res.Clusters)+1), centroids[c], group, bands))
	}
	return res, nil
}

func summarize(id string, centroid model.LatLng, group []model.SensorValue, bands []Band) model.ClusterResult {
	ids := make([]string, len(group))
	values := make([]float64, len(group))
	locs := make([]model.LatLng, len(group))
	for i, s := range group {
		ids[i] = s.ID
		values[i] = s.Value
		locs[i] = s.Location
	}

	avg := stat.Mean(values, nil)
	band := Classify(avg, bands)
	out := model.ClusterResult{
		ID:        id,
		Centroid:  centroid,
		MemberIDs: ids,
		Stats: model.ClusterStats{
			Avg: avg,
			Min: floats.Min(values),
			Max: floats.Max(values),
		},
		Band:  band.Name,
		Color: band.Color,
	}

	if geometry.DistinctCount(locs) >= 3 {
		if hull := geometry.ConvexHull(locs); len(hull) >= 3 {
			out.Hull = hull
			return out
		}
	}
	out.Hull = geometry.RegularPolygon(geometry.Centroid(locs), degenerateRadiusMeters, degenerateVertices)
	out.Degenerate = true
	return out
}
