package route

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/geometry"
	"github.com/sells-group/zone-router/internal/model"
	"github.com/sells-group/zone-router/internal/voronoi"
	"github.com/sells-group/zone-router/internal/zone"
)

func ll(lat, lng float64) model.LatLng { return model.LatLng{Lat: lat, Lng: lng} }

// scenarioZones partitions three air-quality sensors and aggregates equal
// weather, accident and traffic inputs into every zone.
func scenarioZones(t *testing.T) []model.Zone {
	t.Helper()
	anchors := []model.SensorPoint{
		{ID: "s1", Location: ll(10.80, 106.70)},
		{ID: "s2", Location: ll(10.81, 106.71)},
		{ID: "s3", Location: ll(10.79, 106.69)},
	}
	d, err := voronoi.Partition(anchors, geometry.BBox{MinLat: 10.78, MinLng: 106.68, MaxLat: 10.82, MaxLng: 106.72})
	require.NoError(t, err)

	set := zone.Aggregate(d.Cells, zone.Inputs{
		AirQuality: []model.AirQualityReading{
			{SensorID: "s1", Location: anchors[0].Location, AQI: 40},
			{SensorID: "s2", Location: anchors[1].Location, AQI: 160},
			{SensorID: "s3", Location: anchors[2].Location, AQI: 60},
		},
		Weather: []model.WeatherReading{
			{SensorID: "w1", Location: ll(10.80, 106.70), Weather: model.Weather{Rainfall: 1, Visibility: 10000}},
		},
	})
	require.Len(t, set.Zones, 3)
	return set.Zones
}

func scenarioRoutes() (a, b model.RouteCandidate) {
	// A enters zone 1 across the west edge of the box and stays there.
	a = model.RouteCandidate{
		ID:              "A",
		Polyline:        []model.LatLng{ll(10.815, 106.675), ll(10.815, 106.685)},
		DistanceMeters:  1100,
		DurationSeconds: 1200,
	}
	// B crosses the shared edge of zones 1 and 2.
	b = model.RouteCandidate{
		ID:              "B",
		Polyline:        []model.LatLng{ll(10.80, 106.70), ll(10.81, 106.71)},
		DistanceMeters:  1560,
		DurationSeconds: 1200,
	}
	return a, b
}

func newTestScorer(t *testing.T, opts Options) *Scorer {
	t.Helper()
	s, err := NewScorer(nil, opts)
	require.NoError(t, err)
	return s
}

func TestScore_HealthiestPrefersCleanAir(t *testing.T) {
	zones := scenarioZones(t)
	a, b := scenarioRoutes()

	res, err := newTestScorer(t, Options{}).Score([]model.RouteCandidate{b, a}, zones, ProfileHealthiest)
	require.NoError(t, err)
	require.Len(t, res.Routes, 2)

	first, second := res.Routes[0], res.Routes[1]
	assert.Equal(t, "A", first.CandidateID)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "B", second.CandidateID)
	assert.Equal(t, 2, second.Rank)

	assert.Equal(t, []string{"zone_1"}, first.TouchedZones)
	assert.ElementsMatch(t, []string{"zone_1", "zone_2"}, second.TouchedZones)

	assert.Less(t, first.CriterionScores.AQI, second.CriterionScores.AQI)
	assert.InDelta(t, 20, first.CriterionScores.AQI, 1e-9)
	assert.InDelta(t, 50, second.CriterionScores.AQI, 1e-9)
	assert.Less(t, first.CompositeScore, second.CompositeScore)

	assert.Empty(t, first.Warnings)
	assert.Contains(t, second.Warnings, "Route passes through zone_2 with unhealthy air (AQI 160)")
}

func TestScore_UntouchedRouteUsesDefaults(t *testing.T) {
	zones := scenarioZones(t)
	far := model.RouteCandidate{ID: "far", Polyline: []model.LatLng{ll(11.0, 107.0), ll(11.1, 107.1)}, DurationSeconds: 3600}

	res, err := newTestScorer(t, Options{}).Score([]model.RouteCandidate{far}, zones, ProfileFastest)
	require.NoError(t, err)
	require.Len(t, res.Routes, 1)

	rs := res.Routes[0]
	assert.Equal(t, model.CriterionScores{AQI: 50, Weather: 30, Accident: 20, Traffic: 30}, rs.CriterionScores)
	assert.InDelta(t, 50, rs.DurationScore, 1e-9)
	assert.Empty(t, rs.TouchedZones)
	assert.InDelta(t, 0.6*50+0.1*(50+30+20+30), rs.CompositeScore, 1e-9)
}

func TestScore_DurationClampsAtCeiling(t *testing.T) {
	s := newTestScorer(t, Options{DurationCeiling: time.Hour})
	slow := model.RouteCandidate{ID: "slow", Polyline: []model.LatLng{ll(0, 0), ll(0, 1)}, DurationSeconds: 3 * 3600}

	res, err := s.Score([]model.RouteCandidate{slow}, nil, ProfileFastest)
	require.NoError(t, err)
	assert.InDelta(t, 100, res.Routes[0].DurationScore, 1e-9)
}

func TestScore_TopKAndStableTies(t *testing.T) {
	base := model.RouteCandidate{Polyline: []model.LatLng{ll(0, 0), ll(0, 1)}, DurationSeconds: 600}
	var cands []model.RouteCandidate
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		c := base
		c.ID = id
		cands = append(cands, c)
	}
	cands[4].DurationSeconds = 60

	res, err := newTestScorer(t, Options{}).Score(cands, nil, ProfileFastest)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Evaluated)
	require.Len(t, res.Routes, DefaultTopK)

	var ids []string
	for i, r := range res.Routes {
		assert.Equal(t, i+1, r.Rank)
		ids = append(ids, r.CandidateID)
	}
	assert.Equal(t, []string{"r5", "r1", "r2"}, ids)
}

func TestScore_ParallelismDoesNotChangeResults(t *testing.T) {
	zones := scenarioZones(t)
	a, b := scenarioRoutes()
	cands := []model.RouteCandidate{a, b, a, b, a, b}
	for i := range cands {
		cands[i].ID = string(rune('a' + i))
	}

	seq, err := newTestScorer(t, Options{Parallelism: 1, TopK: 10}).Score(cands, zones, ProfileSafest)
	require.NoError(t, err)
	par, err := newTestScorer(t, Options{Parallelism: 8, TopK: 10}).Score(cands, zones, ProfileSafest)
	require.NoError(t, err)
	assert.Equal(t, seq, par)
}

func TestScore_SkipsInvalidCandidates(t *testing.T) {
	a, _ := scenarioRoutes()
	cands := []model.RouteCandidate{
		{ID: "short", Polyline: []model.LatLng{ll(0, 0)}},
		{ID: "nan", Polyline: []model.LatLng{ll(math.NaN(), 0), ll(0, 1)}},
		{ID: "neg", Polyline: []model.LatLng{ll(0, 0), ll(0, 1)}, DurationSeconds: -5},
		a,
	}

	res, err := newTestScorer(t, Options{}).Score(cands, scenarioZones(t), ProfileHealthiest)
	require.NoError(t, err)
	require.Len(t, res.Routes, 1)
	assert.Equal(t, "A", res.Routes[0].CandidateID)
	require.Len(t, res.Warnings, 3)
	for _, w := range res.Warnings {
		assert.Equal(t, geoerr.KindComputation, w.Kind)
		assert.Equal(t, "route", w.Source)
	}
}

func TestScore_EmptyInput(t *testing.T) {
	res, err := newTestScorer(t, Options{}).Score(nil, nil, ProfileHealthiest)
	require.NoError(t, err)
	assert.NotNil(t, res.Routes)
	assert.Empty(t, res.Routes)
}

func TestScore_UnknownProfile(t *testing.T) {
	_, err := newTestScorer(t, Options{}).Score(nil, nil, "scenic")
	require.Error(t, err)
	assert.True(t, geoerr.IsValidation(err))
}

func TestNewScorer_RejectsInvalidConfiguration(t *testing.T) {
	_, err := NewScorer(map[string]Profile{
		"lopsided": {Weights: Weights{Duration: 0.5, AQI: 0.6}},
	}, Options{})
	require.Error(t, err)
	assert.True(t, geoerr.IsValidation(err))
	assert.Contains(t, err.Error(), "profile lopsided: weights must sum to 1.0")

	_, err = NewScorer(nil, Options{RouteRules: []Rule{{Criterion: "noise", Op: OpGT, Message: "x"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown criterion "noise"`)
}

func TestScorer_Profiles(t *testing.T) {
	s := newTestScorer(t, Options{})
	var names []string
	for _, p := range s.Profiles() {
		names = append(names, p.Name)
		assert.NoError(t, ValidateProfile(p))
	}
	assert.Equal(t, []string{ProfileFastest, ProfileHealthiest, ProfileSafest}, names)
}

func TestComposite_MonotonicInEachCriterion(t *testing.T) {
	base := model.CriterionScores{AQI: 30, Weather: 30, Accident: 30, Traffic: 30}
	for _, p := range DefaultProfiles() {
		prev := Composite(p.Weights, base, 30)
		for v := 31.0; v <= 100; v += 7 {
			bumped := base
			bumped.AQI = v
			cur := Composite(p.Weights, bumped, 30)
			assert.GreaterOrEqual(t, cur, prev, "profile %s", p.Name)
			prev = cur
		}
		assert.GreaterOrEqual(t, Composite(p.Weights, base, 31), Composite(p.Weights, base, 30))
	}
}

func TestCriterionScores(t *testing.T) {
	assert.InDelta(t, 0, AQIScore(-10), 1e-9)
	assert.InDelta(t, 80, AQIScore(160), 1e-9)
	assert.InDelta(t, 100, AQIScore(400), 1e-9)

	assert.InDelta(t, 0, WeatherScore(model.Weather{Visibility: 10000}), 1e-9)
	assert.InDelta(t, 60+20, WeatherScore(model.Weather{Rainfall: 12, Visibility: 5000}), 1e-9)
	assert.InDelta(t, 100, WeatherScore(model.Weather{Rainfall: 50, Visibility: 0}), 1e-9)

	assert.InDelta(t, 60, AccidentScore(3), 1e-9)
	assert.InDelta(t, 100, AccidentScore(9), 1e-9)

	assert.InDelta(t, 10, TrafficScore(model.CongestionLow), 1e-9)
	assert.InDelta(t, 40, TrafficScore("medium"), 1e-9)
	assert.InDelta(t, 90, TrafficScore(model.CongestionSevere), 1e-9)

	assert.InDelta(t, 0, Clamp(math.NaN(), 0, 100), 1e-9)
	assert.InDelta(t, 100, DurationScore(10, 0), 1e-9)
}
