package geojson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zone-router/internal/model"
)

func ll(lat, lng float64) model.LatLng { return model.LatLng{Lat: lat, Lng: lng} }

func decode(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestPolygon_ClosesRingInLngLatOrder(t *testing.T) {
	poly, err := Polygon([]model.LatLng{ll(10, 100), ll(10, 101), ll(11, 101)})
	require.NoError(t, err)
	coords := poly.Coords()
	require.Len(t, coords, 1)
	require.Len(t, coords[0], 4)
	assert.Equal(t, []float64{100, 10}, []float64(coords[0][0]))
	assert.Equal(t, coords[0][0], coords[0][3])

	// already closed rings are not closed twice
	poly, err = Polygon([]model.LatLng{ll(10, 100), ll(10, 101), ll(11, 101), ll(10, 100)})
	require.NoError(t, err)
	assert.Len(t, poly.Coords()[0], 4)

	_, err = Polygon([]model.LatLng{ll(0, 0), ll(1, 1)})
	assert.Error(t, err)
}

func TestZoneFeatures(t *testing.T) {
	zones := []model.Zone{{
		Polygon: model.ZonePolygon{
			ID:             "zone_1",
			AnchorSensorID: "s1",
			Boundary:       []model.LatLng{ll(10.78, 106.68), ll(10.78, 106.70), ll(10.80, 106.70), ll(10.80, 106.68)},
		},
		Profile: model.ZoneProfile{ZoneID: "zone_1", AQI: 160, AccidentCount: 2, CongestionLevel: model.CongestionHigh, Fallback: []string{"weather"}},
	}}

	fc, err := ZoneFeatures(zones)
	require.NoError(t, err)
	out := decode(t, fc)

	assert.Equal(t, "FeatureCollection", out["type"])
	features := out["features"].([]any)
	require.Len(t, features, 1)
	f := features[0].(map[string]any)
	assert.Equal(t, "zone_1", f["id"])
	geometry := f["geometry"].(map[string]any)
	assert.Equal(t, "Polygon", geometry["type"])
	ring := geometry["coordinates"].([]any)[0].([]any)
	assert.Len(t, ring, 5)
	assert.Equal(t, []any{106.68, 10.78}, ring[0])

	props := f["properties"].(map[string]any)
	assert.Equal(t, "s1", props["anchorSensorId"])
	assert.InDelta(t, 160, props["aqi"], 1e-9)
	assert.Equal(t, "high", props["congestionLevel"])
	assert.Equal(t, "unhealthy", props["band"])
	assert.Equal(t, "#ef4444", props["color"])
	assert.Equal(t, []any{"weather"}, props["fallback"])
}

func TestZoneFeatures_Empty(t *testing.T) {
	fc, err := ZoneFeatures(nil)
	require.NoError(t, err)
	out := decode(t, fc)
	assert.Equal(t, []any{}, out["features"])
}

func TestClusterFeatures(t *testing.T) {
	fc, err := ClusterFeatures([]model.ClusterResult{{
		ID:        "cluster_1",
		Centroid:  ll(10.8, 106.7),
		MemberIDs: []string{"a", "b", "c"},
		Stats:     model.ClusterStats{Avg: 40, Min: 20, Max: 60},
		Band:      "good",
		Color:     "#22c55e",
		Hull:      []model.LatLng{ll(10.79, 106.69), ll(10.79, 106.71), ll(10.81, 106.70)},
	}})
	require.NoError(t, err)

	f := decode(t, fc)["features"].([]any)[0].(map[string]any)
	props := f["properties"].(map[string]any)
	assert.InDelta(t, 3, props["memberCount"], 0)
	assert.Equal(t, []any{106.7, 10.8}, props["centroid"])
	assert.Equal(t, "#22c55e", props["color"])
	assert.Equal(t, false, props["degenerate"])

	_, err = ClusterFeatures([]model.ClusterResult{{ID: "bad", Hull: []model.LatLng{ll(0, 0)}}})
	assert.Error(t, err)
}

func TestRouteFeature(t *testing.T) {
	c := model.RouteCandidate{ID: "r1", Polyline: []model.LatLng{ll(10.8, 106.7), ll(10.81, 106.71)}, DistanceMeters: 1560, DurationSeconds: 300}
	s := model.RouteScore{CandidateID: "r1", Rank: 1, CompositeScore: 21.5, CriterionScores: model.CriterionScores{AQI: 20}}

	f, err := RouteFeature(c, s)
	require.NoError(t, err)
	out := decode(t, f)
	assert.Equal(t, "Feature", out["type"])
	geometry := out["geometry"].(map[string]any)
	assert.Equal(t, "LineString", geometry["type"])
	assert.Equal(t, []any{[]any{106.7, 10.8}, []any{106.71, 10.81}}, geometry["coordinates"])

	props := out["properties"].(map[string]any)
	assert.InDelta(t, 1, props["rank"], 0)
	assert.InDelta(t, 21.5, props["compositeScore"], 1e-9)
	assert.Equal(t, []any{}, props["warnings"])

	_, err = RouteFeature(model.RouteCandidate{ID: "bad", Polyline: []model.LatLng{ll(0, 0)}}, s)
	assert.Error(t, err)
}
