package route

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/model"
)

func TestParseComparator(t *testing.T) {
	tests := []struct {
		in   string
		want Comparator
	}{
		{"gt", OpGT},
		{">", OpGT},
		{" >= ", OpGTE},
		{"lt", OpLT},
		{"<=", OpLTE},
	}
	for _, tt := range tests {
		got, err := ParseComparator(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseComparator("==")
	assert.True(t, geoerr.IsValidation(err))
}

func TestComparator_Compare(t *testing.T) {
	assert.True(t, OpGT.Compare(71, 70))
	assert.False(t, OpGT.Compare(70, 70))
	assert.True(t, OpGTE.Compare(3, 3))
	assert.True(t, OpLT.Compare(1, 2))
	assert.True(t, OpLTE.Compare(2, 2))
	assert.False(t, Comparator("eval").Compare(1, 0))
}

func TestEvaluate(t *testing.T) {
	scores := model.CriterionScores{AQI: 75, Weather: 61, Accident: 50, Traffic: 90}
	touched := []model.ZoneProfile{
		{ZoneID: "zone_1", AQI: 151, AccidentCount: 3},
		{ZoneID: "zone_2", AQI: 150, AccidentCount: 2},
	}

	got := evaluate(DefaultRouteRules(), DefaultZoneRules(), scores, 10, touched)
	assert.Equal(t, []string{
		"High air pollution exposure along this route",
		"Adverse weather conditions along this route",
		"Heavy traffic congestion along this route",
		"Route passes through zone_1 with unhealthy air (AQI 151)",
		"Route passes through zone_1 with 3 recent accidents",
	}, got)
}

func TestEvaluate_Deduplicates(t *testing.T) {
	rules := []Rule{
		{Criterion: CriterionAQI, Op: OpGT, Threshold: 10, Message: "Poor conditions"},
		{Criterion: CriterionTraffic, Op: OpGT, Threshold: 10, Message: "Poor conditions"},
		{Criterion: CriterionDuration, Op: OpGTE, Threshold: 90, Message: "Long trip ({value})"},
	}
	zoneRules := []Rule{{Criterion: CriterionZoneAccidents, Op: OpGTE, Threshold: 1, Message: "Accidents nearby"}}
	touched := []model.ZoneProfile{{ZoneID: "a", AccidentCount: 1}, {ZoneID: "b", AccidentCount: 2}}

	got := evaluate(rules, zoneRules, model.CriterionScores{AQI: 20, Traffic: 20}, 95, touched)
	assert.Equal(t, []string{"Poor conditions", "Long trip (95)", "Accidents nearby"}, got)

	assert.Empty(t, evaluate(rules, zoneRules, model.CriterionScores{}, 0, nil))
}

func TestRule_Validate(t *testing.T) {
	for _, r := range append(DefaultRouteRules(), DefaultZoneRules()...) {
		assert.NoError(t, r.Validate())
	}
	err := Rule{Criterion: CriterionAQI, Op: "~", Message: ""}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown comparator")
	assert.Contains(t, err.Error(), "message is required")

	assert.True(t, CriterionZoneAQI.IsZone())
	assert.False(t, CriterionAQI.IsZone())
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  commuter:
    description: Balanced daily commute
    weights:
      duration: 0.4
      aqi: 0.3
      weather: 0.1
      accident: 0.1
      traffic: 0.1
route_rules:
  - criterion: aqi
    op: ">"
    threshold: 60
    message: Smoggy route
`), 0o600))

	f, err := LoadProfiles(path)
	require.NoError(t, err)
	require.Contains(t, f.Profiles, "commuter")
	p := f.Profiles["commuter"]
	assert.Equal(t, "commuter", p.Name)
	assert.InDelta(t, 0.4, p.Weights.Duration, 1e-12)
	require.Len(t, f.RouteRules, 1)
	assert.Equal(t, OpGT, f.RouteRules[0].Op)

	s, err := NewScorer(f.Profiles, Options{RouteRules: f.RouteRules})
	require.NoError(t, err)
	_, err = s.Profile("commuter")
	assert.NoError(t, err)
}

func TestLoadProfiles_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadProfiles(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route: read profiles")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("profiles:\n  heavy:\n    weights:\n      duration: 0.9\n      aqi: 0.9\n"), 0o600))
	_, err = LoadProfiles(bad)
	require.Error(t, err)
	assert.True(t, geoerr.IsValidation(err))

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("profiles: {}\n"), 0o600))
	_, err = LoadProfiles(empty)
	assert.True(t, geoerr.IsValidation(err))

	badOp := filepath.Join(dir, "op.yaml")
	require.NoError(t, os.WriteFile(badOp, []byte(`
profiles:
  p:
    weights: {duration: 1}
route_rules:
  - {criterion: aqi, op: "!=", threshold: 1, message: x}
`), 0o600))
	_, err = LoadProfiles(badOp)
	require.Error(t, err)
}
