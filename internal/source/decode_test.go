package source

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/model"
)

func TestSensorRecord_UnmarshalJSON(t *testing.T) {
	data := `{
		"id": "aq-1",
		"type": "air_quality",
		"location": {"lat": 10.8, "lng": 106.7},
		"observedAt": "2026-05-01T08:00:00Z",
		"aqi": 42.5,
		"pm25": 11,
		"status": "ok",
		"nested": {"ignored": true}
	}`
	var r SensorRecord
	require.NoError(t, json.Unmarshal([]byte(data), &r))

	assert.Equal(t, "aq-1", r.ID)
	assert.Equal(t, model.KindAirQuality, r.Kind)
	assert.Equal(t, model.LatLng{Lat: 10.8, Lng: 106.7}, r.Location)
	assert.Equal(t, 2026, r.ObservedAt.Year())
	assert.Equal(t, map[string]float64{"aqi": 42.5, "pm25": 11}, r.Metrics)
	assert.Equal(t, map[string]string{"status": "ok"}, r.Attrs)

	v, ok := r.Metric("AQI", "aqi")
	assert.True(t, ok)
	assert.Equal(t, 42.5, v)
}

func TestSensorRecord_UnmarshalErrors(t *testing.T) {
	var r SensorRecord
	assert.Error(t, json.Unmarshal([]byte(`{"location":{"lat":1,"lng":2}}`), &r), "id required")
	assert.Error(t, json.Unmarshal([]byte(`{"id":"x","location":"nowhere"}`), &r))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &r))
}

func TestSensorRecord_RoundTrip(t *testing.T) {
	in := SensorRecord{
		ID:       "wx-1",
		Kind:     model.KindWeather,
		Location: model.LatLng{Lat: 1, Lng: 2},
		Metrics:  map[string]float64{"rainfall": 3},
		Attrs:    map[string]string{"station": "north"},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out SensorRecord
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func rec(id string, lat, lng float64, metrics map[string]float64, attrs map[string]string) SensorRecord {
	return SensorRecord{ID: id, Location: model.LatLng{Lat: lat, Lng: lng}, Metrics: metrics, Attrs: attrs}
}

func TestAirQuality(t *testing.T) {
	recs := []SensorRecord{
		rec("a", 10.8, 106.7, map[string]float64{"aqi": 20}, nil),
		rec("b", math.NaN(), 106.7, map[string]float64{"aqi": 30}, nil),
		rec("c", 10.8, 106.7, nil, nil),
		rec("d", 10.9, 106.8, map[string]float64{"AQI": 80}, nil),
	}
	out, warnings := AirQuality(recs)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].SensorID)
	assert.Equal(t, 80.0, out[1].AQI)

	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, geoerr.KindComputation, w.Kind)
	}
	assert.Contains(t, warnings[0].Message, "sensor b skipped")
	assert.Contains(t, warnings[1].Message, "missing aqi")
}

func TestWeather_Defaults(t *testing.T) {
	out, warnings := Weather([]SensorRecord{
		rec("w1", 10.8, 106.7, map[string]float64{"rainfall": 2, "windSpeed": 4}, nil),
		rec("w2", 10.8, 106.7, map[string]float64{"visibility": 500, "humidity": 80, "temperature": 31}, nil),
	})
	assert.Empty(t, warnings)
	require.Len(t, out, 2)
	assert.Equal(t, model.Weather{Rainfall: 2, WindSpeed: 4, Visibility: DefaultVisibility}, out[0].Weather)
	assert.Equal(t, model.Weather{Visibility: 500, Humidity: 80, Temperature: 31}, out[1].Weather)
}

func TestAccidentsAndTraffic(t *testing.T) {
	acc, warnings := Accidents([]SensorRecord{
		rec("x1", 10.8, 106.7, nil, map[string]string{"severity": "major"}),
		rec("x2", 200, 0, nil, nil),
	})
	require.Len(t, acc, 1)
	assert.Equal(t, "major", acc[0].Severity)
	assert.Len(t, warnings, 1)

	traffic, warnings := Traffic([]SensorRecord{
		rec("t1", 10.8, 106.7, nil, map[string]string{"congestionLevel": "heavy"}),
		rec("t2", 0, 0, map[string]float64{"startLat": 10.81, "startLng": 106.71, "endLat": 10.82, "endLng": 106.72}, map[string]string{"congestion_level": "severe"}),
		rec("t3", 0, 0, map[string]float64{"startLat": 91, "startLng": 0}, nil),
	})
	require.Len(t, traffic, 2)
	assert.Len(t, warnings, 1)
	assert.Equal(t, model.CongestionHigh, traffic[0].Level)
	assert.Equal(t, traffic[0].Start, traffic[0].End)
	assert.Equal(t, model.LatLng{Lat: 10.81, Lng: 106.71}, traffic[1].Start)
	assert.Equal(t, model.LatLng{Lat: 10.82, Lng: 106.72}, traffic[1].End)
	assert.Equal(t, model.CongestionSevere, traffic[1].Level)
}

func TestValues(t *testing.T) {
	recs := []SensorRecord{
		rec("a", 10.8, 106.7, map[string]float64{"windSpeed": 3}, nil),
		rec("b", 10.8, 106.7, map[string]float64{"rainfall": 1}, nil),
		rec("c", math.Inf(1), 106.7, map[string]float64{"windSpeed": 5}, nil),
	}
	out, warnings := Values(recs, "wind_speed")
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, 3.0, out[0].Value)
	assert.Len(t, warnings, 1)

	vis, _ := Values(recs[:2], "visibility")
	require.Len(t, vis, 2)
	assert.Equal(t, DefaultVisibility, vis[0].Value)
}

func TestKindForMetric(t *testing.T) {
	for _, m := range Metrics() {
		_, ok := KindForMetric(m)
		assert.True(t, ok, m)
	}
	k, _ := KindForMetric("aqi")
	assert.Equal(t, model.KindAirQuality, k)
	k, _ = KindForMetric("humidity")
	assert.Equal(t, model.KindWeather, k)
	_, ok := KindForMetric("pollen")
	assert.False(t, ok)
}
