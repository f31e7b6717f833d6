package source

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/model"
)

// Metric names accepted on sensor records. The first name is canonical.
var metricAliases = map[string][]string{
	"aqi":         {"aqi", "AQI"},
	"rainfall":    {"rainfall", "precipitation"},
	"visibility":  {"visibility"},
	"temperature": {"temperature"},
	"humidity":    {"humidity", "relativeHumidity"},
	"wind_speed":  {"windSpeed", "wind_speed"},
}

// DefaultVisibility is assumed when a weather station omits visibility.
const DefaultVisibility = 10000.0

// KindForMetric returns the sensor kind that carries metric.
func KindForMetric(metric string) (model.SensorKind, bool) {
	switch metric {
	case "aqi":
		return model.KindAirQuality, true
	case "rainfall", "visibility", "temperature", "humidity", "wind_speed":
		return model.KindWeather, true
	default:
		return "", false
	}
}

// Metrics lists the metrics usable for heatmaps and clustering.
func Metrics() []string {
	return []string{"aqi", "rainfall", "visibility", "temperature", "humidity", "wind_speed"}
}

func skipInvalid(r SensorRecord, warnings *[]geoerr.Warning) bool {
	if r.Location.Valid() {
		return false
	}
	zap.L().Debug("source: skipping sensor with invalid location", zap.String("sensor_id", r.ID))
	*warnings = append(*warnings, geoerr.Skipped("sensor", r.ID, "invalid coordinates"))
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AirQuality decodes air-quality readings. Records without a finite aqi are
// skipped with a warning.
func AirQuality(recs []SensorRecord) ([]model.AirQualityReading, []geoerr.Warning) {
	var warnings []geoerr.Warning
	out := make([]model.AirQualityReading, 0, len(recs))
	for _, r := range recs {
		if skipInvalid(r, &warnings) {
			continue
		}
		aqi, ok := r.Metric(metricAliases["aqi"]...)
		if !ok || !finite(aqi) {
			warnings = append(warnings, geoerr.Skipped("sensor", r.ID, "missing aqi"))
			continue
		}
		out = append(out, model.AirQualityReading{SensorID: r.ID, Location: r.Location, AQI: aqi})
	}
	return out, warnings
}

// Weather decodes weather-station readings. Absent fields default to zero,
// except visibility which defaults to DefaultVisibility.
func Weather(recs []SensorRecord) ([]model.WeatherReading, []geoerr.Warning) {
	var warnings []geoerr.Warning
	out := make([]model.WeatherReading, 0, len(recs))
	for _, r := range recs {
		if skipInvalid(r, &warnings) {
			continue
		}
		w := model.Weather{Visibility: DefaultVisibility}
		if v, ok := r.Metric(metricAliases["rainfall"]...); ok {
			w.Rainfall = v
		}
		if v, ok := r.Metric(metricAliases["visibility"]...); ok {
			w.Visibility = v
		}
		if v, ok := r.Metric(metricAliases["temperature"]...); ok {
			w.Temperature = v
		}
		if v, ok := r.Metric(metricAliases["humidity"]...); ok {
			w.Humidity = v
		}
		if v, ok := r.Metric(metricAliases["wind_speed"]...); ok {
			w.WindSpeed = v
		}
		out = append(out, model.WeatherReading{SensorID: r.ID, Location: r.Location, Weather: w})
	}
	return out, warnings
}

// Accidents decodes accident reports.
func Accidents(recs []SensorRecord) ([]model.Accident, []geoerr.Warning) {
	var warnings []geoerr.Warning
	out := make([]model.Accident, 0, len(recs))
	for _, r := range recs {
		if skipInvalid(r, &warnings) {
			continue
		}
		out = append(out, model.Accident{ID: r.ID, Location: r.Location, Severity: r.Attrs["severity"]})
	}
	return out, warnings
}

// Traffic decodes traffic patterns. The record location is the segment start
// unless startLat/startLng are given; the end defaults to the start.
func Traffic(recs []SensorRecord) ([]model.TrafficPattern, []geoerr.Warning) {
	var warnings []geoerr.Warning
	out := make([]model.TrafficPattern, 0, len(recs))
	for _, r := range recs {
		start := r.Location
		if lat, ok := r.Metric("startLat"); ok {
			if lng, ok := r.Metric("startLng"); ok {
				start = model.LatLng{Lat: lat, Lng: lng}
			}
		}
		end := start
		if lat, ok := r.Metric("endLat"); ok {
			if lng, ok := r.Metric("endLng"); ok {
				end = model.LatLng{Lat: lat, Lng: lng}
			}
		}
		if !start.Valid() {
			warnings = append(warnings, geoerr.Skipped("traffic", r.ID, "invalid coordinates"))
			continue
		}
		level := r.Attrs["congestionLevel"]
		if level == "" {
			level = r.Attrs["congestion_level"]
		}
		out = append(out, model.TrafficPattern{
			ID:    r.ID,
			Start: start,
			End:   end,
			Level: model.ParseCongestionLevel(level),
		})
	}
	return out, warnings
}

// Values extracts one scalar metric per sensor for interpolation and
// clustering. Records without the metric are skipped silently; records with
// invalid coordinates or non-finite values are skipped with a warning.
func Values(recs []SensorRecord, metric string) ([]model.SensorValue, []geoerr.Warning) {
	names, ok := metricAliases[metric]
	if !ok {
		names = []string{metric}
	}

	var warnings []geoerr.Warning
	out := make([]model.SensorValue, 0, len(recs))
	for _, r := range recs {
		v, ok := r.Metric(names...)
		if !ok {
			if metric == "visibility" {
				v = DefaultVisibility
			} else {
				continue
			}
		}
		if skipInvalid(r, &warnings) {
			continue
		}
		if !finite(v) {
			warnings = append(warnings, geoerr.Skipped("sensor", r.ID, "non-finite "+metric))
			continue
		}
		out = append(out, model.SensorValue{ID: r.ID, Location: r.Location, Value: v})
	}
	return out, warnings
}
