// Package model holds the shared data types passed between the zone, route,
// heatmap and cluster engines.
package model

import (
	"math"
	"time"
)

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and inside the WGS84 range.
func (p LatLng) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// SensorKind identifies the data stream a sensor reports on.
type SensorKind string

// Sensor kinds supplied by the context broker.
const (
	KindAirQuality SensorKind = "air_quality"
	KindWeather    SensorKind = "weather"
	KindAccident   SensorKind = "accident"
	KindTraffic    SensorKind = "traffic"
)

// SensorPoint is a sensor location. It is immutable for a computation cycle.
type SensorPoint struct {
	ID       string     `json:"id"`
	Location LatLng     `json:"location"`
	Kind     SensorKind `json:"kind"`
}

// Reading is a single observed metric value.
type Reading struct {
	SensorID   string    `json:"sensor_id"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// SensorValue pairs a sensor location with one scalar attribute. It is the
// input unit for interpolation and clustering.
type SensorValue struct {
	ID       string  `json:"id"`
	Location LatLng  `json:"location"`
	Value    float64 `json:"value"`
}

// ZonePolygon is one Voronoi cell. Boundary is an open ring (the first vertex
// is not repeated) in counter-clockwise order.
type ZonePolygon struct {
	ID             string   `json:"id"`
	Boundary       []LatLng `json:"boundary"`
	AnchorSensorID string   `json:"anchor_sensor_id"`
	Anchor         LatLng   `json:"anchor"`
}

// Weather is the weather snapshot attached to a zone.
type Weather struct {
	Rainfall    float64 `json:"rainfall"`
	Visibility  float64 `json:"visibility"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// CongestionLevel is a coarse traffic classification.
type CongestionLevel string

// Congestion levels reported by traffic patterns.
const (
	CongestionLow      CongestionLevel = "low"
	CongestionModerate CongestionLevel = "moderate"
	CongestionHigh     CongestionLevel = "high"
	CongestionSevere   CongestionLevel = "severe"
)

// CongestionLevels lists the known levels in ascending severity.
var CongestionLevels = []CongestionLevel{CongestionLow, CongestionModerate, CongestionHigh, CongestionSevere}

// ParseCongestionLevel maps free-form upstream values onto a known level.
// Unknown values map to low.
func ParseCongestionLevel(s string) CongestionLevel {
	switch CongestionLevel(s) {
	case CongestionModerate, CongestionHigh, CongestionSevere:
		return CongestionLevel(s)
	case "medium":
		return CongestionModerate
	case "heavy":
		return CongestionHigh
	default:
		return CongestionLow
	}
}

// ZoneProfile is the aggregated environmental and traffic snapshot of a zone.
type ZoneProfile struct {
	ZoneID          string          `json:"zone_id"`
	AQI             float64         `json:"aqi"`
	Weather         Weather         `json:"weather"`
	AccidentCount   int             `json:"accident_count"`
	CongestionLevel CongestionLevel `json:"congestion_level"`
	// Fallback names the data sources whose values were synthesized.
	Fallback []string `json:"fallback,omitempty"`
}

// IsFallback reports whether the named source was synthesized for this zone.
func (p ZoneProfile) IsFallback(source string) bool {
	for _, s := range p.Fallback {
		if s == source {
			return true
		}
	}
	return false
}

// Zone joins a Voronoi cell with its aggregated profile.
type Zone struct {
	Polygon ZonePolygon `json:"polygon"`
	Profile ZoneProfile `json:"profile"`
}

// RouteCandidate is an alternative route supplied by the routing engine.
type RouteCandidate struct {
	ID              string   `json:"id"`
	Polyline        []LatLng `json:"polyline"`
	DistanceMeters  float64  `json:"distance_meters"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// CriterionScores are the four per-route risk dimensions, each in [0,100].
type CriterionScores struct {
	AQI      float64 `json:"aqi"`
	Weather  float64 `json:"weather"`
	Accident float64 `json:"accident"`
	Traffic  float64 `json:"traffic"`
}

// RouteScore is the scoring result for one candidate.
type RouteScore struct {
	CandidateID     string          `json:"candidate_id"`
	CriterionScores CriterionScores `json:"criterion_scores"`
	DurationScore   float64         `json:"duration_score"`
	CompositeScore  float64         `json:"composite_score"`
	Rank            int             `json:"rank"`
	Warnings        []string        `json:"warnings"`
	TouchedZones    []string        `json:"touched_zones,omitempty"`
}

// ClusterStats summarises the scalar attribute of a cluster's members.
type ClusterStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ClusterResult is one surviving k-means cluster.
type ClusterResult struct {
	ID        string       `json:"id"`
	Centroid  LatLng       `json:"centroid"`
	MemberIDs []string     `json:"member_ids"`
	Stats     ClusterStats `json:"stats"`
	Band      string       `json:"band"`
	Color     string       `json:"color"`
	Hull      []LatLng     `json:"hull"`
	// Degenerate is set when Hull is a synthetic ring rather than a true hull.
	Degenerate bool `json:"degenerate,omitempty"`
}

// HeatmapPoint is one interpolated grid point.
type HeatmapPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"`
	Value     float64 `json:"value"`
}

// HeatmapMetadata describes how a heatmap was produced.
type HeatmapMetadata struct {
	Metric            string    `json:"metric,omitempty"`
	GridSpacingMeters float64   `json:"grid_spacing_meters"`
	Power             float64   `json:"power"`
	RadiusMeters      float64   `json:"radius_meters"`
	GridPoints        int       `json:"grid_points"`
	SensorCount       int       `json:"sensor_count"`
	MaxRawValue       float64   `json:"max_raw_value"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Heatmap is a sparse interpolated grid.
type Heatmap struct {
	Points       []HeatmapPoint  `json:"points"`
	MaxIntensity float64         `json:"max_intensity"`
	Metadata     HeatmapMetadata `json:"metadata"`
}
