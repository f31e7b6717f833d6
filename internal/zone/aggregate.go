// Package zone joins Voronoi cells with the sensor readings that describe
// them, producing one ZoneProfile per cell.
package zone

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/geometry"
	"github.com/sells-group/zone-router/internal/model"
)

// Data sources feeding a profile.
const (
	SourceAirQuality = "air_quality"
	SourceWeather    = "weather"
	SourceAccidents  = "accidents"
	SourceTraffic    = "traffic"
)

// Sources lists every data source in aggregation order.
var Sources = []string{SourceAirQuality, SourceWeather, SourceAccidents, SourceTraffic}

// Inputs are the readings available for one aggregation cycle. A source
// listed in Unavailable could not be fetched; its values are synthesized for
// every zone.
type Inputs struct {
	AirQuality  []model.AirQualityReading
	Weather     []model.WeatherReading
	Accidents   []model.Accident
	Traffic     []model.TrafficPattern
	Unavailable map[string]bool
}

// Set is the aggregated zone collection with its metadata.
type Set struct {
	Zones           []model.Zone     `json:"zones"`
	Warnings        []geoerr.Warning `json:"warnings,omitempty"`
	FallbackSources []string         `json:"fallback_sources,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Profiles returns the profile of every zone in order.
func (s *Set) Profiles() []model.ZoneProfile {
	out := make([]model.ZoneProfile, len(s.Zones))
	for i, z := range s.Zones {
		out[i] = z.Profile
	}
	return out
}

// Aggregate builds a profile for every zone. Air quality and weather come
// from the nearest reading by great-circle distance; accidents are counted by
// containment; congestion is taken from the first traffic pattern starting
// inside the zone. A missing source never blocks the others.
func Aggregate(zones []model.ZonePolygon, in Inputs) *Set {
	set := &Set{Zones: make([]model.Zone, 0, len(zones))}

	aq := validAirQuality(in.AirQuality, set)
	wx := validWeather(in.Weather, set)
	accidents := validAccidents(in.Accidents, set)
	traffic := validTraffic(in.Traffic, set)

	fallback := map[string]bool{
		SourceAirQuality: in.Unavailable[SourceAirQuality] || len(aq) == 0,
		SourceWeather:    in.Unavailable[SourceWeather] || len(wx) == 0,
		SourceAccidents:  in.Unavailable[SourceAccidents],
		SourceTraffic:    in.Unavailable[SourceTraffic],
	}
	for _, src := range Sources {
		if fallback[src] {
			set.FallbackSources = append(set.FallbackSources, src)
		}
	}
	if len(set.FallbackSources) > 0 && len(zones) > 0 {
		zap.L().Warn("zone: fallback synthesized",
			zap.Strings("sources", set.FallbackSources),
			zap.Int("zones", len(zones)),
		)
	}

	for _, z := range zones {
		if !usable(z) {
			set.Warnings = append(set.Warnings, geoerr.Skipped("zone", z.ID, "invalid boundary"))
			continue
		}

		p := model.ZoneProfile{ZoneID: z.ID, CongestionLevel: model.CongestionLow}

		if fallback[SourceAirQuality] {
			p.AQI = synthAQI(z.Anchor)
			p.Fallback = append(p.Fallback, SourceAirQuality)
		} else {
			p.AQI = nearestAirQuality(z.Anchor, aq).AQI
		}

		if fallback[SourceWeather] {
			p.Weather = synthWeather(z.Anchor)
			p.Fallback = append(p.Fallback, SourceWeather)
		} else {
			p.Weather = nearestWeather(z.Anchor, wx).Weather
		}

		if fallback[SourceAccidents] {
			p.AccidentCount = synthAccidents(z.Anchor)
			p.Fallback = append(p.Fallback, SourceAccidents)
		} else {
			p.AccidentCount = countAccidents(z.Boundary, accidents)
		}

		if fallback[SourceTraffic] {
			p.CongestionLevel = synthCongestion(z.Anchor)
			p.Fallback = append(p.Fallback, SourceTraffic)
		} else {
			p.CongestionLevel = congestion(z.Boundary, traffic)
		}

		set.Zones = append(set.Zones, model.Zone{Polygon: z, Profile: p})
	}
	return set
}

func usable(z model.ZonePolygon) bool {
	if len(z.Boundary) < 3 || !z.Anchor.Valid() {
		return false
	}
	return !slices.ContainsFunc(z.Boundary, func(p model.LatLng) bool { return !p.Valid() })
}

func validAirQuality(in []model.AirQualityReading, set *Set) []model.AirQualityReading {
	out := make([]model.AirQualityReading, 0, len(in))
	for _, r := range in {
		if !r.Location.Valid() || math.IsNaN(r.AQI) || math.IsInf(r.AQI, 0) {
			set.Warnings = append(set.Warnings, geoerr.Skipped("sensor", r.SensorID, "invalid air quality reading"))
			continue
		}
		out = append(out, r)
	}
	return out
}

func validWeather(in []model.WeatherReading, set *Set) []model.WeatherReading {
	out := make([]model.WeatherReading, 0, len(in))
	for _, r := range in {
		if !r.Location.Valid() {
			set.Warnings = append(set.Warnings, geoerr.Skipped("sensor", r.SensorID, "invalid weather reading"))
			continue
		}
		out = append(out, r)
	}
	return out
}

func validAccidents(in []model.Accident, set *Set) []model.Accident {
	out := make([]model.Accident, 0, len(in))
	for _, a := range in {
		if !a.Location.Valid() {
			set.Warnings = append(set.Warnings, geoerr.Skipped("accident", a.ID, "invalid coordinates"))
			continue
		}
		out = append(out, a)
	}
	return out
}

func validTraffic(in []model.TrafficPattern, set *Set) []model.TrafficPattern {
	out := make([]model.TrafficPattern, 0, len(in))
	for _, t := range in {
		if !t.Start.Valid() {
			set.Warnings = append(set.Warnings, geoerr.Skipped("traffic", t.ID, "invalid coordinates"))
			continue
		}
		out = append(out, t)
	}
	return out
}

func nearestAirQuality(p model.LatLng, readings []model.AirQualityReading) model.AirQualityReading {
	best, bestDist := readings[0], math.Inf(1)
	for _, r := range readings {
		if d := geometry.Haversine(p, r.Location); d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}

func nearestWeather(p model.LatLng, readings []model.WeatherReading) model.WeatherReading {
	best, bestDist := readings[0], math.Inf(1)
	for _, r := range readings {
		if d := geometry.Haversine(p, r.Location); d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}

func countAccidents(ring []model.LatLng, accidents []model.Accident) int {
	n := 0
	for _, a := range accidents {
		if geometry.PointInPolygon(a.Location, ring) {
			n++
		}
	}
	return n
}

func congestion(ring []model.LatLng, patterns []model.TrafficPattern) model.CongestionLevel {
	for _, t := range patterns {
		if geometry.PointInPolygon(t.Start, ring) {
			return model.ParseCongestionLevel(string(t.Level))
		}
	}
	return model.CongestionLow
}

// seeded returns a generator derived only from the anchor coordinates and
// the source name, so the same zone always synthesizes the same values.
func seeded(anchor model.LatLng, source string) *rand.Rand {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(anchor.Lat))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(anchor.Lng))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(source))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func synthAQI(anchor model.LatLng) float64 {
	return round1(30 + seeded(anchor, SourceAirQuality).Float64()*120)
}

func synthWeather(anchor model.LatLng) model.Weather {
	r := seeded(anchor, SourceWeather)
	return model.Weather{
		Rainfall:    round1(r.Float64() * 10),
		Visibility:  math.Round(2000 + r.Float64()*8000),
		Temperature: round1(24 + r.Float64()*10),
		Humidity:    math.Round(50 + r.Float64()*40),
		WindSpeed:   round1(r.Float64() * 8),
	}
}

func synthAccidents(anchor model.LatLng) int {
	return seeded(anchor, SourceAccidents).IntN(3)
}

func synthCongestion(anchor model.LatLng) model.CongestionLevel {
	return model.CongestionLevels[seeded(anchor, SourceTraffic).IntN(len(model.CongestionLevels))]
}
