package route

import (
	"math"

	"github.com/sells-group/zone-router/internal/model"
)

// Criterion scores used when a route touches no zone.
const (
	DefaultAQIScore      = 50
	DefaultWeatherScore  = 30
	DefaultAccidentScore = 20
	DefaultTrafficScore  = 30
)

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AQIScore maps an AQI reading onto 0-100 (AQI 200 and above saturate).
func AQIScore(aqi float64) float64 {
	return Clamp(aqi/2, 0, 100)
}

// WeatherScore combines rainfall (mm/h, capped at 60 points) with a
// visibility penalty of up to 40 points below 10 km.
func WeatherScore(w model.Weather) float64 {
	rain := math.Min(math.Max(w.Rainfall, 0)*10, 60)
	vis := math.Max(0, (10000-w.Visibility)/10000) * 40
	return Clamp(rain+vis, 0, 100)
}

// AccidentScore gives 20 points per recent accident.
func AccidentScore(count int) float64 {
	return Clamp(float64(count)*20, 0, 100)
}

// TrafficScore maps a congestion level onto 0-100.
func TrafficScore(level model.CongestionLevel) float64 {
	switch model.ParseCongestionLevel(string(level)) {
	case model.CongestionModerate:
		return 40
	case model.CongestionHigh:
		return 70
	case model.CongestionSevere:
		return 90
	default:
		return 10
	}
}

// ZoneScores converts a raw zone profile into criterion scores.
func ZoneScores(p model.ZoneProfile) model.CriterionScores {
	return model.CriterionScores{
		AQI:      AQIScore(p.AQI),
		Weather:  WeatherScore(p.Weather),
		Accident: AccidentScore(p.AccidentCount),
		Traffic:  TrafficScore(p.CongestionLevel),
	}
}

// DurationScore normalizes a duration against ceiling onto 0-100.
func DurationScore(seconds, ceilingSeconds float64) float64 {
	if ceilingSeconds <= 0 {
		return 100
	}
	return Clamp(seconds/ceilingSeconds*100, 0, 100)
}

// Composite is the weighted sum over all five dimensions. Lower is better.
func Composite(w Weights, s model.CriterionScores, duration float64) float64 {
	return w.Duration*duration + w.AQI*s.AQI + w.Weather*s.Weather + w.Accident*s.Accident + w.Traffic*s.Traffic
}
