package model

// AirQualityReading is the latest AQI observed by an air-quality sensor.
type AirQualityReading struct {
	SensorID string  `json:"sensor_id"`
	Location LatLng  `json:"location"`
	AQI      float64 `json:"aqi"`
}

// WeatherReading is the latest observation of a weather station.
type WeatherReading struct {
	SensorID string  `json:"sensor_id"`
	Location LatLng  `json:"location"`
	Weather  Weather `json:"weather"`
}

// Accident is a reported road incident.
type Accident struct {
	ID       string `json:"id"`
	Location LatLng `json:"location"`
	Severity string `json:"severity,omitempty"`
}

// TrafficPattern is a road segment with an observed congestion level.
type TrafficPattern struct {
	ID    string          `json:"id"`
	Start LatLng          `json:"start"`
	End   LatLng          `json:"end"`
	Level CongestionLevel `json:"level"`
}
