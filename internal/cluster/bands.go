package cluster

import "math"

// Band is a classification interval: values below Upper fall in the band.
type Band struct {
	Name  string  `json:"name" yaml:"name"`
	Upper float64 `json:"upper" yaml:"upper"`
	Color string  `json:"color" yaml:"color"`
}

// Band colors.
const (
	ColorGood      = "#22c55e"
	ColorModerate  = "#eab308"
	ColorUnhealthy = "#ef4444"
)

var defaultBands = map[string][]Band{
	"aqi": {
		{Name: "good", Upper: 50, Color: ColorGood},
		{Name: "moderate", Upper: 100, Color: ColorModerate},
		{Name: "unhealthy", Upper: math.Inf(1), Color: ColorUnhealthy},
	},
	"rainfall": {
		{Name: "light", Upper: 2.5, Color: ColorGood},
		{Name: "moderate", Upper: 7.6, Color: ColorModerate},
		{Name: "heavy", Upper: math.Inf(1), Color: ColorUnhealthy},
	},
	"temperature": {
		{Name: "comfortable", Upper: 30, Color: ColorGood},
		{Name: "hot", Upper: 35, Color: ColorModerate},
		{Name: "extreme", Upper: math.Inf(1), Color: ColorUnhealthy},
	},
	"visibility": {
		{Name: "poor", Upper: 2000, Color: ColorUnhealthy},
		{Name: "reduced", Upper: 5000, Color: ColorModerate},
		{Name: "clear", Upper: math.Inf(1), Color: ColorGood},
	},
}

// DefaultBands returns the bands for metric, falling back to the AQI bands.
func DefaultBands(metric string) []Band {
	if b, ok := defaultBands[metric]; ok {
		return b
	}
	return defaultBands["aqi"]
}

// Classify returns the first band whose upper bound exceeds v. Values past
// the last bound fall in the last band.
func Classify(v float64, bands []Band) Band {
	for _, b := range bands {
		if v < b.Upper {
			return b
		}
	}
	if len(bands) == 0 {
		return Band{}
	}
	return bands[len(bands)-1]
}
