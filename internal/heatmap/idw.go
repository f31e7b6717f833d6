// Package heatmap interpolates scalar sensor readings onto a regular grid
// using inverse distance weighting.
package heatmap

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/geometry"
	"github.com/sells-group/zone-router/internal/model"
)

// Parameter defaults and bounds.
const (
	DefaultSpacingMeters = 100.0
	MinSpacingMeters     = 50.0
	MaxSpacingMeters     = 500.0

	DefaultPower = 2.0
	MinPower     = 1.0
	MaxPower     = 5.0

	DefaultRadiusMeters = 500.0
	MinRadiusMeters     = 100.0
	MaxRadiusMeters     = 2000.0

	// DefaultMaxGridPoints bounds the grid size before interpolation starts.
	DefaultMaxGridPoints = 250_000

	bboxPadding = 0.1
	minDistance = 1.0
	gridEpsilon = 1e-9
)

// Params configure one interpolation.
type Params struct {
	SpacingMeters float64 `json:"grid_spacing_meters" mapstructure:"spacing_meters"`
	Power         float64 `json:"power" mapstructure:"power"`
	RadiusMeters  float64 `json:"radius_meters" mapstructure:"radius_meters"`
	MaxGridPoints int     `json:"-" mapstructure:"max_grid_points"`
}

// DefaultParams returns the default interpolation parameters.
func DefaultParams() Params {
	return Params{
		SpacingMeters: DefaultSpacingMeters,
		Power:         DefaultPower,
		RadiusMeters:  DefaultRadiusMeters,
		MaxGridPoints: DefaultMaxGridPoints,
	}
}

// Validate range-checks every parameter.
func (p Params) Validate() error {
	var errs []string
	if !inRange(p.SpacingMeters, MinSpacingMeters, MaxSpacingMeters) {
		errs = append(errs, fmt.Sprintf("grid spacing must be between %g and %g meters, got %g", MinSpacingMeters, MaxSpacingMeters, p.SpacingMeters))
	}
	if !inRange(p.Power, MinPower, MaxPower) {
		errs = append(errs, fmt.Sprintf("power must be between %g and %g, got %g", MinPower, MaxPower, p.Power))
	}
	if !inRange(p.RadiusMeters, MinRadiusMeters, MaxRadiusMeters) {
		errs = append(errs, fmt.Sprintf("radius must be between %g and %g meters, got %g", MinRadiusMeters, MaxRadiusMeters, p.RadiusMeters))
	}
	if p.MaxGridPoints < 0 {
		errs = append(errs, "max grid points must be >= 0")
	}
	if len(errs) > 0 {
		return geoerr.NewValidationError(errs...)
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// Interpolate builds a sparse heatmap of samples over their bounding box
// padded by 10%. Grid points with no sample inside the radius are dropped.
// Intensities are the interpolated value divided by the maximum raw sample
// value, clamped to [0,1]. Samples with invalid coordinates or values are
// ignored.
func Interpolate(samples []model.SensorValue, p Params, metric string) (*model.Heatmap, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	valid := make([]model.SensorValue, 0, len(samples))
	locs := make([]model.LatLng, 0, len(samples))
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if !s.Location.Valid() || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		valid = append(valid, s)
		locs = append(locs, s.Location)
		values = append(values, s.Value)
	}

	hm := &model.Heatmap{
		Points: []model.HeatmapPoint{},
		Metadata: model.HeatmapMetadata{
			Metric:            metric,
			GridSpacingMeters: p.SpacingMeters,
			Power:             p.Power,
			RadiusMeters:      p.RadiusMeters,
			SensorCount:       len(valid),
			GeneratedAt:       time.Now().UTC(),
		},
	}
	if len(valid) == 0 {
		return hm, nil
	}

	maxRaw := floats.Max(values)
	hm.Metadata.MaxRawValue = maxRaw

	box, _ := geometry.BoundsOf(locs)
	stepLat, stepLng := geometry.MetersToDegrees(p.SpacingMeters, box.Center().Lat)
	box = padBox(box, stepLat, stepLng)

	rows := int(math.Floor((box.MaxLat-box.MinLat)/stepLat+gridEpsilon)) + 1
	cols := int(math.Floor((box.MaxLng-box.MinLng)/stepLng+gridEpsilon)) + 1
	if p.MaxGridPoints > 0 && rows*cols > p.MaxGridPoints {
		return nil, geoerr.Validationf("heatmap: grid of %d points exceeds limit of %d; increase spacing", rows*cols, p.MaxGridPoints)
	}
	hm.Metadata.GridPoints = rows * cols

	for r := range rows {
		lat := box.MinLat + float64(r)*stepLat
		for c := range cols {
			pt := model.LatLng{Lat: lat, Lng: box.MinLng + float64(c)*stepLng}
			v, ok := idw(pt, valid, p)
			if !ok {
				continue
			}
			intensity := 0.0
			if maxRaw > 0 {
				intensity = math.Min(math.Max(v/maxRaw, 0), 1)
			}
			hm.Points = append(hm.Points, model.HeatmapPoint{Lat: pt.Lat, Lng: pt.Lng, Intensity: intensity, Value: v})
			hm.MaxIntensity = math.Max(hm.MaxIntensity, intensity)
		}
	}
	return hm, nil
}

// padBox grows the box by 10% of its span, or by one grid step along an
// axis with zero span.
func padBox(b geometry.BBox, stepLat, stepLng float64) geometry.BBox {
	padLat := (b.MaxLat - b.MinLat) * bboxPadding
	padLng := (b.MaxLng - b.MinLng) * bboxPadding
	if padLat <= 0 {
		padLat = stepLat
	}
	if padLng <= 0 {
		padLng = stepLng
	}
	return geometry.BBox{
		MinLat: b.MinLat - padLat,
		MinLng: b.MinLng - padLng,
		MaxLat: b.MaxLat + padLat,
		MaxLng: b.MaxLng + padLng,
	}
}

// idw returns the weighted value at pt, or false when no sample lies within
// the radius.
func idw(pt model.LatLng, samples []model.SensorValue, p Params) (float64, bool) {
	var num, den float64
	for _, s := range samples {
		d := geometry.Haversine(pt, s.Location)
		if d > p.RadiusMeters {
			continue
		}
		w := 1 / math.Pow(math.Max(d, minDistance), p.Power)
		num += s.Value * w
		den += w
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
