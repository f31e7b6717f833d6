package geometry

import (
	"math"

	"github.com/sells-group/zone-router/internal/model"
)

// BBox is an axis-aligned bounding box in degrees.
type BBox struct {
	MinLat float64 `json:"min_lat" mapstructure:"min_lat"`
	MinLng float64 `json:"min_lng" mapstructure:"min_lng"`
	MaxLat float64 `json:"max_lat" mapstructure:"max_lat"`
	MaxLng float64 `json:"max_lng" mapstructure:"max_lng"`
}

// BoundsOf returns the tight bounding box of the valid points. ok is false
// when no valid point exists.
func BoundsOf(points []model.LatLng) (box BBox, ok bool) {
	box = BBox{MinLat: math.Inf(1), MinLng: math.Inf(1), MaxLat: math.Inf(-1), MaxLng: math.Inf(-1)}
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		ok = true
		box.MinLat = math.Min(box.MinLat, p.Lat)
		box.MinLng = math.Min(box.MinLng, p.Lng)
		box.MaxLat = math.Max(box.MaxLat, p.Lat)
		box.MaxLng = math.Max(box.MaxLng, p.Lng)
	}
	if !ok {
		return BBox{}, false
	}
	return box, true
}

// Pad grows the box by fraction of its span on every side. A zero span is
// grown by minDegrees instead so the box never collapses to a line.
func (b BBox) Pad(fraction, minDegrees float64) BBox {
	padLat := (b.MaxLat - b.MinLat) * fraction
	padLng := (b.MaxLng - b.MinLng) * fraction
	if padLat <= 0 {
		padLat = minDegrees
	}
	if padLng <= 0 {
		padLng = minDegrees
	}
	return BBox{
		MinLat: b.MinLat - padLat,
		MinLng: b.MinLng - padLng,
		MaxLat: b.MaxLat + padLat,
		MaxLng: b.MaxLng + padLng,
	}
}

// Valid reports whether the box has a positive area.
func (b BBox) Valid() bool {
	return b.MaxLat > b.MinLat && b.MaxLng > b.MinLng &&
		model.LatLng{Lat: b.MinLat, Lng: b.MinLng}.Valid() &&
		model.LatLng{Lat: b.MaxLat, Lng: b.MaxLng}.Valid()
}

// Contains reports whether p lies inside or on the box.
func (b BBox) Contains(p model.LatLng) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Center returns the midpoint of the box.
func (b BBox) Center() model.LatLng {
	return model.LatLng{Lat: (b.MinLat + b.MaxLat) / 2, Lng: (b.MinLng + b.MaxLng) / 2}
}

// Ring returns the box as a counter-clockwise open ring starting at the
// south-west corner.
func (b BBox) Ring() []model.LatLng {
	return []model.LatLng{
		{Lat: b.MinLat, Lng: b.MinLng},
		{Lat: b.MinLat, Lng: b.MaxLng},
		{Lat: b.MaxLat, Lng: b.MaxLng},
		{Lat: b.MaxLat, Lng: b.MinLng},
	}
}

// Area returns the planar area of the box in square degrees.
func (b BBox) Area() float64 {
	return (b.MaxLat - b.MinLat) * (b.MaxLng - b.MinLng)
}
