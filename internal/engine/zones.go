package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/geometry"
	"github.com/sells-group/zone-router/internal/model"
	"github.com/sells-group/zone-router/internal/source"
	"github.com/sells-group/zone-router/internal/voronoi"
	"github.com/sells-group/zone-router/internal/zone"
)

// ZoneSet is the cached result of one zone-building cycle.
type ZoneSet struct {
	zone.Set
	BBox geometry.BBox `json:"bbox"`
}

// ErrAllSourcesFailed is wrapped when no sensor stream could be fetched.
var ErrAllSourcesFailed = eris.New("engine: every sensor source failed")

// Zones returns the current zone set, building it on a cache miss.
func (s *Service) Zones(ctx context.Context) (*ZoneSet, error) {
	return memoize(ctx, s, KeyZones, KeyZones, func() (*ZoneSet, error) {
		return s.buildZones(ctx)
	})
}

func (s *Service) buildZones(ctx context.Context) (*ZoneSet, error) {
	snap := source.FetchAll(ctx, s.sensors)
	for _, src := range zone.Sources {
		if snap.Inputs.Unavailable[src] {
			s.metrics.SourceFailed(src)
		}
	}
	if snap.Failed() == len(zone.Sources) {
		return nil, &geoerr.UpstreamFetchError{Source: "sensors", Err: ErrAllSourcesFailed}
	}

	anchors := zoneAnchors(snap.Inputs)
	out := &ZoneSet{}

	locs := make([]model.LatLng, len(anchors))
	for i, a := range anchors {
		locs[i] = a.Location
	}
	box, ok := geometry.BoundsOf(locs)
	var cells []model.ZonePolygon
	if ok {
		out.BBox = box.Pad(s.opts.BBoxPadding, 0.01)
		// An insufficient anchor set is already reported in the diagram warnings.
		diagram, err := voronoi.Partition(anchors, out.BBox)
		if err != nil && !geoerr.IsInsufficient(err) {
			return nil, err
		}
		cells = diagram.Cells
		snap.Warnings = append(snap.Warnings, diagram.Warnings...)
	} else {
		snap.Warnings = append(snap.Warnings, geoerr.WarningFrom(&geoerr.InsufficientDataError{
			Operation: "voronoi", Have: 0, Need: voronoi.MinAnchors,
		}))
	}

	set := zone.Aggregate(cells, snap.Inputs)
	out.Set = *set
	out.Warnings = append(snap.Warnings, set.Warnings...)
	out.GeneratedAt = s.opts.Now().UTC()

	zap.L().Info("engine: zones built",
		zap.Int("zones", len(out.Zones)),
		zap.Int("anchors", len(anchors)),
		zap.Strings("fallback_sources", out.FallbackSources),
		zap.Int("warnings", len(out.Warnings)),
	)
	return out, nil
}

// zoneAnchors uses air-quality sensors as Voronoi anchors, falling back to
// weather stations when no air-quality reading is usable.
func zoneAnchors(in zone.Inputs) []model.SensorPoint {
	if len(in.AirQuality) > 0 {
		out := make([]model.SensorPoint, len(in.AirQuality))
		for i, r := range in.AirQuality {
			out[i] = model.SensorPoint{ID: r.SensorID, Location: r.Location, Kind: model.KindAirQuality}
		}
		return out
	}
	out := make([]model.SensorPoint, len(in.Weather))
	for i, r := range in.Weather {
		out[i] = model.SensorPoint{ID: r.SensorID, Location: r.Location, Kind: model.KindWeather}
	}
	return out
}
