// Package geojson encodes zones, clusters and scored routes as GeoJSON
// features. Coordinates are emitted in [lng, lat] order.
package geojson

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/zone-router/internal/cluster"
	"github.com/sells-group/zone-router/internal/model"
)

// Polygon converts an open or closed ring into a closed go-geom polygon.
func Polygon(ring []model.LatLng) (*geom.Polygon, error) {
	if len(ring) < 3 {
		return nil, eris.Errorf("geojson: polygon needs at least 3 vertices, got %d", len(ring))
	}
	coords := make([]geom.Coord, 0, len(ring)+1)
	for _, p := range ring {
		coords = append(coords, geom.Coord{p.Lng, p.Lat})
	}
	if ring[0] != ring[len(ring)-1] {
		coords = append(coords, geom.Coord{ring[0].Lng, ring[0].Lat})
	}
	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
	if err != nil {
		return nil, eris.Wrap(err, "geojson: build polygon")
	}
	return poly, nil
}

// LineString converts a polyline into a go-geom line string.
func LineString(pts []model.LatLng) (*geom.LineString, error) {
	if len(pts) < 2 {
		return nil, eris.Errorf("geojson: line string needs at least 2 points, got %d", len(pts))
	}
	coords := make([]geom.Coord, len(pts))
	for i, p := range pts {
		coords[i] = geom.Coord{p.Lng, p.Lat}
	}
	ls, err := geom.NewLineString(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, eris.Wrap(err, "geojson: build line string")
	}
	return ls, nil
}

// ZoneFeatures encodes every zone as a Polygon feature carrying its profile.
func ZoneFeatures(zones []model.Zone) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(zones))}
	bands := cluster.DefaultBands("aqi")
	for _, z := range zones {
		poly, err := Polygon(z.Polygon.Boundary)
		if err != nil {
			return nil, eris.Wrapf(err, "geojson: zone %s", z.Polygon.ID)
		}
		p := z.Profile
		band := cluster.Classify(p.AQI, bands)
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       z.Polygon.ID,
			Geometry: poly,
			Properties: map[string]any{
				"zoneId":          z.Polygon.ID,
				"anchorSensorId":  z.Polygon.AnchorSensorID,
				"aqi":             p.AQI,
				"rainfall":        p.Weather.Rainfall,
				"visibility":      p.Weather.Visibility,
				"temperature":     p.Weather.Temperature,
				"humidity":        p.Weather.Humidity,
				"windSpeed":       p.Weather.WindSpeed,
				"accidentCount":   p.AccidentCount,
				"congestionLevel": string(p.CongestionLevel),
				"fallback":        nonNil(p.Fallback),
				"band":            band.Name,
				"color":           band.Color,
			},
		})
	}
	return fc, nil
}

// ClusterFeatures encodes every cluster hull as a Polygon feature.
func ClusterFeatures(clusters []model.ClusterResult) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(clusters))}
	for _, c := range clusters {
		poly, err := Polygon(c.Hull)
		if err != nil {
			return nil, eris.Wrapf(err, "geojson: cluster %s", c.ID)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       c.ID,
			Geometry: poly,
			Properties: map[string]any{
				"clusterId":   c.ID,
				"centroid":    []float64{c.Centroid.Lng, c.Centroid.Lat},
				"memberIds":   nonNil(c.MemberIDs),
				"memberCount": len(c.MemberIDs),
				"avg":         c.Stats.Avg,
				"min":         c.Stats.Min,
				"max":         c.Stats.Max,
				"band":        c.Band,
				"color":       c.Color,
				"degenerate":  c.Degenerate,
			},
		})
	}
	return fc, nil
}

// RouteFeature encodes a scored route as a LineString feature.
func RouteFeature(c model.RouteCandidate, s model.RouteScore) (*geojson.Feature, error) {
	ls, err := LineString(c.Polyline)
	if err != nil {
		return nil, eris.Wrapf(err, "geojson: route %s", c.ID)
	}
	return &geojson.Feature{
		ID:       c.ID,
		Geometry: ls,
		Properties: map[string]any{
			"routeId":        c.ID,
			"rank":           s.Rank,
			"distance":       c.DistanceMeters,
			"duration":       c.DurationSeconds,
			"aqiScore":       s.CriterionScores.AQI,
			"weatherScore":   s.CriterionScores.Weather,
			"accidentScore":  s.CriterionScores.Accident,
			"trafficScore":   s.CriterionScores.Traffic,
			"durationScore":  s.DurationScore,
			"compositeScore": s.CompositeScore,
			"warnings":       nonNil(s.Warnings),
			"touchedZones":   nonNil(s.TouchedZones),
		},
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
