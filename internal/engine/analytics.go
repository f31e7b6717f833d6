package engine

import (
	"context"
	"fmt"

	"github.com/sells-group/zone-router/internal/cluster"
	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/heatmap"
	"github.com/sells-group/zone-router/internal/model"
	"github.com/sells-group/zone-router/internal/source"
)

// HeatmapResult is an interpolated grid with the warnings of its inputs.
type HeatmapResult struct {
	model.Heatmap
	Warnings []geoerr.Warning `json:"warnings,omitempty"`
}

// metricValues fetches the sensors carrying metric and extracts its values.
func (s *Service) metricValues(ctx context.Context, metric string) ([]model.SensorValue, []geoerr.Warning, error) {
	kind, ok := source.KindForMetric(metric)
	if !ok {
		return nil, nil, geoerr.Validationf("unknown metric %q; expected one of %v", metric, source.Metrics())
	}
	recs, err := s.sensors.FetchSensors(ctx, kind)
	if err != nil {
		s.metrics.SourceFailed(string(kind))
		return nil, nil, &geoerr.UpstreamFetchError{Source: string(kind), Err: err}
	}
	values, warnings := source.Values(recs, metric)
	return values, warnings, nil
}

// Heatmap interpolates metric over the sensor area. Zero-valued fields of p
// take the configured defaults.
func (s *Service) Heatmap(ctx context.Context, metric string, p heatmap.Params) (*HeatmapResult, error) {
	p = s.heatmapParams(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%s:%g:%g:%g", KeyHeatmap, metric, p.SpacingMeters, p.Power, p.RadiusMeters)
	return memoize(ctx, s, KeyHeatmap, key, func() (*HeatmapResult, error) {
		values, warnings, err := s.metricValues(ctx, metric)
		if err != nil {
			return nil, err
		}
		hm, err := heatmap.Interpolate(values, p, metric)
		if err != nil {
			return nil, err
		}
		return &HeatmapResult{Heatmap: *hm, Warnings: warnings}, nil
	})
}

func (s *Service) heatmapParams(p heatmap.Params) heatmap.Params {
	d := s.opts.Heatmap
	if p.SpacingMeters == 0 {
		p.SpacingMeters = d.SpacingMeters
	}
	if p.Power == 0 {
		p.Power = d.Power
	}
	if p.RadiusMeters == 0 {
		p.RadiusMeters = d.RadiusMeters
	}
	if p.MaxGridPoints == 0 {
		p.MaxGridPoints = d.MaxGridPoints
	}
	return p
}

// Clusters groups the sensors carrying metric by location. A zero K picks
// the automatic k; a zero MinMembers takes the configured default.
func (s *Service) Clusters(ctx context.Context, metric string, p cluster.Params) (*cluster.Result, error) {
	if p.MinMembers == 0 {
		p.MinMembers = s.opts.Cluster.MinMembers
	}
	if p.K == 0 {
		p.K = s.opts.Cluster.K
	}
	if len(p.Bands) == 0 {
		p.Bands = s.opts.Cluster.Bands
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%s:%d:%d:%d", KeyClusters, metric, p.K, p.MinMembers, s.opts.ClusterSeed)
	return memoize(ctx, s, KeyClusters, key, func() (*cluster.Result, error) {
		values, warnings, err := s.metricValues(ctx, metric)
		if err != nil {
			return nil, err
		}
		res, err := cluster.Build(values, p, metric, cluster.NewRand(s.opts.ClusterSeed))
		if err != nil {
			return nil, err
		}
		res.Warnings = append(warnings, res.Warnings...)
		return res, nil
	})
}
