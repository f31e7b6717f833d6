// Package engine orchestrates a request: fetch sensor data, build and cache
// zones, then score routes or derive heatmaps and clusters.
package engine

import (
	"context"
	"time"

	"github.com/sells-group/zone-router/internal/cache"
	"github.com/sells-group/zone-router/internal/cluster"
	"github.com/sells-group/zone-router/internal/heatmap"
	"github.com/sells-group/zone-router/internal/metrics"
	"github.com/sells-group/zone-router/internal/route"
	"github.com/sells-group/zone-router/internal/source"
)

// Cache key prefixes.
const (
	KeyZones    = "zones"
	KeyHeatmap  = "heatmap"
	KeyClusters = "clusters"
)

// Options tunes the service.
type Options struct {
	// BBoxPadding grows the anchor bounding box by this fraction per side.
	BBoxPadding    float64
	CacheTTL       time.Duration
	DefaultProfile string
	Heatmap        heatmap.Params
	Cluster        cluster.Params
	// ClusterSeed seeds k-means. Zero draws a fresh seed per computation.
	ClusterSeed uint64
	Now         func() time.Time
}

// Service is the engine facade used by the API and the CLI.
type Service struct {
	sensors source.SensorSource
	routes  source.RouteFinder
	scorer  *route.Scorer
	store   cache.Store
	metrics *metrics.Collector
	opts    Options
}

// New creates a Service. routes, store and m may be nil: without a route
// finder callers must supply candidates, without a store nothing is cached.
func New(sensors source.SensorSource, routes source.RouteFinder, scorer *route.Scorer, store cache.Store, m *metrics.Collector, opts Options) *Service {
	if opts.BBoxPadding <= 0 {
		opts.BBoxPadding = 0.1
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.DefaultTTL
	}
	if opts.DefaultProfile == "" {
		opts.DefaultProfile = "healthiest"
	}
	if opts.Heatmap == (heatmap.Params{}) {
		opts.Heatmap = heatmap.DefaultParams()
	}
	if opts.Cluster.MinMembers == 0 {
		opts.Cluster.MinMembers = cluster.DefaultMinMembers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		sensors: sensors,
		routes:  routes,
		scorer:  scorer,
		store:   store,
		metrics: m,
		opts:    opts,
	}
}

// Profiles lists the configured preference profiles.
func (s *Service) Profiles() []route.Profile {
	return s.scorer.Profiles()
}

// HeatmapDefaults returns the configured interpolation parameters.
func (s *Service) HeatmapDefaults() heatmap.Params {
	return s.opts.Heatmap
}

// ClusterDefaults returns the configured clustering parameters.
func (s *Service) ClusterDefaults() cluster.Params {
	return s.opts.Cluster
}

// memoize wraps cache.Memoize with hit/miss and compute-time metrics.
func memoize[T any](ctx context.Context, s *Service, kind, key string, compute func() (T, error)) (T, error) {
	v, hit, err := cache.Memoize(ctx, s.store, key, s.opts.CacheTTL, func() (T, error) {
		defer s.metrics.ObserveCompute(kind, time.Now())
		return compute()
	})
	if err == nil {
		s.metrics.CacheLookup(kind, hit)
	}
	return v, err
}

// ClearCache drops cached computations whose key starts with prefix, or all
// of them for an empty prefix.
func (s *Service) ClearCache(ctx context.Context, prefix string) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	return s.store.Clear(ctx, prefix)
}

// CacheStats reports cache usage.
func (s *Service) CacheStats(ctx context.Context) (cache.Stats, error) {
	if s.store == nil {
		return cache.Stats{Backend: "none"}, nil
	}
	return s.store.Stats(ctx)
}
