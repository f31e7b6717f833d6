package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zone-router/internal/cache"
	"github.com/sells-group/zone-router/internal/engine"
	"github.com/sells-group/zone-router/internal/metrics"
	"github.com/sells-group/zone-router/internal/resilience"
	"github.com/sells-group/zone-router/internal/route"
	"github.com/sells-group/zone-router/internal/source"
)

// engineEnv holds the engine service and the resources behind it.
type engineEnv struct {
	Service *engine.Service
	Metrics *metrics.Collector
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (e *engineEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initEngine validates cfg for mode and wires sources, cache, scorer and
// metrics into an engine service. Callers should defer env.Close().
func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &engineEnv{}
	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	env.Metrics = m

	sensors, err := initSensors(ctx, env)
	if err != nil {
		env.Close()
		return nil, err
	}

	routes, err := initRouting(env)
	if err != nil {
		env.Close()
		return nil, err
	}

	scorer, err := initScorer()
	if err != nil {
		env.Close()
		return nil, err
	}

	store := initCache(ctx, env)

	env.Service = engine.New(sensors, routes, scorer, store, m, engine.Options{
		BBoxPadding:    cfg.Engine.BBoxPadding,
		CacheTTL:       cfg.Cache.TTL(),
		DefaultProfile: cfg.Engine.DefaultProfile,
		Heatmap:        cfg.Heatmap,
		Cluster:        cfg.Cluster.Params,
		ClusterSeed:    cfg.Cluster.Seed,
	})
	return env, nil
}

func initSensors(ctx context.Context, env *engineEnv) (source.SensorSource, error) {
	sc := cfg.Sources.Sensors
	policy := resilience.NewPolicy("sensors", sc.Upstream.Policy(), env.Metrics.BreakerChanged)

	switch sc.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "connect sensor database")
		}
		env.closers = append(env.closers, pool.Close)
		zap.L().Info("sensor source: postgres", zap.String("table", sc.Table))
		return source.NewPostgresSensorStore(pool, sc.Table, policy), nil
	default:
		client, err := source.NewHTTPSensorClient(source.HTTPOptions{BaseURL: sc.BaseURL, Policy: policy})
		if err != nil {
			return nil, err
		}
		zap.L().Info("sensor source: http", zap.String("base_url", sc.BaseURL))
		return client, nil
	}
}

// initRouting returns nil when no routing engine is configured; callers must
// then supply route candidates themselves.
func initRouting(env *engineEnv) (source.RouteFinder, error) {
	rc := cfg.Sources.Routing
	if rc.BaseURL == "" {
		zap.L().Warn("routing engine not configured, candidates must be supplied")
		return nil, nil
	}
	policy := resilience.NewPolicy("routing", rc.Upstream.Policy(), env.Metrics.BreakerChanged)
	client, err := source.NewRoutingClient(source.HTTPOptions{BaseURL: rc.BaseURL, Policy: policy}, rc.Profile)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func initScorer() (*route.Scorer, error) {
	opts := route.Options{
		DurationCeiling: time.Duration(cfg.Engine.DurationCeilingSecs) * time.Second,
		TopK:            cfg.Engine.TopK,
		Parallelism:     cfg.Engine.Parallelism,
	}
	var profiles map[string]route.Profile
	if path := cfg.Engine.ProfilesPath; path != "" {
		f, err := route.LoadProfiles(path)
		if err != nil {
			return nil, err
		}
		profiles = f.Profiles
		opts.RouteRules = f.RouteRules
		opts.ZoneRules = f.ZoneRules
		zap.L().Info("loaded preference profiles", zap.String("path", path), zap.Int("profiles", len(profiles)))
	}

	scorer, err := route.NewScorer(profiles, opts)
	if err != nil {
		return nil, err
	}
	if _, err := scorer.Profile(cfg.Engine.DefaultProfile); err != nil {
		return nil, eris.Wrap(err, "engine.default_profile")
	}
	return scorer, nil
}

// initCache falls back to the in-memory store when redis is unreachable.
func initCache(ctx context.Context, env *engineEnv) cache.Store {
	cc := cfg.Cache
	if cc.Backend == "redis" {
		rs := cache.NewRedisStore(cache.RedisOptions{
			Addr:      cc.RedisAddr,
			Password:  cc.RedisPassword,
			DB:        cc.RedisDB,
			KeyPrefix: cc.KeyPrefix,
			TTL:       cc.TTL(),
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := rs.Ping(pingCtx)
		if err == nil {
			env.closers = append(env.closers, func() { _ = rs.Close() })
			zap.L().Info("cache: redis", zap.String("addr", cc.RedisAddr))
			return rs
		}
		_ = rs.Close()
		zap.L().Warn("cache: redis unreachable, using memory store", zap.String("addr", cc.RedisAddr), zap.Error(err))
	}
	return cache.NewMemoryStore(cc.MaxEntries, cc.TTL())
}
