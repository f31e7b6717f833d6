// Package api exposes the engine over HTTP. Zones and clusters are served as
// GeoJSON feature collections; everything else is plain JSON.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/zone-router/internal/cache"
	"github.com/sells-group/zone-router/internal/cluster"
	"github.com/sells-group/zone-router/internal/engine"
	"github.com/sells-group/zone-router/internal/heatmap"
	"github.com/sells-group/zone-router/internal/metrics"
	"github.com/sells-group/zone-router/internal/route"
)

// Engine is the computation surface the handlers depend on.
type Engine interface {
	Zones(ctx context.Context) (*engine.ZoneSet, error)
	ScoreRoutes(ctx context.Context, req engine.ScoreRequest) (*engine.ScoreResponse, error)
	Heatmap(ctx context.Context, metric string, p heatmap.Params) (*engine.HeatmapResult, error)
	Clusters(ctx context.Context, metric string, p cluster.Params) (*cluster.Result, error)
	Profiles() []route.Profile
	ClearCache(ctx context.Context, prefix string) (int, error)
	CacheStats(ctx context.Context) (cache.Stats, error)
}

// Options configures the router.
type Options struct {
	CORSOrigins []string
	// MaxBodyBytes caps request bodies. Zero uses 1 MiB.
	MaxBodyBytes int64
	Metrics      *metrics.Collector
}

type server struct {
	eng  Engine
	opts Options
}

// NewRouter returns the HTTP handler for eng.
func NewRouter(eng Engine, opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	s := &server{eng: eng, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	r.Get("/profiles", s.profiles)
	r.Get("/zones", s.zones)
	r.Post("/routes/score", s.scoreRoutes)
	r.Get("/heatmap", s.heatmap)
	r.Get("/clusters", s.clusters)
	r.Route("/cache", func(r chi.Router) {
		r.Post("/clear", s.clearCache)
		r.Get("/stats", s.cacheStats)
	})
	return r
}

// observe logs each request and records it in the HTTP metrics under its
// route pattern.
func (s *server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		pattern := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			pattern = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		s.opts.Metrics.ObserveHTTP(pattern, r.Method, status, elapsed)

		log := zap.L().Debug
		if status >= http.StatusInternalServerError {
			log = zap.L().Warn
		}
		log("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", pattern),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
