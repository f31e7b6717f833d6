package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/zone-router/internal/cluster"
	"github.com/sells-group/zone-router/internal/engine"
	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/geometry"
	geo "github.com/sells-group/zone-router/internal/geojson"
	"github.com/sells-group/zone-router/internal/heatmap"
)

const defaultMetric = "aqi"

// collection is a GeoJSON FeatureCollection with a foreign metadata member.
type collection struct {
	Type     string             `json:"type"`
	Features []*geojson.Feature `json:"features"`
	Metadata any                `json:"metadata"`
}

type zonesMetadata struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	BBox            geometry.BBox    `json:"bbox"`
	ZoneCount       int              `json:"zone_count"`
	FallbackSources []string         `json:"fallback_sources"`
	Warnings        []geoerr.Warning `json:"warnings"`
}

type clustersMetadata struct {
	Metric    string           `json:"metric"`
	K         int              `json:"k"`
	Discarded int              `json:"discarded"`
	Warnings  []geoerr.Warning `json:"warnings"`
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) profiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"profiles": s.eng.Profiles()})
}

func (s *server) zones(w http.ResponseWriter, r *http.Request) {
	zs, err := s.eng.Zones(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	fc, err := geo.ZoneFeatures(zs.Zones)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collection{
		Type:     "FeatureCollection",
		Features: fc.Features,
		Metadata: zonesMetadata{
			GeneratedAt:     zs.GeneratedAt,
			BBox:            zs.BBox,
			ZoneCount:       len(zs.Zones),
			FallbackSources: nonNil(zs.FallbackSources),
			Warnings:        nonNil(zs.Warnings),
		},
	})
}

func (s *server) scoreRoutes(w http.ResponseWriter, r *http.Request) {
	var req engine.ScoreRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, geoerr.Validationf("invalid request body: %v", err))
		return
	}
	resp, err := s.eng.ScoreRoutes(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) heatmap(w http.ResponseWriter, r *http.Request) {
	q := queryParser{values: r.URL.Query()}
	p := heatmap.Params{
		SpacingMeters: q.floatParam("spacing"),
		Power:         q.floatParam("power"),
		RadiusMeters:  q.floatParam("radius"),
	}
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.eng.Heatmap(r.Context(), q.metric(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) clusters(w http.ResponseWriter, r *http.Request) {
	q := queryParser{values: r.URL.Query()}
	p := cluster.Params{
		K:          q.intParam("k"),
		MinMembers: q.intParam("min_members"),
	}
	if err := q.err(); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.eng.Clusters(r.Context(), q.metric(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fc, err := geo.ClusterFeatures(res.Clusters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collection{
		Type:     "FeatureCollection",
		Features: fc.Features,
		Metadata: clustersMetadata{
			Metric:    res.Metric,
			K:         res.K,
			Discarded: res.Discarded,
			Warnings:  nonNil(res.Warnings),
		},
	})
}

func (s *server) clearCache(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	n, err := s.eng.ClearCache(r.Context(), prefix)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": n, "prefix": prefix})
}

func (s *server) cacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.eng.CacheStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// queryParser reads optional numeric query parameters, collecting every
// malformed value. Absent parameters parse as zero.
type queryParser struct {
	values   map[string][]string
	problems []string
}

func (q *queryParser) get(name string) string {
	if v := q.values[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (q *queryParser) metric() string {
	if m := q.get("metric"); m != "" {
		return m
	}
	return defaultMetric
}

func (q *queryParser) floatParam(name string) float64 {
	raw := q.get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.problems = append(q.problems, name+" must be a number, got "+strconv.Quote(raw))
	}
	return v
}

func (q *queryParser) intParam(name string) int {
	raw := q.get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.problems = append(q.problems, name+" must be an integer, got "+strconv.Quote(raw))
	}
	return v
}

func (q *queryParser) err() error {
	if len(q.problems) > 0 {
		return geoerr.NewValidationError(q.problems...)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
