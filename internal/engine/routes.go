package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/zone-router/internal/geoerr"
	geo "github.com/sells-group/zone-router/internal/geojson"
	"github.com/sells-group/zone-router/internal/model"
)

// ScoreRequest asks for routes to be ranked. Either Candidates or both
// Origin and Destination must be given.
type ScoreRequest struct {
	Profile     string                 `json:"profile"`
	Origin      *model.LatLng          `json:"origin,omitempty"`
	Destination *model.LatLng          `json:"destination,omitempty"`
	Candidates  []model.RouteCandidate `json:"candidates,omitempty"`
}

// ScoredRoute is one ranked route with its geometry.
type ScoredRoute struct {
	model.RouteScore
	DistanceMeters  float64          `json:"distance_meters"`
	DurationSeconds float64          `json:"duration_seconds"`
	Feature         *geojson.Feature `json:"feature"`
}

// ScoreResponse is the ranked top-K for a request.
type ScoreResponse struct {
	Profile     string           `json:"profile"`
	Routes      []ScoredRoute    `json:"routes"`
	Evaluated   int              `json:"evaluated"`
	Warnings    []geoerr.Warning `json:"warnings,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// ScoreRoutes ranks the candidates of req against the current zones.
// Candidates are fetched from the routing engine when not supplied.
func (s *Service) ScoreRoutes(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	if req.Profile == "" {
		req.Profile = s.opts.DefaultProfile
	}
	if _, err := s.scorer.Profile(req.Profile); err != nil {
		return nil, err
	}

	candidates, err := s.candidates(ctx, req)
	if err != nil {
		return nil, err
	}

	zs, err := s.Zones(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.scorer.Score(candidates, zs.Zones, req.Profile)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveCompute("score", start)
	s.metrics.RoutesScoredAdd(res.Evaluated)

	byID := make(map[string]model.RouteCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	out := &ScoreResponse{
		Profile:     res.Profile,
		Routes:      make([]ScoredRoute, 0, len(res.Routes)),
		Evaluated:   res.Evaluated,
		Warnings:    append(append([]geoerr.Warning{}, zs.Warnings...), res.Warnings...),
		GeneratedAt: s.opts.Now().UTC(),
	}
	for _, rs := range res.Routes {
		c := byID[rs.CandidateID]
		f, err := geo.RouteFeature(c, rs)
		if err != nil {
			out.Warnings = append(out.Warnings, geoerr.Skipped("route", rs.CandidateID, err.Error()))
		}
		out.Routes = append(out.Routes, ScoredRoute{
			RouteScore:      rs,
			DistanceMeters:  c.DistanceMeters,
			DurationSeconds: c.DurationSeconds,
			Feature:         f,
		})
	}
	return out, nil
}

func (s *Service) candidates(ctx context.Context, req ScoreRequest) ([]model.RouteCandidate, error) {
	candidates := req.Candidates
	if len(candidates) == 0 {
		if req.Origin == nil || req.Destination == nil {
			return nil, geoerr.NewValidationError("either candidates or origin and destination are required")
		}
		if s.routes == nil {
			return nil, geoerr.NewValidationError("no routing engine configured; supply candidates")
		}
		found, err := s.routes.Routes(ctx, *req.Origin, *req.Destination)
		if err != nil {
			if geoerr.IsValidation(err) {
				return nil, err
			}
			return nil, &geoerr.UpstreamFetchError{Source: "routing", Err: err}
		}
		candidates = found
	}

	out := make([]model.RouteCandidate, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for i, c := range candidates {
		if c.ID == "" || seen[c.ID] {
			c.ID = uuid.NewString()
		}
		seen[c.ID] = true
		out[i] = c
	}
	return out, nil
}
