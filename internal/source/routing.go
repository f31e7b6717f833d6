package source

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/model"
)

// RouteFinder supplies alternative routes between two points.
type RouteFinder interface {
	Routes(ctx context.Context, from, to model.LatLng) ([]model.RouteCandidate, error)
}

// RoutingClient queries an OSRM-compatible routing engine.
type RoutingClient struct {
	opts    HTTPOptions
	profile string
	newID   func() string
}

// NewRoutingClient creates a routing client. profile defaults to "driving".
func NewRoutingClient(opts HTTPOptions, profile string) (*RoutingClient, error) {
	if opts.BaseURL == "" {
		return nil, eris.New("source: routing base_url is required")
	}
	if profile == "" {
		profile = "driving"
	}
	opts.defaults("routing")
	return &RoutingClient{opts: opts, profile: profile, newID: uuid.NewString}, nil
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Geometry struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// Routes implements RouteFinder. A "NoRoute" answer yields no candidates.
func (c *RoutingClient) Routes(ctx context.Context, from, to model.LatLng) ([]model.RouteCandidate, error) {
	if !from.Valid() || !to.Valid() {
		return nil, geoerr.NewValidationError("origin and destination must be valid coordinates")
	}

	u := fmt.Sprintf("%s/route/v1/%s/%s?%s", c.opts.BaseURL, url.PathEscape(c.profile),
		fmt.Sprintf("%f,%f;%f,%f", from.Lng, from.Lat, to.Lng, to.Lat),
		url.Values{
			"alternatives": {"true"},
			"geometries":   {"geojson"},
			"overview":     {"full"},
		}.Encode())

	resp, err := getJSON[osrmResponse](ctx, &c.opts, u)
	if err != nil {
		return nil, err
	}
	switch resp.Code {
	case "Ok", "":
	case "NoRoute":
		return []model.RouteCandidate{}, nil
	default:
		return nil, eris.Errorf("source: routing engine returned %s: %s", resp.Code, resp.Message)
	}

	out := make([]model.RouteCandidate, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		poly := make([]model.LatLng, 0, len(r.Geometry.Coordinates))
		for _, pt := range r.Geometry.Coordinates {
			if len(pt) < 2 {
				continue
			}
			poly = append(poly, model.LatLng{Lat: pt[1], Lng: pt[0]})
		}
		out = append(out, model.RouteCandidate{
			ID:              c.newID(),
			Polyline:        poly,
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
		})
	}
	return out, nil
}
