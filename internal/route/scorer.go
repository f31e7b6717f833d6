package route

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/geometry"
	"github.com/sells-group/zone-router/internal/model"
)

// Scorer defaults.
const (
	DefaultDurationCeiling = 2 * time.Hour
	DefaultTopK            = 3
)

// Options tune a Scorer. Zero values select the defaults.
type Options struct {
	DurationCeiling time.Duration
	TopK            int
	Parallelism     int
	RouteRules      []Rule
	ZoneRules       []Rule
}

// Scorer ranks route candidates against zone profiles. It is safe for
// concurrent use.
type Scorer struct {
	profiles map[string]Profile
	opts     Options
}

// NewScorer validates profiles and rules and returns a Scorer. A nil profile
// map selects DefaultProfiles; nil rule slices select the default rules.
func NewScorer(profiles map[string]Profile, opts Options) (*Scorer, error) {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	if opts.DurationCeiling <= 0 {
		opts.DurationCeiling = DefaultDurationCeiling
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	if opts.RouteRules == nil {
		opts.RouteRules = DefaultRouteRules()
	}
	if opts.ZoneRules == nil {
		opts.ZoneRules = DefaultZoneRules()
	}

	var problems []string
	own := make(map[string]Profile, len(profiles))
	for name, p := range profiles {
		p.Name = name
		if err := ValidateProfile(p); err != nil {
			problems = append(problems, err.(*geoerr.ValidationError).Problems...)
		}
		own[name] = p
	}
	for _, r := range append(append([]Rule{}, opts.RouteRules...), opts.ZoneRules...) {
		if err := r.Validate(); err != nil {
			problems = append(problems, err.(*geoerr.ValidationError).Problems...)
		}
	}
	if len(problems) > 0 {
		return nil, geoerr.NewValidationError(problems...)
	}
	return &Scorer{profiles: own, opts: opts}, nil
}

// Profile returns the named profile or a ValidationError.
func (s *Scorer) Profile(name string) (Profile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return Profile{}, geoerr.Validationf("route: unknown profile %q", name)
	}
	return p, nil
}

// Profiles returns every configured profile ordered by name.
func (s *Scorer) Profiles() []Profile {
	return SortedProfiles(s.profiles)
}

// Result is the ranked output of one scoring request.
type Result struct {
	Profile string             `json:"profile"`
	Routes  []model.RouteScore `json:"routes"`
	// Evaluated counts candidates that were scored before the top-K cut.
	Evaluated int              `json:"evaluated"`
	Warnings  []geoerr.Warning `json:"warnings,omitempty"`
}

// Score ranks candidates under the named profile and returns the top-K.
// Candidates with fewer than two points or invalid coordinates are skipped
// with a warning. Ties keep the original candidate order.
func (s *Scorer) Score(candidates []model.RouteCandidate, zones []model.Zone, profileName string) (*Result, error) {
	profile, err := s.Profile(profileName)
	if err != nil {
		return nil, err
	}

	res := &Result{Profile: profile.Name, Routes: []model.RouteScore{}}
	scored := make([]*model.RouteScore, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.opts.Parallelism)
	for i, c := range candidates {
		if reason := invalidCandidate(c); reason != "" {
			res.Warnings = append(res.Warnings, geoerr.Skipped("route", c.ID, reason))
			continue
		}
		g.Go(func() error {
			rs := s.scoreOne(c, zones, profile.Weights)
			scored[i] = &rs
			return nil
		})
	}
	_ = g.Wait()

	ranked := make([]model.RouteScore, 0, len(candidates))
	for _, rs := range scored {
		if rs != nil {
			ranked = append(ranked, *rs)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore < ranked[j].CompositeScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	res.Evaluated = len(ranked)
	if len(ranked) > s.opts.TopK {
		ranked = ranked[:s.opts.TopK]
	}
	res.Routes = ranked

	zap.L().Debug("route: scored candidates",
		zap.String("profile", profile.Name),
		zap.Int("candidates", len(candidates)),
		zap.Int("evaluated", res.Evaluated),
		zap.Int("zones", len(zones)),
	)
	return res, nil
}

func invalidCandidate(c model.RouteCandidate) string {
	if len(c.Polyline) < 2 {
		return "polyline needs at least two points"
	}
	for _, p := range c.Polyline {
		if !p.Valid() {
			return "invalid coordinates in polyline"
		}
	}
	if math.IsNaN(c.DurationSeconds) || math.IsInf(c.DurationSeconds, 0) || c.DurationSeconds < 0 {
		return "invalid duration"
	}
	return ""
}

// scoreOne computes criterion, duration and composite scores for one route.
// Each criterion is the intersection-count-weighted average over the zones
// the polyline crosses.
func (s *Scorer) scoreOne(c model.RouteCandidate, zones []model.Zone, w Weights) model.RouteScore {
	var (
		sum     model.CriterionScores
		total   float64
		touched []model.ZoneProfile
		ids     []string
	)
	for _, z := range zones {
		n := geometry.LineIntersectsPolygon(c.Polyline, z.Polygon.Boundary)
		if n == 0 {
			continue
		}
		weight := float64(n)
		zs := ZoneScores(z.Profile)
		sum.AQI += zs.AQI * weight
		sum.Weather += zs.Weather * weight
		sum.Accident += zs.Accident * weight
		sum.Traffic += zs.Traffic * weight
		total += weight
		touched = append(touched, z.Profile)
		ids = append(ids, z.Polygon.ID)
	}

	scores := model.CriterionScores{
		AQI:      DefaultAQIScore,
		Weather:  DefaultWeatherScore,
		Accident: DefaultAccidentScore,
		Traffic:  DefaultTrafficScore,
	}
	if total > 0 {
		scores = model.CriterionScores{
			AQI:      Clamp(sum.AQI/total, 0, 100),
			Weather:  Clamp(sum.Weather/total, 0, 100),
			Accident: Clamp(sum.Accident/total, 0, 100),
			Traffic:  Clamp(sum.Traffic/total, 0, 100),
		}
	}

	duration := DurationScore(c.DurationSeconds, s.opts.DurationCeiling.Seconds())
	return model.RouteScore{
		CandidateID:     c.ID,
		CriterionScores: scores,
		DurationScore:   duration,
		CompositeScore:  Composite(w, scores, duration),
		Warnings:        evaluate(s.opts.RouteRules, s.opts.ZoneRules, scores, duration, touched),
		TouchedZones:    ids,
	}
}
