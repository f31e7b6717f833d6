// Package route scores alternative route candidates against aggregated zone
// profiles and ranks them under a named preference profile.
package route

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zone-router/internal/geoerr"
)

// Built-in preference profile names.
const (
	ProfileFastest    = "fastest"
	ProfileHealthiest = "healthiest"
	ProfileSafest     = "safest"
)

// weightTolerance is the allowed deviation of a weight vector sum from 1.
const weightTolerance = 1e-6

// Weights is a weight vector over the five scoring dimensions.
type Weights struct {
	Duration float64 `yaml:"duration" json:"duration"`
	AQI      float64 `yaml:"aqi" json:"aqi"`
	Weather  float64 `yaml:"weather" json:"weather"`
	Accident float64 `yaml:"accident" json:"accident"`
	Traffic  float64 `yaml:"traffic" json:"traffic"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Duration + w.AQI + w.Weather + w.Accident + w.Traffic
}

// Profile is a named weight vector.
type Profile struct {
	Name        string  `yaml:"-" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Weights     Weights `yaml:"weights" json:"weights"`
}

// DefaultProfiles returns the built-in preference profiles.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		ProfileFastest: {
			Name:        ProfileFastest,
			Description: "Shortest travel time",
			Weights:     Weights{Duration: 0.6, AQI: 0.1, Weather: 0.1, Accident: 0.1, Traffic: 0.1},
		},
		ProfileHealthiest: {
			Name:        ProfileHealthiest,
			Description: "Lowest pollution exposure",
			Weights:     Weights{Duration: 0.2, AQI: 0.5, Weather: 0.1, Accident: 0.1, Traffic: 0.1},
		},
		ProfileSafest: {
			Name:        ProfileSafest,
			Description: "Fewest accidents and hazards",
			Weights:     Weights{Duration: 0.2, AQI: 0.1, Weather: 0.2, Accident: 0.4, Traffic: 0.1},
		},
	}
}

// ValidateProfile checks that every weight is non-negative and that the
// vector sums to 1.
func ValidateProfile(p Profile) error {
	var errs []string

	weights := []struct {
		name string
		v    float64
	}{
		{"duration", p.Weights.Duration},
		{"aqi", p.Weights.AQI},
		{"weather", p.Weights.Weather},
		{"accident", p.Weights.Accident},
		{"traffic", p.Weights.Traffic},
	}
	for _, w := range weights {
		if w.v < 0 || math.IsNaN(w.v) {
			errs = append(errs, fmt.Sprintf("profile %s: %s weight must be >= 0", p.Name, w.name))
		}
	}

	if sum := p.Weights.Sum(); math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Sprintf("profile %s: weights must sum to 1.0, got %.4f", p.Name, sum))
	}

	if len(errs) > 0 {
		return geoerr.NewValidationError(errs...)
	}
	return nil
}

// File is the on-disk layout of a profiles file.
type File struct {
	Profiles   map[string]Profile `yaml:"profiles"`
	RouteRules []Rule             `yaml:"route_rules,omitempty"`
	ZoneRules  []Rule             `yaml:"zone_rules,omitempty"`
}

// LoadProfiles reads preference profiles, and optionally warning rules, from
// a YAML file. Every profile is validated before it is returned.
func LoadProfiles(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "route: read profiles %s", path)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "route: parse profiles")
	}
	if len(f.Profiles) == 0 {
		return nil, geoerr.Validationf("route: %s defines no profiles", path)
	}

	for name, p := range f.Profiles {
		p.Name = name
		if err := ValidateProfile(p); err != nil {
			return nil, err
		}
		f.Profiles[name] = p
	}
	for _, r := range append(append([]Rule{}, f.RouteRules...), f.ZoneRules...) {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// SortedProfiles returns profiles ordered by name.
func SortedProfiles(profiles map[string]Profile) []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
