package route

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/model"
)

// Comparator is an enumerated threshold comparison.
type Comparator string

// Supported comparators.
const (
	OpGT  Comparator = "gt"
	OpGTE Comparator = "gte"
	OpLT  Comparator = "lt"
	OpLTE Comparator = "lte"
)

// ParseComparator accepts either the canonical name or its symbol.
func ParseComparator(s string) (Comparator, error) {
	switch strings.TrimSpace(s) {
	case "gt", ">":
		return OpGT, nil
	case "gte", ">=":
		return OpGTE, nil
	case "lt", "<":
		return OpLT, nil
	case "lte", "<=":
		return OpLTE, nil
	default:
		return "", geoerr.Validationf("route: unknown comparator %q", s)
	}
}

// UnmarshalYAML lets rule files use either "gt" or ">".
func (c *Comparator) UnmarshalYAML(node *yaml.Node) error {
	op, err := ParseComparator(node.Value)
	if err != nil {
		return err
	}
	*c = op
	return nil
}

// Compare applies the comparator to v and threshold.
func (c Comparator) Compare(v, threshold float64) bool {
	switch c {
	case OpGT:
		return v > threshold
	case OpGTE:
		return v >= threshold
	case OpLT:
		return v < threshold
	case OpLTE:
		return v <= threshold
	default:
		return false
	}
}

// Criterion names the value a rule inspects.
type Criterion string

// Route-level criteria operate on normalized scores; zone-level criteria on
// the raw profile of each touched zone.
const (
	CriterionDuration Criterion = "duration"
	CriterionAQI      Criterion = "aqi"
	CriterionWeather  Criterion = "weather"
	CriterionAccident Criterion = "accident"
	CriterionTraffic  Criterion = "traffic"

	CriterionZoneAQI       Criterion = "zone_aqi"
	CriterionZoneAccidents Criterion = "zone_accidents"
)

// IsZone reports whether the criterion applies to individual zones.
func (c Criterion) IsZone() bool {
	return c == CriterionZoneAQI || c == CriterionZoneAccidents
}

func (c Criterion) known() bool {
	switch c {
	case CriterionDuration, CriterionAQI, CriterionWeather, CriterionAccident, CriterionTraffic,
		CriterionZoneAQI, CriterionZoneAccidents:
		return true
	}
	return false
}

// Rule is a warning emitted when Criterion compares true against Threshold.
// Message may reference {value} and, for zone rules, {zone}.
type Rule struct {
	Criterion Criterion  `yaml:"criterion" json:"criterion"`
	Op        Comparator `yaml:"op" json:"op"`
	Threshold float64    `yaml:"threshold" json:"threshold"`
	Message   string     `yaml:"message" json:"message"`
}

// Validate rejects rules with unknown criteria or comparators.
func (r Rule) Validate() error {
	var errs []string
	if !r.Criterion.known() {
		errs = append(errs, fmt.Sprintf("rule: unknown criterion %q", r.Criterion))
	}
	switch r.Op {
	case OpGT, OpGTE, OpLT, OpLTE:
	default:
		errs = append(errs, fmt.Sprintf("rule %s: unknown comparator %q", r.Criterion, r.Op))
	}
	if r.Message == "" {
		errs = append(errs, fmt.Sprintf("rule %s: message is required", r.Criterion))
	}
	if len(errs) > 0 {
		return geoerr.NewValidationError(errs...)
	}
	return nil
}

func (r Rule) render(value float64, zoneID string) string {
	return strings.NewReplacer(
		"{value}", strconv.FormatFloat(value, 'f', -1, 64),
		"{zone}", zoneID,
	).Replace(r.Message)
}

// DefaultRouteRules are the route-level warning thresholds.
func DefaultRouteRules() []Rule {
	return []Rule{
		{Criterion: CriterionAQI, Op: OpGT, Threshold: 70, Message: "High air pollution exposure along this route"},
		{Criterion: CriterionWeather, Op: OpGT, Threshold: 60, Message: "Adverse weather conditions along this route"},
		{Criterion: CriterionAccident, Op: OpGT, Threshold: 50, Message: "Elevated accident risk along this route"},
		{Criterion: CriterionTraffic, Op: OpGT, Threshold: 70, Message: "Heavy traffic congestion along this route"},
	}
}

// DefaultZoneRules are the per-zone warning thresholds.
func DefaultZoneRules() []Rule {
	return []Rule{
		{Criterion: CriterionZoneAQI, Op: OpGT, Threshold: 150, Message: "Route passes through {zone} with unhealthy air (AQI {value})"},
		{Criterion: CriterionZoneAccidents, Op: OpGTE, Threshold: 3, Message: "Route passes through {zone} with {value} recent accidents"},
	}
}

// routeValue returns the route-level value a criterion refers to.
func routeValue(c Criterion, s model.CriterionScores, duration float64) (float64, bool) {
	switch c {
	case CriterionDuration:
		return duration, true
	case CriterionAQI:
		return s.AQI, true
	case CriterionWeather:
		return s.Weather, true
	case CriterionAccident:
		return s.Accident, true
	case CriterionTraffic:
		return s.Traffic, true
	default:
		return 0, false
	}
}

// zoneValue returns the raw zone attribute a criterion refers to.
func zoneValue(c Criterion, p model.ZoneProfile) (float64, bool) {
	switch c {
	case CriterionZoneAQI:
		return p.AQI, true
	case CriterionZoneAccidents:
		return float64(p.AccidentCount), true
	default:
		return 0, false
	}
}

// evaluate returns the rendered messages of every rule that fires for a
// route and the zones it touches, deduplicated in first-seen order.
func evaluate(routeRules, zoneRules []Rule, scores model.CriterionScores, duration float64, touched []model.ZoneProfile) []string {
	seen := make(map[string]bool)
	out := []string{}
	add := func(msg string) {
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}
	}

	for _, r := range routeRules {
		v, ok := routeValue(r.Criterion, scores, duration)
		if ok && r.Op.Compare(v, r.Threshold) {
			add(r.render(v, ""))
		}
	}
	for _, z := range touched {
		for _, r := range zoneRules {
			v, ok := zoneValue(r.Criterion, z)
			if ok && r.Op.Compare(v, r.Threshold) {
				add(r.render(v, z.ZoneID))
			}
		}
	}
	return out
}
