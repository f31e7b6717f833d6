// Package source adapts the external collaborators that feed the engine:
// the sensor context broker (over HTTP or from Postgres) and the routing
// engine.
package source

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zone-router/internal/model"
)

// SensorRecord is one sensor as reported upstream: an id, a location and a
// free-form bag of metric fields. Numeric fields land in Metrics, string
// fields in Attrs.
type SensorRecord struct {
	ID         string             `json:"id"`
	Kind       model.SensorKind   `json:"type,omitempty"`
	Location   model.LatLng       `json:"location"`
	ObservedAt time.Time          `json:"observedAt,omitzero"`
	Metrics    map[string]float64 `json:"-"`
	Attrs      map[string]string  `json:"-"`
}

// Metric returns a numeric field, trying each alias in turn.
func (r SensorRecord) Metric(names ...string) (float64, bool) {
	for _, n := range names {
		if v, ok := r.Metrics[n]; ok {
			return v, true
		}
	}
	return 0, false
}

// UnmarshalJSON splits the known envelope fields from the metric fields.
func (r *SensorRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "source: decode sensor record")
	}

	*r = SensorRecord{}
	for key, val := range raw {
		var err error
		switch key {
		case "id":
			err = json.Unmarshal(val, &r.ID)
		case "type", "kind":
			err = json.Unmarshal(val, &r.Kind)
		case "location":
			err = json.Unmarshal(val, &r.Location)
		case "observedAt", "observed_at":
			err = json.Unmarshal(val, &r.ObservedAt)
		default:
			r.addField(key, val)
		}
		if err != nil {
			return eris.Wrapf(err, "source: decode sensor field %q", key)
		}
	}
	if r.ID == "" {
		return eris.New("source: sensor record without id")
	}
	return nil
}

// addField keeps scalar fields and ignores nested values.
func (r *SensorRecord) addField(key string, val json.RawMessage) {
	var num float64
	if err := json.Unmarshal(val, &num); err == nil {
		if r.Metrics == nil {
			r.Metrics = make(map[string]float64)
		}
		r.Metrics[key] = num
		return
	}
	var s string
	if err := json.Unmarshal(val, &s); err == nil {
		if r.Attrs == nil {
			r.Attrs = make(map[string]string)
		}
		r.Attrs[key] = s
	}
}

// MarshalJSON flattens Metrics and Attrs back next to the envelope fields.
func (r SensorRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Metrics)+len(r.Attrs)+4)
	for k, v := range r.Metrics {
		out[k] = v
	}
	for k, v := range r.Attrs {
		out[k] = v
	}
	out["id"] = r.ID
	out["location"] = r.Location
	if r.Kind != "" {
		out["type"] = r.Kind
	}
	if !r.ObservedAt.IsZero() {
		out["observedAt"] = r.ObservedAt
	}
	return json.Marshal(out)
}
