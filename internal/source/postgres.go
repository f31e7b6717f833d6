package source

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zone-router/internal/model"
	"github.com/sells-group/zone-router/internal/resilience"
)

// Querier is the subset of pgxpool.Pool used by PostgresSensorStore.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSensorStore reads the latest sensor records from a table
// maintained by the context broker's persistence layer.
type PostgresSensorStore struct {
	db     Querier
	table  string
	policy *resilience.Policy
}

// NewPostgresSensorStore creates a store over db. table defaults to
// sensors.latest_readings.
func NewPostgresSensorStore(db Querier, table string, policy *resilience.Policy) *PostgresSensorStore {
	if table == "" {
		table = "sensors.latest_readings"
	}
	if policy == nil {
		policy = resilience.NewPolicy("sensors", resilience.PolicyConfig{}, nil)
	}
	return &PostgresSensorStore{db: db, table: table, policy: policy}
}

// FetchSensors implements SensorSource.
func (s *PostgresSensorStore) FetchSensors(ctx context.Context, kind model.SensorKind) ([]SensorRecord, error) {
	sql := `SELECT sensor_id, lat, lng, attributes, observed_at FROM ` +
		pgx.Identifier(strings.SplitN(s.table, ".", 2)).Sanitize() +
		` WHERE kind = $1 ORDER BY sensor_id`

	return resilience.Call(ctx, s.policy, func(ctx context.Context) ([]SensorRecord, error) {
		rows, err := s.db.Query(ctx, sql, string(kind))
		if err != nil {
			return nil, eris.Wrapf(err, "source: query %s sensors", kind)
		}
		defer rows.Close()

		var recs []SensorRecord
		for rows.Next() {
			var (
				r          SensorRecord
				attrs      []byte
				observedAt *time.Time
			)
			if err := rows.Scan(&r.ID, &r.Location.Lat, &r.Location.Lng, &attrs, &observedAt); err != nil {
				return nil, eris.Wrap(err, "source: scan sensor row")
			}
			r.Kind = kind
			if observedAt != nil {
				r.ObservedAt = *observedAt
			}
			if len(attrs) > 0 {
				var fields map[string]json.RawMessage
				if err := json.Unmarshal(attrs, &fields); err != nil {
					return nil, eris.Wrapf(err, "source: decode attributes of sensor %s", r.ID)
				}
				for k, v := range fields {
					r.addField(k, v)
				}
			}
			recs = append(recs, r)
		}
		if err := rows.Err(); err != nil {
			return nil, eris.Wrap(err, "source: iterate sensor rows")
		}
		return recs, nil
	})
}
