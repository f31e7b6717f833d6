package source

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/model"
	"github.com/sells-group/zone-router/internal/zone"
)

// streams maps each zone data source to the sensor kind that feeds it.
var streams = []struct {
	source string
	kind   model.SensorKind
}{
	{zone.SourceAirQuality, model.KindAirQuality},
	{zone.SourceWeather, model.KindWeather},
	{zone.SourceAccidents, model.KindAccident},
	{zone.SourceTraffic, model.KindTraffic},
}

// Snapshot is one fetch cycle across every sensor kind.
type Snapshot struct {
	Records  map[model.SensorKind][]SensorRecord
	Inputs   zone.Inputs
	Warnings []geoerr.Warning
}

// Failed reports how many sources could not be fetched.
func (s *Snapshot) Failed() int {
	return len(s.Inputs.Unavailable)
}

// FetchAll fetches every sensor kind in parallel. A failing kind is marked
// unavailable and reported as a warning; it never cancels the others.
func FetchAll(ctx context.Context, src SensorSource) *Snapshot {
	snap := &Snapshot{
		Records: make(map[model.SensorKind][]SensorRecord, len(streams)),
		Inputs:  zone.Inputs{Unavailable: map[string]bool{}},
	}

	recs := make([][]SensorRecord, len(streams))
	errs := make([]error, len(streams))
	var g errgroup.Group
	for i, st := range streams {
		g.Go(func() error {
			recs[i], errs[i] = src.FetchSensors(ctx, st.kind)
			return nil
		})
	}
	_ = g.Wait()

	for i, st := range streams {
		if errs[i] != nil {
			zap.L().Warn("source: upstream fetch failed, degrading",
				zap.String("source", st.source),
				zap.Error(errs[i]),
			)
			snap.Inputs.Unavailable[st.source] = true
			snap.Warnings = append(snap.Warnings, geoerr.WarningFrom(&geoerr.UpstreamFetchError{Source: st.source, Err: errs[i]}))
			continue
		}
		snap.Records[st.kind] = recs[i]
	}

	var w []geoerr.Warning
	snap.Inputs.AirQuality, w = AirQuality(snap.Records[model.KindAirQuality])
	snap.Warnings = append(snap.Warnings, w...)
	snap.Inputs.Weather, w = Weather(snap.Records[model.KindWeather])
	snap.Warnings = append(snap.Warnings, w...)
	snap.Inputs.Accidents, w = Accidents(snap.Records[model.KindAccident])
	snap.Warnings = append(snap.Warnings, w...)
	snap.Inputs.Traffic, w = Traffic(snap.Records[model.KindTraffic])
	snap.Warnings = append(snap.Warnings, w...)

	return snap
}
