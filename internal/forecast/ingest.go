package forecast

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jorikfon/JollyKite-sub000/internal/geo"
	"github.com/jorikfon/JollyKite-sub000/internal/storage"
)

// Store is the subset of storage.Store the worker needs.
type Store interface {
	InsertForecastSnapshot(ctx context.Context, snap storage.ForecastSnapshot) error
}

// ModelClient is the capability the worker needs from a Client, narrowed so
// tests can substitute a fake without an HTTP round trip.
type ModelClient interface {
	ModelID() string
	Fetch(ctx context.Context, latitude, longitude float64, timezone string) ([]HourlyPoint, error)
}

// Worker polls every configured model once per cycle and snapshots its
// 3-day forecast, tolerating partial failure across models the same way the
// ingestion worker tolerates partial station failure.
type Worker struct {
	store    Store
	models   []ModelClient
	location *geo.Location
	log      zerolog.Logger
}

// New builds a forecast ingestion Worker.
func New(store Store, models []ModelClient, location *geo.Location, log zerolog.Logger) *Worker {
	return &Worker{store: store, models: models, location: location, log: log}
}

// Run fetches every model concurrently and writes one snapshot row per
// forecast hour returned. Failure of one model never aborts the others;
// Run returns no error: each failed fetch or snapshot write is logged on
// its own, because spec.md §4.4 treats forecast ingestion as best-effort.
func (w *Worker) Run(ctx context.Context, snapshotTS time.Time) {
	var wg sync.WaitGroup
	for _, m := range w.models {
		wg.Add(1)
		go func(m ModelClient) {
			defer wg.Done()
			w.runModel(ctx, m, snapshotTS)
		}(m)
	}
	wg.Wait()
}

func (w *Worker) runModel(ctx context.Context, m ModelClient, snapshotTS time.Time) {
	points, err := m.Fetch(ctx, w.location.Latitude, w.location.Longitude, w.location.Timezone)
	if err != nil {
		w.log.Warn().Err(err).Str("model_id", m.ModelID()).Msg("forecast fetch failed")
		return
	}

	for _, p := range points {
		snap := storage.ForecastSnapshot{
			SnapshotTS:      snapshotTS,
			ModelID:         m.ModelID(),
			TargetDate:      w.location.LocalDate(p.TS),
			TargetHourLocal: w.location.LocalHour(p.TS),
			SpeedKnots:      p.SpeedKnots,
			DirectionDeg:    p.DirectionDeg,
		}
		if p.GustKnots > 0 {
			g := p.GustKnots
			snap.GustKnots = &g
		}
		if err := w.store.InsertForecastSnapshot(ctx, snap); err != nil {
			w.log.Error().Err(err).Str("model_id", m.ModelID()).Msg("writing forecast snapshot failed")
		}
	}
}
