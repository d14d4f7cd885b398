package scoring

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/geo"
	"github.com/jorikfon/JollyKite-sub000/internal/storage"
)

type fakeTx struct {
	committed bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { if !t.committed { t.rolledBack = true }; return nil }

type fakeStore struct {
	aggregates map[string][]storage.HourlyAggregate
	snapshots  map[string]storage.ForecastSnapshot
	accuracyRows map[string][]storage.AccuracyRow
	upsertedRows []storage.AccuracyRow
	tx         *fakeTx
}

func snapKey(modelID, date string, hour int) string {
	return modelID + "|" + date + "|" + strconv.Itoa(hour)
}

func (f *fakeStore) AggregatesForLocalDate(ctx context.Context, stationID string, loc *geo.Location, localDate string) ([]storage.HourlyAggregate, error) {
	return f.aggregates[localDate], nil
}

func (f *fakeStore) LatestSnapshotBefore(ctx context.Context, modelID, targetDate string, targetHourLocal int, cutoff time.Time) (storage.ForecastSnapshot, error) {
	snap, ok := f.snapshots[snapKey(modelID, targetDate, targetHourLocal)]
	if !ok {
		return storage.ForecastSnapshot{}, apperr.ErrNoData
	}
	return snap, nil
}

func (f *fakeStore) UpsertAccuracyRow(ctx context.Context, r storage.AccuracyRow) error {
	f.upsertedRows = append(f.upsertedRows, r)
	return nil
}

func (f *fakeStore) AccuracyRowsForModel(ctx context.Context, modelID string) ([]storage.AccuracyRow, error) {
	return f.accuracyRows[modelID], nil
}

func (f *fakeStore) BeginScoringTx(ctx context.Context) (Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

func testLocation() *geo.Location {
	loc := &geo.Location{Name: "test", Timezone: "UTC"}
	_ = loc.Resolve()
	return loc
}

func TestRun_ScoresAggregateAgainstLatestPreObservationSnapshot(t *testing.T) {
	now := time.Date(2026, 7, 30, 20, 0, 0, 0, time.UTC)
	localDate := "2026-07-30"
	hourTS := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{
		aggregates: map[string][]storage.HourlyAggregate{
			localDate: {{HourTS: hourTS, StationID: "station-a", AvgSpeed: 16, AvgDirectionDeg: 90}},
		},
		snapshots: map[string]storage.ForecastSnapshot{
			snapKey("model-a", localDate, 10): {SpeedKnots: 14, DirectionDeg: 95},
		},
		accuracyRows: map[string][]storage.AccuracyRow{},
	}

	var writtenScores []storage.ModelScore
	writeScore := func(ctx context.Context, tx Tx, sc storage.ModelScore) error {
		writtenScores = append(writtenScores, sc)
		return nil
	}

	cfg := Config{EvalDays: 1, AccuracyHourMin: 6, AccuracyHourMax: 19, MinEvalCount: 10, DefaultModelID: "model-a"}
	w := New(store, writeScore, "station-a", []string{"model-a"}, testLocation(), cfg, zerolog.Nop())

	require.NoError(t, w.Run(context.Background(), now))

	require.Len(t, store.upsertedRows, 1)
	row := store.upsertedRows[0]
	assert.Equal(t, 2.0, row.SpeedError)
	assert.Equal(t, 5.0, row.DirectionError)
	assert.True(t, store.tx.committed)
}

func TestRun_AggregateWithoutSnapshotIsSkipped(t *testing.T) {
	localDate := "2026-07-30"
	store := &fakeStore{
		aggregates: map[string][]storage.HourlyAggregate{
			localDate: {{HourTS: time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC), AvgSpeed: 16}},
		},
		snapshots:    map[string]storage.ForecastSnapshot{},
		accuracyRows: map[string][]storage.AccuracyRow{},
	}
	writeScore := func(ctx context.Context, tx Tx, sc storage.ModelScore) error { return nil }
	cfg := Config{EvalDays: 1, AccuracyHourMin: 6, AccuracyHourMax: 19, MinEvalCount: 10, DefaultModelID: "model-a"}
	w := New(store, writeScore, "station-a", []string{"model-a"}, testLocation(), cfg, zerolog.Nop())

	require.NoError(t, w.Run(context.Background(), time.Now().UTC()))
	assert.Empty(t, store.upsertedRows)
}

func TestRun_HourOutsideAccuracyWindowIsSkipped(t *testing.T) {
	localDate := "2026-07-30"
	store := &fakeStore{
		aggregates: map[string][]storage.HourlyAggregate{
			localDate: {{HourTS: time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC), AvgSpeed: 16}},
		},
		snapshots:    map[string]storage.ForecastSnapshot{snapKey("model-a", localDate, 3): {SpeedKnots: 14}},
		accuracyRows: map[string][]storage.AccuracyRow{},
	}
	writeScore := func(ctx context.Context, tx Tx, sc storage.ModelScore) error { return nil }
	cfg := Config{EvalDays: 1, AccuracyHourMin: 6, AccuracyHourMax: 19, MinEvalCount: 10, DefaultModelID: "model-a"}
	w := New(store, writeScore, "station-a", []string{"model-a"}, testLocation(), cfg, zerolog.Nop())

	require.NoError(t, w.Run(context.Background(), time.Now().UTC()))
	assert.Empty(t, store.upsertedRows)
}

func buildRows(n int, speedErr, dirErr float64) []storage.AccuracyRow {
	rows := make([]storage.AccuracyRow, n)
	for i := range rows {
		rows[i] = storage.AccuracyRow{
			ActualSpeed: 15, ForecastSpeed: 15 - speedErr,
			SpeedError: speedErr, DirectionError: dirErr,
		}
	}
	return rows
}

func TestRecomputeRollups_ComputesRMSEMAEAndCorrectionFactor(t *testing.T) {
	store := &fakeStore{
		aggregates: map[string][]storage.HourlyAggregate{},
		snapshots:  map[string]storage.ForecastSnapshot{},
		accuracyRows: map[string][]storage.AccuracyRow{
			"model-a": buildRows(10, 2, 5),
		},
	}
	var written []storage.ModelScore
	writeScore := func(ctx context.Context, tx Tx, sc storage.ModelScore) error {
		written = append(written, sc)
		return nil
	}
	cfg := Config{EvalDays: 0, AccuracyHourMin: 6, AccuracyHourMax: 19, MinEvalCount: 10, DefaultModelID: "model-a"}
	w := New(store, writeScore, "station-a", []string{"model-a"}, testLocation(), cfg, zerolog.Nop())

	require.NoError(t, w.Run(context.Background(), time.Now().UTC()))
	require.Len(t, written, 1)
	assert.InDelta(t, 2, written[0].RMSESpeed, 0.001)
	assert.InDelta(t, 2, written[0].MAESpeed, 0.001)
	assert.Equal(t, 10, written[0].EvalCount)
	assert.InDelta(t, 15.0/13.0, written[0].CorrectionFactor, 0.001)
}

func TestBestModel_PicksLowestScoreAboveThreshold(t *testing.T) {
	scores := []storage.ModelScore{
		{ModelID: "model-a", CompositeScore: 0.2, EvalCount: 15},
		{ModelID: "model-b", CompositeScore: 0.1, EvalCount: 3},
		{ModelID: "model-c", CompositeScore: 0.4, EvalCount: 20},
	}
	assert.Equal(t, "model-a", BestModel(scores, 10, "fallback"))
}

func TestBestModel_FallsBackWhenNoModelMeetsThreshold(t *testing.T) {
	scores := []storage.ModelScore{{ModelID: "model-a", CompositeScore: 0.1, EvalCount: 2}}
	assert.Equal(t, "fallback", BestModel(scores, 10, "fallback"))
}
