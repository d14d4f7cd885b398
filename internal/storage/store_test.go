package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
)

// newTestStore opens a Store against WINDSTATION_TEST_DATABASE_DSN and runs
// migrations. Skipped unless that env var is set — these tests exercise
// actual SQL against a real Postgres instance, not a mock.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("WINDSTATION_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("WINDSTATION_TEST_DATABASE_DSN not set, skipping storage integration test")
	}
	ctx := context.Background()
	store, err := Open(ctx, dsn, 4, 1)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(store.Close)
	return store
}

func TestInsertAndLatestMeasurement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	err := store.InsertMeasurement(ctx, Measurement{
		TS:               now,
		StationID:        "station-a",
		WindSpeedKnots:   13,
		WindDirectionDeg: 70,
	})
	require.NoError(t, err)

	m, err := store.LatestMeasurement(ctx, "station-a")
	require.NoError(t, err)
	require.Equal(t, 13.0, m.WindSpeedKnots)
	require.Equal(t, 70, m.WindDirectionDeg)
}

func TestLatestMeasurement_NoData(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LatestMeasurement(context.Background(), "nonexistent-station")
	require.ErrorIs(t, err, apperr.ErrNoData)
}

func TestUpsertHourlyAggregate_LastWriteWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	hour := time.Now().UTC().Truncate(time.Hour)

	err := store.UpsertHourlyAggregate(ctx, HourlyAggregate{
		HourTS: hour, StationID: "station-a", AvgSpeed: 10, MinSpeed: 8, MaxSpeed: 12,
		AvgDirectionDeg: 90, DominantDirectionDeg: 90, MeasurementCount: 6,
	})
	require.NoError(t, err)

	err = store.UpsertHourlyAggregate(ctx, HourlyAggregate{
		HourTS: hour, StationID: "station-a", AvgSpeed: 14, MinSpeed: 12, MaxSpeed: 16,
		AvgDirectionDeg: 100, DominantDirectionDeg: 100, MeasurementCount: 12,
	})
	require.NoError(t, err)

	rows, err := store.AggregatesSince(ctx, "station-a", hour, hour.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 14.0, rows[0].AvgSpeed)
	require.Equal(t, 12, rows[0].MeasurementCount)
}

func TestCalibrationAppliedOnRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.SetCalibration(fixedOffset(30))

	now := time.Now().UTC().Truncate(time.Second)
	err := store.InsertMeasurement(ctx, Measurement{
		TS: now, StationID: "station-calib", WindSpeedKnots: 10, WindDirectionDeg: 350,
	})
	require.NoError(t, err)

	m, err := store.LatestMeasurement(ctx, "station-calib")
	require.NoError(t, err)
	require.Equal(t, 20, m.WindDirectionDeg)
}

func TestLatestSnapshotBefore_PicksMostRecentPreObservation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	hourTS := time.Now().UTC().Truncate(time.Hour)

	earlier := hourTS.Add(-3 * time.Hour)
	later := hourTS.Add(-1 * time.Hour)
	afterObservation := hourTS.Add(time.Minute)

	require.NoError(t, store.InsertForecastSnapshot(ctx, ForecastSnapshot{
		SnapshotTS: earlier, ModelID: "m1", TargetDate: "2026-07-30", TargetHourLocal: 10, SpeedKnots: 12, DirectionDeg: 80,
	}))
	require.NoError(t, store.InsertForecastSnapshot(ctx, ForecastSnapshot{
		SnapshotTS: later, ModelID: "m1", TargetDate: "2026-07-30", TargetHourLocal: 10, SpeedKnots: 14, DirectionDeg: 85,
	}))
	require.NoError(t, store.InsertForecastSnapshot(ctx, ForecastSnapshot{
		SnapshotTS: afterObservation, ModelID: "m1", TargetDate: "2026-07-30", TargetHourLocal: 10, SpeedKnots: 99, DirectionDeg: 10,
	}))

	snap, err := store.LatestSnapshotBefore(ctx, "m1", "2026-07-30", 10, hourTS)
	require.NoError(t, err)
	require.Equal(t, 14.0, snap.SpeedKnots)
}

type fixedOffset int

func (f fixedOffset) OffsetDeg() int { return int(f) }
