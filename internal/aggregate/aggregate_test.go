package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorikfon/JollyKite-sub000/internal/storage"
)

type fakeStore struct {
	byStation map[string][]storage.Measurement
	written   []storage.HourlyAggregate
}

func (f *fakeStore) RawMeasurementsSince(ctx context.Context, stationID string, since, until time.Time) ([]storage.Measurement, error) {
	var out []storage.Measurement
	for _, m := range f.byStation[stationID] {
		if !m.TS.Before(since) && m.TS.Before(until) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertHourlyAggregate(ctx context.Context, a storage.HourlyAggregate) error {
	f.written = append(f.written, a)
	return nil
}

func gust(v float64) *float64 { return &v }

func TestRun_CollapsesPreviousHourPerStation(t *testing.T) {
	hourStart := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{byStation: map[string][]storage.Measurement{
		"station-a": {
			{TS: hourStart.Add(5 * time.Minute), WindSpeedKnots: 10, WindDirectionDeg: 80, WindGustKnots: gust(14)},
			{TS: hourStart.Add(35 * time.Minute), WindSpeedKnots: 14, WindDirectionDeg: 100, WindGustKnots: gust(18)},
		},
	}}

	w := New(store, []string{"station-a"}, zerolog.Nop())
	err := w.Run(context.Background(), hourStart.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, store.written, 1)
	agg := store.written[0]
	assert.Equal(t, "station-a", agg.StationID)
	assert.Equal(t, 2, agg.MeasurementCount)
	assert.InDelta(t, 12, agg.AvgSpeed, 0.001)
	assert.Equal(t, 10.0, agg.MinSpeed)
	assert.Equal(t, 14.0, agg.MaxSpeed)
	assert.InDelta(t, 90, agg.AvgDirectionDeg, 1)
	require.NotNil(t, agg.AvgGust)
	assert.InDelta(t, 16, *agg.AvgGust, 0.001)
}

func TestRun_StationWithNoMeasurementsIsSkipped(t *testing.T) {
	hourStart := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{byStation: map[string][]storage.Measurement{}}

	w := New(store, []string{"station-a"}, zerolog.Nop())
	err := w.Run(context.Background(), hourStart.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, store.written)
}

func TestRun_MultipleStationsEachCollapsedIndependently(t *testing.T) {
	hourStart := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{byStation: map[string][]storage.Measurement{
		"station-a": {{TS: hourStart.Add(time.Minute), WindSpeedKnots: 8, WindDirectionDeg: 10}},
		"station-b": {{TS: hourStart.Add(time.Minute), WindSpeedKnots: 20, WindDirectionDeg: 200}},
	}}

	w := New(store, []string{"station-a", "station-b"}, zerolog.Nop())
	err := w.Run(context.Background(), hourStart.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, store.written, 2)
}

func TestRun_MeasurementsOutsideHourAreExcluded(t *testing.T) {
	hourStart := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{byStation: map[string][]storage.Measurement{
		"station-a": {
			{TS: hourStart.Add(-time.Minute), WindSpeedKnots: 99, WindDirectionDeg: 0},
			{TS: hourStart.Add(30 * time.Minute), WindSpeedKnots: 10, WindDirectionDeg: 90},
			{TS: hourStart.Add(time.Hour), WindSpeedKnots: 99, WindDirectionDeg: 0},
		},
	}}

	w := New(store, []string{"station-a"}, zerolog.Nop())
	require.NoError(t, w.Run(context.Background(), hourStart.Add(time.Hour)))
	require.Len(t, store.written, 1)
	assert.Equal(t, 1, store.written[0].MeasurementCount)
	assert.Equal(t, 10.0, store.written[0].AvgSpeed)
}
