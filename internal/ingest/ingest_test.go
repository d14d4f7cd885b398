package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorikfon/JollyKite-sub000/internal/stations"
	"github.com/jorikfon/JollyKite-sub000/internal/storage"
)

// fakeDriver is a test double satisfying stations.Driver without any HTTP.
type fakeDriver struct {
	id    string
	delay time.Duration
	err   error
}

func (f *fakeDriver) StationID() string { return f.id }

func (f *fakeDriver) Fetch(ctx context.Context) (stations.Reading, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return stations.Reading{}, ctx.Err()
		}
	}
	if f.err != nil {
		return stations.Reading{}, f.err
	}
	return stations.Reading{TS: time.Now().UTC(), WindSpeedKnots: 12, WindDirectionDeg: 90}, nil
}

// recordingStore is a test double satisfying the Store interface.
type recordingStore struct {
	mu       sync.Mutex
	inserted []storage.Measurement
}

func (s *recordingStore) InsertMeasurement(ctx context.Context, m storage.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, m)
	return nil
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

func TestRun_AllStationsSucceed(t *testing.T) {
	store := &recordingStore{}
	drivers := []stations.Driver{
		&fakeDriver{id: "station-a"},
		&fakeDriver{id: "station-b"},
	}

	var gotStationID string
	var gotReading stations.Reading
	w := New(store, drivers, "station-a", func(ctx context.Context, stationID string, reading stations.Reading) {
		gotStationID = stationID
		gotReading = reading
	}, zerolog.Nop())

	err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.count())
	assert.Equal(t, "station-a", gotStationID)
	assert.Equal(t, 12.0, gotReading.WindSpeedKnots)
}

func TestRun_PartialFailureToleratedCycleSucceeds(t *testing.T) {
	store := &recordingStore{}
	drivers := []stations.Driver{
		&fakeDriver{id: "station-a", err: fmt.Errorf("upstream unavailable")},
		&fakeDriver{id: "station-b"},
	}

	var calledPrimary bool
	w := New(store, drivers, "station-a", func(ctx context.Context, stationID string, reading stations.Reading) {
		calledPrimary = true
	}, zerolog.Nop())

	err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.count())
	assert.False(t, calledPrimary, "primary station failed, so onPrimary must not fire")
}

func TestRun_AllStationsFailReturnsError(t *testing.T) {
	store := &recordingStore{}
	drivers := []stations.Driver{
		&fakeDriver{id: "station-a", err: fmt.Errorf("down")},
		&fakeDriver{id: "station-b", err: fmt.Errorf("down")},
	}

	w := New(store, drivers, "station-a", nil, zerolog.Nop())
	err := w.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, store.count())
}

func TestRun_FetchesRunConcurrently(t *testing.T) {
	store := &recordingStore{}
	drivers := []stations.Driver{
		&fakeDriver{id: "station-a", delay: 50 * time.Millisecond},
		&fakeDriver{id: "station-b", delay: 50 * time.Millisecond},
		&fakeDriver{id: "station-c", delay: 50 * time.Millisecond},
	}

	w := New(store, drivers, "", nil, zerolog.Nop())
	start := time.Now()
	err := w.Run(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 150*time.Millisecond, "fetches should run in parallel, not sequentially")
}

func TestRun_NoPrimaryConfiguredNeverInvokesCallback(t *testing.T) {
	store := &recordingStore{}
	drivers := []stations.Driver{&fakeDriver{id: "station-a"}}

	called := false
	w := New(store, drivers, "", func(ctx context.Context, stationID string, reading stations.Reading) {
		called = true
	}, zerolog.Nop())

	err := w.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, called)
}
