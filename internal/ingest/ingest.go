// Package ingest is the Ingestion Worker: fans out one concurrent fetch per
// configured station, tolerates partial failure, and hands the primary
// station's reading on to the stream fan-out and notification engine. The
// fan-out-then-join shape is grounded on the teacher's GetHistory handler,
// which runs its two queries concurrently behind a sync.WaitGroup; this
// scales the same pattern to N station fetches with a per-request deadline.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jorikfon/JollyKite-sub000/internal/stations"
	"github.com/jorikfon/JollyKite-sub000/internal/storage"
)

// DefaultFetchTimeout matches spec.md §4.2's ~15s per-request deadline.
const DefaultFetchTimeout = 15 * time.Second

// Store is the subset of storage.Store the worker needs.
type Store interface {
	InsertMeasurement(ctx context.Context, m storage.Measurement) error
}

// OnPrimarySuccess is invoked once per successful cycle with the primary
// station's reading, letting the worker stay decoupled from the stream and
// notification components that consume it (narrow capability interfaces
// composed by the caller, per the Design Notes' cyclic-reference fix).
type OnPrimarySuccess func(ctx context.Context, stationID string, reading stations.Reading)

// Worker fans out fetches to every configured station on each Run call.
type Worker struct {
	store        Store
	drivers      []stations.Driver
	primaryID    string
	fetchTimeout time.Duration
	onPrimary    OnPrimarySuccess
	log          zerolog.Logger
}

// New builds a Worker. primaryStationID selects which driver's reading is
// handed to onPrimary after a successful cycle; it may be empty if no
// station is marked primary, in which case onPrimary is never called.
func New(store Store, drivers []stations.Driver, primaryStationID string, onPrimary OnPrimarySuccess, log zerolog.Logger) *Worker {
	return &Worker{
		store:        store,
		drivers:      drivers,
		primaryID:    primaryStationID,
		fetchTimeout: DefaultFetchTimeout,
		onPrimary:    onPrimary,
		log:          log,
	}
}

type fetchResult struct {
	stationID string
	reading   stations.Reading
	err       error
}

// Run executes one ingestion cycle: fetch every station concurrently, write
// every successful reading, and report the primary station's reading if it
// succeeded. Returns an error only when every station failed.
func (w *Worker) Run(ctx context.Context) error {
	results := make([]fetchResult, len(w.drivers))
	var wg sync.WaitGroup

	for i, d := range w.drivers {
		wg.Add(1)
		go func(i int, d stations.Driver) {
			defer wg.Done()
			reqCtx, cancel := context.WithTimeout(ctx, w.fetchTimeout)
			defer cancel()
			reading, err := d.Fetch(reqCtx)
			results[i] = fetchResult{stationID: d.StationID(), reading: reading, err: err}
		}(i, d)
	}
	wg.Wait()

	var successCount int
	var primaryReading *stations.Reading
	var primaryStationID string

	for _, res := range results {
		if res.err != nil {
			w.log.Warn().Err(res.err).Str("station_id", res.stationID).Msg("station fetch failed")
			continue
		}

		m := storage.Measurement{
			TS:                  res.reading.TS,
			StationID:           res.stationID,
			WindSpeedKnots:      res.reading.WindSpeedKnots,
			WindGustKnots:       res.reading.WindGustKnots,
			MaxGustKnots:        res.reading.MaxGustKnots,
			WindDirectionDeg:    res.reading.WindDirectionDeg,
			WindDirectionAvgDeg: res.reading.WindDirectionAvgDeg,
			Temperature:         res.reading.Temperature,
			Humidity:            res.reading.Humidity,
			Pressure:            res.reading.Pressure,
		}
		if err := w.store.InsertMeasurement(ctx, m); err != nil {
			w.log.Error().Err(err).Str("station_id", res.stationID).Msg("writing measurement failed")
			continue
		}

		successCount++
		if res.stationID == w.primaryID {
			reading := res.reading
			primaryReading = &reading
			primaryStationID = res.stationID
		}
	}

	if successCount == 0 {
		return fmt.Errorf("ingestion cycle failed: all %d stations failed", len(w.drivers))
	}

	if primaryReading != nil && w.onPrimary != nil {
		w.onPrimary(ctx, primaryStationID, *primaryReading)
	}
	return nil
}
