// Package aggregate is the Aggregation Worker (spec.md §4.3): once per hour
// it collapses the previous whole local hour's raw measurements for every
// configured station into one HourlyAggregate row. Where the teacher's
// AggBuffer accumulated samples in memory between periodic flushes, this
// worker instead re-derives the hour directly from storage on each run,
// which makes a missed or re-run cycle idempotent (UpsertHourlyAggregate is
// last-write-wins) rather than dependent on in-process buffer state.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jorikfon/JollyKite-sub000/internal/circular"
	"github.com/jorikfon/JollyKite-sub000/internal/geo"
	"github.com/jorikfon/JollyKite-sub000/internal/storage"
)

// Store is the subset of storage.Store the worker needs.
type Store interface {
	RawMeasurementsSince(ctx context.Context, stationID string, since, until time.Time) ([]storage.Measurement, error)
	UpsertHourlyAggregate(ctx context.Context, a storage.HourlyAggregate) error
}

// Worker collapses one previous hour at a time for every configured station.
type Worker struct {
	store      Store
	stationIDs []string
	log        zerolog.Logger
}

// New builds a Worker over the given station IDs.
func New(store Store, stationIDs []string, log zerolog.Logger) *Worker {
	return &Worker{store: store, stationIDs: stationIDs, log: log}
}

// Run collapses the whole local hour that ended just before "now" (i.e. the
// previous fully-elapsed hour) for every configured station. A station with
// no measurements in that hour is skipped, not an error.
func (w *Worker) Run(ctx context.Context, now time.Time) error {
	hourEnd := geo.FloorHour(now)
	hourStart := hourEnd.Add(-time.Hour)

	var firstErr error
	for _, stationID := range w.stationIDs {
		if err := w.collapseHour(ctx, stationID, hourStart, hourEnd); err != nil {
			w.log.Error().Err(err).Str("station_id", stationID).Time("hour", hourStart).Msg("aggregation failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (w *Worker) collapseHour(ctx context.Context, stationID string, hourStart, hourEnd time.Time) error {
	rows, err := w.store.RawMeasurementsSince(ctx, stationID, hourStart, hourEnd)
	if err != nil {
		return fmt.Errorf("reading measurements for %s: %w", stationID, err)
	}
	if len(rows) == 0 {
		return nil
	}

	agg := collapse(stationID, hourStart, rows)
	if err := w.store.UpsertHourlyAggregate(ctx, agg); err != nil {
		return fmt.Errorf("writing aggregate for %s: %w", stationID, err)
	}
	return nil
}

// collapse reduces a whole hour's raw rows into one HourlyAggregate. Speed
// fields use arithmetic mean/min/max; both direction fields (average and
// dominant) hold the circular mean of the hour's headings — never the
// arithmetic mean of headings.
func collapse(stationID string, hourStart time.Time, rows []storage.Measurement) storage.HourlyAggregate {
	agg := storage.HourlyAggregate{
		HourTS:           hourStart,
		StationID:        stationID,
		MeasurementCount: len(rows),
	}

	var speedSum, gustSum, tempSum, humiditySum, pressureSum float64
	var gustCount, tempCount, humidityCount, pressureCount int
	directions := make([]float64, 0, len(rows))

	for i, m := range rows {
		speedSum += m.WindSpeedKnots
		if i == 0 || m.WindSpeedKnots < agg.MinSpeed {
			agg.MinSpeed = m.WindSpeedKnots
		}
		if i == 0 || m.WindSpeedKnots > agg.MaxSpeed {
			agg.MaxSpeed = m.WindSpeedKnots
		}
		directions = append(directions, float64(m.WindDirectionDeg))

		if m.WindGustKnots != nil {
			gustSum += *m.WindGustKnots
			gustCount++
		}
		if i == 0 {
			agg.MaxGust = m.MaxGustKnots
		} else if m.MaxGustKnots != nil && (agg.MaxGust == nil || *m.MaxGustKnots > *agg.MaxGust) {
			agg.MaxGust = m.MaxGustKnots
		}
		if m.Temperature != nil {
			tempSum += *m.Temperature
			tempCount++
		}
		if m.Humidity != nil {
			humiditySum += *m.Humidity
			humidityCount++
		}
		if m.Pressure != nil {
			pressureSum += *m.Pressure
			pressureCount++
		}
	}

	n := float64(len(rows))
	agg.AvgSpeed = speedSum / n
	agg.AvgDirectionDeg = circular.Mean(directions)
	agg.DominantDirectionDeg = agg.AvgDirectionDeg

	if gustCount > 0 {
		avg := gustSum / float64(gustCount)
		agg.AvgGust = &avg
	}
	if tempCount > 0 {
		avg := tempSum / float64(tempCount)
		agg.AvgTemp = &avg
	}
	if humidityCount > 0 {
		avg := humiditySum / float64(humidityCount)
		agg.AvgHumidity = &avg
	}
	if pressureCount > 0 {
		avg := pressureSum / float64(pressureCount)
		agg.AvgPressure = &avg
	}
	return agg
}
