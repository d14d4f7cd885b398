package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/circular"
	"github.com/jorikfon/JollyKite-sub000/internal/geo"
)

// UpsertHourlyAggregate writes one collapsed hour, last-write-wins on
// re-archiving — re-running the aggregation worker for an hour it already
// processed is always safe.
func (s *Store) UpsertHourlyAggregate(ctx context.Context, a HourlyAggregate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hourly_aggregates
			(hour_ts, station_id, avg_speed, min_speed, max_speed, avg_gust, max_gust,
			 avg_direction_deg, dominant_direction_deg, avg_temp, avg_humidity, avg_pressure, measurement_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (station_id, hour_ts) DO UPDATE SET
			avg_speed = EXCLUDED.avg_speed,
			min_speed = EXCLUDED.min_speed,
			max_speed = EXCLUDED.max_speed,
			avg_gust = EXCLUDED.avg_gust,
			max_gust = EXCLUDED.max_gust,
			avg_direction_deg = EXCLUDED.avg_direction_deg,
			dominant_direction_deg = EXCLUDED.dominant_direction_deg,
			avg_temp = EXCLUDED.avg_temp,
			avg_humidity = EXCLUDED.avg_humidity,
			avg_pressure = EXCLUDED.avg_pressure,
			measurement_count = EXCLUDED.measurement_count
	`, a.HourTS, a.StationID, a.AvgSpeed, a.MinSpeed, a.MaxSpeed, a.AvgGust, a.MaxGust,
		a.AvgDirectionDeg, a.DominantDirectionDeg, a.AvgTemp, a.AvgHumidity, a.AvgPressure, a.MeasurementCount)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageTransient, "upserting hourly aggregate", err)
	}
	return nil
}

const aggregateColumns = `hour_ts, station_id, avg_speed, min_speed, max_speed, avg_gust, max_gust,
	avg_direction_deg, dominant_direction_deg, avg_temp, avg_humidity, avg_pressure, measurement_count`

func scanAggregate(row pgx.Row) (HourlyAggregate, error) {
	var a HourlyAggregate
	err := row.Scan(&a.HourTS, &a.StationID, &a.AvgSpeed, &a.MinSpeed, &a.MaxSpeed, &a.AvgGust, &a.MaxGust,
		&a.AvgDirectionDeg, &a.DominantDirectionDeg, &a.AvgTemp, &a.AvgHumidity, &a.AvgPressure, &a.MeasurementCount)
	return a, err
}

func (s *Store) applyCalibrationToAggregate(a *HourlyAggregate) {
	a.AvgDirectionDeg = s.calibratedDirection(a.AvgDirectionDeg)
	a.DominantDirectionDeg = s.calibratedDirection(a.DominantDirectionDeg)
}

// AggregatesSince returns a station's aggregates at or after since, oldest
// first — used by both the archive endpoints and the scoring worker.
func (s *Store) AggregatesSince(ctx context.Context, stationID string, since, until time.Time) ([]HourlyAggregate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+aggregateColumns+` FROM hourly_aggregates
		WHERE station_id = $1 AND hour_ts >= $2 AND hour_ts < $3
		ORDER BY hour_ts ASC
	`, stationID, since, until)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageTransient, "reading aggregates", err)
	}
	defer rows.Close()

	var out []HourlyAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorageTransient, "scanning aggregate", err)
		}
		s.applyCalibrationToAggregate(&a)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AggregatesLastNDays returns a station's aggregates from the last N*24
// hours before now (a rolling window, not whole calendar days), newest first.
func (s *Store) AggregatesLastNDays(ctx context.Context, stationID string, days int) ([]HourlyAggregate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+aggregateColumns+` FROM hourly_aggregates
		WHERE station_id = $1 AND hour_ts >= now() - ($2 || ' days')::interval
		ORDER BY hour_ts DESC
	`, stationID, days)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageTransient, "reading recent aggregates", err)
	}
	defer rows.Close()

	var out []HourlyAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorageTransient, "scanning aggregate", err)
		}
		s.applyCalibrationToAggregate(&a)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AggregatesForLocalDate returns a station's aggregates for one local
// calendar date.
func (s *Store) AggregatesForLocalDate(ctx context.Context, stationID string, loc *geo.Location, localDate string) ([]HourlyAggregate, error) {
	day, err := time.ParseInLocation("2006-01-02", localDate, loc.Zone())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "parsing local date", err)
	}
	return s.AggregatesSince(ctx, stationID, day, day.Add(24*time.Hour))
}

// DailyPatternRollup averages every local hour-of-day over the last `days`
// local days, yielding one PatternRow per hour that has data — the read
// model backing GET /archive/patterns.
func (s *Store) DailyPatternRollup(ctx context.Context, stationID string, loc *geo.Location, days int) ([]PatternRow, error) {
	aggs, err := s.AggregatesLastNDays(ctx, stationID, days)
	if err != nil {
		return nil, err
	}

	type acc struct {
		speedSum   float64
		count      int
		directions []float64
		gustSum    float64
		gustCount  int
	}
	byHour := map[int]*acc{}
	var order []int
	for _, a := range aggs {
		h := loc.LocalHour(a.HourTS)
		bucket, ok := byHour[h]
		if !ok {
			bucket = &acc{}
			byHour[h] = bucket
			order = append(order, h)
		}
		bucket.speedSum += a.AvgSpeed
		bucket.count++
		bucket.directions = append(bucket.directions, a.DominantDirectionDeg)
		if a.AvgGust != nil {
			bucket.gustSum += *a.AvgGust
			bucket.gustCount++
		}
	}

	out := make([]PatternRow, 0, len(order))
	for _, h := range order {
		b := byHour[h]
		row := PatternRow{
			LocalHour:         h,
			AvgSpeed:          b.speedSum / float64(b.count),
			DominantDirection: circular.Mean(b.directions),
		}
		if b.gustCount > 0 {
			g := b.gustSum / float64(b.gustCount)
			row.AvgGust = &g
		}
		out = append(out, row)
	}
	return out, nil
}
