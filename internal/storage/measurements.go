package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/circular"
	"github.com/jorikfon/JollyKite-sub000/internal/geo"
)

// InsertMeasurement appends one raw row. ts is the upstream's reported
// observation time, never the insert time.
func (s *Store) InsertMeasurement(ctx context.Context, m Measurement) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO measurements
			(ts, station_id, wind_speed_knots, wind_gust_knots, max_gust_knots,
			 wind_direction_deg, wind_direction_avg_deg, temperature, humidity, pressure)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, m.TS, m.StationID, m.WindSpeedKnots, m.WindGustKnots, m.MaxGustKnots,
		m.WindDirectionDeg, m.WindDirectionAvgDeg, m.Temperature, m.Humidity, m.Pressure)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageTransient, "inserting measurement", err)
	}
	return nil
}

func scanMeasurement(row pgx.Row) (Measurement, error) {
	var m Measurement
	err := row.Scan(&m.ID, &m.TS, &m.StationID, &m.WindSpeedKnots, &m.WindGustKnots, &m.MaxGustKnots,
		&m.WindDirectionDeg, &m.WindDirectionAvgDeg, &m.Temperature, &m.Humidity, &m.Pressure)
	return m, err
}

const measurementColumns = `id, ts, station_id, wind_speed_knots, wind_gust_knots, max_gust_knots,
	wind_direction_deg, wind_direction_avg_deg, temperature, humidity, pressure`

func (s *Store) applyCalibrationToDirection(m *Measurement) {
	m.WindDirectionDeg = int(s.calibratedDirection(float64(m.WindDirectionDeg)))
	if m.WindDirectionAvgDeg != nil {
		v := int(s.calibratedDirection(float64(*m.WindDirectionAvgDeg)))
		m.WindDirectionAvgDeg = &v
	}
}

// LatestMeasurement returns the most recent row for a station, or
// apperr.ErrNoData if there is none.
func (s *Store) LatestMeasurement(ctx context.Context, stationID string) (Measurement, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+measurementColumns+` FROM measurements
		WHERE station_id = $1 ORDER BY ts DESC LIMIT 1
	`, stationID)
	m, err := scanMeasurement(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Measurement{}, apperr.ErrNoData
		}
		return Measurement{}, apperr.Wrap(apperr.KindStorageTransient, "reading latest measurement", err)
	}
	s.applyCalibrationToDirection(&m)
	return m, nil
}

// RecentMeasurements returns the N most recent rows for a station, newest
// first — the shape both the trend derivations and the stability predicate
// consume directly.
func (s *Store) RecentMeasurements(ctx context.Context, stationID string, n int) ([]Measurement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+measurementColumns+` FROM measurements
		WHERE station_id = $1 ORDER BY ts DESC LIMIT $2
	`, stationID, n)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageTransient, "reading recent measurements", err)
	}
	defer rows.Close()

	var out []Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorageTransient, "scanning measurement", err)
		}
		s.applyCalibrationToDirection(&m)
		out = append(out, m)
	}
	return out, rows.Err()
}

// rawMeasurementsSince is the shared query behind MeasurementsSince and
// RawMeasurementsSince: rows as stored, no calibration offset applied.
func (s *Store) rawMeasurementsSince(ctx context.Context, stationID string, since, until time.Time) ([]Measurement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+measurementColumns+` FROM measurements
		WHERE station_id = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC
	`, stationID, since, until)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageTransient, "reading measurement range", err)
	}
	defer rows.Close()

	var out []Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorageTransient, "scanning measurement", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MeasurementsSince returns all rows for a station at or after since,
// chronological ascending, with the calibration offset applied — the
// public read used by gradient bucketing and activity-window queries.
func (s *Store) MeasurementsSince(ctx context.Context, stationID string, since, until time.Time) ([]Measurement, error) {
	out, err := s.rawMeasurementsSince(ctx, stationID, since, until)
	if err != nil {
		return nil, err
	}
	for i := range out {
		s.applyCalibrationToDirection(&out[i])
	}
	return out, nil
}

// RawMeasurementsSince returns all rows for a station at or after since,
// chronological ascending, with directions exactly as stored — used by the
// aggregation worker, which must collapse raw directions so the calibration
// offset is applied exactly once when the resulting aggregate is later read
// (spec.md §4.1: "raw stored, applied once on read").
func (s *Store) RawMeasurementsSince(ctx context.Context, stationID string, since, until time.Time) ([]Measurement, error) {
	return s.rawMeasurementsSince(ctx, stationID, since, until)
}

// HistoryHours returns every row for a station in the last N hours,
// chronological descending (newest first) per spec.md's GET /wind/history.
func (s *Store) HistoryHours(ctx context.Context, stationID string, hours int) ([]Measurement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+measurementColumns+` FROM measurements
		WHERE station_id = $1 AND ts >= now() - ($2 || ' hours')::interval
		ORDER BY ts DESC
	`, stationID, hours)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageTransient, "reading history", err)
	}
	defer rows.Close()

	var out []Measurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStorageTransient, "scanning measurement", err)
		}
		s.applyCalibrationToDirection(&m)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ActivityWindowMeasurements returns every row for localDate (in loc's zone)
// whose local hour falls in [h0, h1] — the building block for both weekly
// history grouping and gradient bucketing.
func (s *Store) ActivityWindowMeasurements(ctx context.Context, stationID string, loc *geo.Location, localDate string, h0, h1 int) ([]Measurement, error) {
	day, err := time.ParseInLocation("2006-01-02", localDate, loc.Zone())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, "parsing local date", err)
	}
	since := day.Add(time.Duration(h0) * time.Hour)
	until := day.Add(time.Duration(h1+1) * time.Hour)
	return s.MeasurementsSince(ctx, stationID, since, until)
}

// BucketRow is one k-minute bucket of today's readings.
type BucketRow struct {
	BucketStart  time.Time `json:"bucketStart"`
	AvgSpeed     float64   `json:"avgSpeed"`
	AvgGust      *float64  `json:"avgGust,omitempty"`
	AvgDirection float64   `json:"avgDirection"`
	Count        int       `json:"count"`
}

// TodayGradient buckets a station's measurements for "today" (loc's local
// calendar date) into fixed-size minute buckets aligned on the local clock,
// limited to [startHour, endHour).
func (s *Store) TodayGradient(ctx context.Context, stationID string, loc *geo.Location, startHour, endHour, intervalMinutes int) ([]BucketRow, error) {
	now := loc.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc.Zone())
	since := dayStart.Add(time.Duration(startHour) * time.Hour)
	until := dayStart.Add(time.Duration(endHour) * time.Hour)

	rows, err := s.MeasurementsSince(ctx, stationID, since, until)
	if err != nil {
		return nil, err
	}

	buckets := map[int64]*bucketAccumulator{}
	interval := time.Duration(intervalMinutes) * time.Minute
	var order []int64
	for _, m := range rows {
		localTS := m.TS.In(loc.Zone())
		offset := localTS.Sub(since)
		bucketIdx := int64(offset / interval)
		bucketStart := since.Add(time.Duration(bucketIdx) * interval)
		key := bucketStart.Unix()
		acc, ok := buckets[key]
		if !ok {
			acc = &bucketAccumulator{start: bucketStart}
			buckets[key] = acc
			order = append(order, key)
		}
		acc.add(m)
	}

	out := make([]BucketRow, 0, len(order))
	for _, key := range order {
		out = append(out, buckets[key].row())
	}
	return out, nil
}

type bucketAccumulator struct {
	start      time.Time
	speedSum   float64
	gustSum    float64
	gustCount  int
	directions []float64
	count      int
}

func (a *bucketAccumulator) add(m Measurement) {
	a.speedSum += m.WindSpeedKnots
	if m.WindGustKnots != nil {
		a.gustSum += *m.WindGustKnots
		a.gustCount++
	}
	a.directions = append(a.directions, float64(m.WindDirectionDeg))
	a.count++
}

func (a *bucketAccumulator) row() BucketRow {
	r := BucketRow{BucketStart: a.start, Count: a.count}
	if a.count > 0 {
		r.AvgSpeed = a.speedSum / float64(a.count)
		r.AvgDirection = circular.Mean(a.directions)
	}
	if a.gustCount > 0 {
		avg := a.gustSum / float64(a.gustCount)
		r.AvgGust = &avg
	}
	return r
}
