// Package storage is the sole writer of measurements, hourly aggregates,
// forecast snapshots, accuracy rows and model scores, and the sole place
// that applies the calibration offset to an outgoing direction value. It
// talks to a single Postgres instance through a pooled pgx connection — no
// ORM, raw SQL, upsert semantics on the tables that need idempotent writes.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
)

// CalibrationSource supplies the current direction offset; Store consults it
// on every read that returns a direction so callers never see raw headings.
type CalibrationSource interface {
	OffsetDeg() int
}

// Store wraps a pooled Postgres connection. It is constructed once at
// startup and passed by handle to every worker and handler — no
// package-level globals.
type Store struct {
	pool  *pgxpool.Pool
	calib CalibrationSource
}

// Open connects to Postgres, sizing the pool per cfg, and returns a Store.
// It does not run migrations — call Migrate explicitly so callers control
// when schema changes happen.
func Open(ctx context.Context, dsn string, maxConns, minConns int32) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFatal, "parsing database dsn", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	if minConns > 0 {
		poolCfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFatal, "connecting to database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperr.Wrap(apperr.KindStorageFatal, "pinging database", err)
	}
	return &Store{pool: pool}, nil
}

// SetCalibration wires the calibration source in after both components are
// constructed (Calibration Manager itself may read initial state from
// Store-adjacent files, so neither side can strictly construct first).
func (s *Store) SetCalibration(c CalibrationSource) { s.calib = c }

// Close releases the pool. Safe to call once at shutdown.
func (s *Store) Close() { s.pool.Close() }

// Pool exposes the underlying pool for the health check handler only.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) calibratedDirection(raw float64) float64 {
	if s.calib == nil {
		return raw
	}
	d := raw + float64(s.calib.OffsetDeg())
	d = mod360(d)
	return d
}

func mod360(d float64) float64 {
	for d < 0 {
		d += 360
	}
	for d >= 360 {
		d -= 360
	}
	return d
}

// Migrate creates every table this layer owns, idempotently. Safe to run on
// every process start.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS measurements (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			station_id TEXT NOT NULL,
			wind_speed_knots DOUBLE PRECISION NOT NULL,
			wind_gust_knots DOUBLE PRECISION,
			max_gust_knots DOUBLE PRECISION,
			wind_direction_deg INTEGER NOT NULL,
			wind_direction_avg_deg INTEGER,
			temperature DOUBLE PRECISION,
			humidity DOUBLE PRECISION,
			pressure DOUBLE PRECISION
		);
		CREATE INDEX IF NOT EXISTS idx_measurements_station_ts ON measurements(station_id, ts DESC);

		CREATE TABLE IF NOT EXISTS hourly_aggregates (
			hour_ts TIMESTAMPTZ NOT NULL,
			station_id TEXT NOT NULL,
			avg_speed DOUBLE PRECISION NOT NULL,
			min_speed DOUBLE PRECISION NOT NULL,
			max_speed DOUBLE PRECISION NOT NULL,
			avg_gust DOUBLE PRECISION,
			max_gust DOUBLE PRECISION,
			avg_direction_deg DOUBLE PRECISION NOT NULL,
			dominant_direction_deg DOUBLE PRECISION NOT NULL,
			avg_temp DOUBLE PRECISION,
			avg_humidity DOUBLE PRECISION,
			avg_pressure DOUBLE PRECISION,
			measurement_count INTEGER NOT NULL,
			PRIMARY KEY (station_id, hour_ts)
		);
		CREATE INDEX IF NOT EXISTS idx_hourly_aggregates_station_hour ON hourly_aggregates(station_id, hour_ts DESC);

		CREATE TABLE IF NOT EXISTS forecast_snapshots (
			id BIGSERIAL PRIMARY KEY,
			snapshot_ts TIMESTAMPTZ NOT NULL,
			model_id TEXT NOT NULL,
			target_date TEXT NOT NULL,
			target_hour_local INTEGER NOT NULL,
			speed_knots DOUBLE PRECISION NOT NULL,
			gust_knots DOUBLE PRECISION,
			direction_deg DOUBLE PRECISION NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_forecast_snapshots_lookup
			ON forecast_snapshots(model_id, target_date, target_hour_local);

		CREATE TABLE IF NOT EXISTS accuracy_rows (
			model_id TEXT NOT NULL,
			eval_date TEXT NOT NULL,
			target_hour_local INTEGER NOT NULL,
			actual_speed DOUBLE PRECISION NOT NULL,
			actual_direction DOUBLE PRECISION NOT NULL,
			forecast_speed DOUBLE PRECISION NOT NULL,
			forecast_direction DOUBLE PRECISION NOT NULL,
			speed_error DOUBLE PRECISION NOT NULL,
			direction_error DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (model_id, eval_date, target_hour_local)
		);

		CREATE TABLE IF NOT EXISTS model_scores (
			model_id TEXT PRIMARY KEY,
			rmse_speed DOUBLE PRECISION NOT NULL DEFAULT 0,
			mae_speed DOUBLE PRECISION NOT NULL DEFAULT 0,
			rmse_direction DOUBLE PRECISION NOT NULL DEFAULT 0,
			mae_direction DOUBLE PRECISION NOT NULL DEFAULT 0,
			correlation_speed DOUBLE PRECISION NOT NULL DEFAULT 0,
			correction_factor DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			eval_count INTEGER NOT NULL DEFAULT 0,
			composite_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageFatal, "running migrations", err)
	}
	return nil
}

// PruneOlderThan deletes measurements/snapshots/accuracy rows past their
// retention window, and caps aggregates at aggregateRetentionDays — the
// daily-cleanup job the spec's lifecycle section calls for.
func (s *Store) PruneOlderThan(ctx context.Context, measurementDays, aggregateDays, snapshotDays int) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM measurements WHERE ts < now() - ($1 || ' days')::interval`, measurementDays)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageTransient, "pruning measurements", err)
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM hourly_aggregates WHERE hour_ts < now() - ($1 || ' days')::interval`, aggregateDays)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageTransient, "pruning aggregates", err)
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM forecast_snapshots WHERE snapshot_ts < now() - ($1 || ' days')::interval`, snapshotDays)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageTransient, "pruning forecast snapshots", err)
	}
	_, err = s.pool.Exec(ctx, `
		DELETE FROM accuracy_rows a
		WHERE NOT EXISTS (
			SELECT 1 FROM forecast_snapshots f
			WHERE f.model_id = a.model_id AND f.target_date = a.eval_date
		)
	`)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageTransient, "pruning orphaned accuracy rows", err)
	}
	return nil
}

// HealthCheck pings the pool; used by GET /api/health.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}
