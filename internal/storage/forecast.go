package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
)

// InsertForecastSnapshot appends one snapshot row. No deduplication at write
// time — duplicates for the same (model, target_date, target_hour_local) are
// expected and resolved at scoring time by picking the latest pre-observation
// one.
func (s *Store) InsertForecastSnapshot(ctx context.Context, snap ForecastSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO forecast_snapshots
			(snapshot_ts, model_id, target_date, target_hour_local, speed_knots, gust_knots, direction_deg)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, snap.SnapshotTS, snap.ModelID, snap.TargetDate, snap.TargetHourLocal, snap.SpeedKnots, snap.GustKnots, snap.DirectionDeg)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageTransient, "inserting forecast snapshot", err)
	}
	return nil
}

// LatestSnapshotBefore returns the latest snapshot for (model, targetDate,
// targetHourLocal) whose snapshot_ts is strictly before cutoff, or
// apperr.ErrNoData if none qualifies — the core lookup the scoring worker
// performs once per aggregate.
func (s *Store) LatestSnapshotBefore(ctx context.Context, modelID, targetDate string, targetHourLocal int, cutoff time.Time) (ForecastSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, snapshot_ts, model_id, target_date, target_hour_local, speed_knots, gust_knots, direction_deg
		FROM forecast_snapshots
		WHERE model_id = $1 AND target_date = $2 AND target_hour_local = $3 AND snapshot_ts < $4
		ORDER BY snapshot_ts DESC LIMIT 1
	`, modelID, targetDate, targetHourLocal, cutoff)

	var snap ForecastSnapshot
	err := row.Scan(&snap.ID, &snap.SnapshotTS, &snap.ModelID, &snap.TargetDate, &snap.TargetHourLocal,
		&snap.SpeedKnots, &snap.GustKnots, &snap.DirectionDeg)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ForecastSnapshot{}, apperr.ErrNoData
		}
		return ForecastSnapshot{}, apperr.Wrap(apperr.KindStorageTransient, "reading latest snapshot", err)
	}
	return snap, nil
}

// LatestSnapshotForModel returns a model's single most recent snapshot for
// targetDate/targetHourLocal, applied with the correction factor at read
// time by the caller — used by GET /wind/forecast.
func (s *Store) LatestSnapshotForModel(ctx context.Context, modelID, targetDate string, targetHourLocal int) (ForecastSnapshot, error) {
	return s.LatestSnapshotBefore(ctx, modelID, targetDate, targetHourLocal, time.Now().Add(time.Second))
}

// SnapshotsForModelDate returns, for each target hour of a date, the latest
// snapshot a model produced, ordered by hour — used to render a full-day
// forecast timeline.
func (s *Store) SnapshotsForModelDate(ctx context.Context, modelID, targetDate string) ([]ForecastSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (target_hour_local)
			id, snapshot_ts, model_id, target_date, target_hour_local, speed_knots, gust_knots, direction_deg
		FROM forecast_snapshots
		WHERE model_id = $1 AND target_date = $2
		ORDER BY target_hour_local, snapshot_ts DESC
	`, modelID, targetDate)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageTransient, "reading snapshots for date", err)
	}
	defer rows.Close()

	var out []ForecastSnapshot
	for rows.Next() {
		var snap ForecastSnapshot
		if err := rows.Scan(&snap.ID, &snap.SnapshotTS, &snap.ModelID, &snap.TargetDate, &snap.TargetHourLocal,
			&snap.SpeedKnots, &snap.GustKnots, &snap.DirectionDeg); err != nil {
			return nil, apperr.Wrap(apperr.KindStorageTransient, "scanning snapshot", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// UpsertAccuracyRow writes one scored hour, idempotent on
// (model_id, eval_date, target_hour_local).
func (s *Store) UpsertAccuracyRow(ctx context.Context, r AccuracyRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accuracy_rows
			(model_id, eval_date, target_hour_local, actual_speed, actual_direction,
			 forecast_speed, forecast_direction, speed_error, direction_error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (model_id, eval_date, target_hour_local) DO UPDATE SET
			actual_speed = EXCLUDED.actual_speed,
			actual_direction = EXCLUDED.actual_direction,
			forecast_speed = EXCLUDED.forecast_speed,
			forecast_direction = EXCLUDED.forecast_direction,
			speed_error = EXCLUDED.speed_error,
			direction_error = EXCLUDED.direction_error
	`, r.ModelID, r.EvalDate, r.TargetHourLocal, r.ActualSpeed, r.ActualDirection,
		r.ForecastSpeed, r.ForecastDirection, r.SpeedError, r.DirectionError)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageTransient, "upserting accuracy row", err)
	}
	return nil
}

// AccuracyRowsForModel returns every accuracy row recorded for a model,
// newest eval_date first — the input to the scoring worker's rollup pass.
func (s *Store) AccuracyRowsForModel(ctx context.Context, modelID string) ([]AccuracyRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT model_id, eval_date, target_hour_local, actual_speed, actual_direction,
		       forecast_speed, forecast_direction, speed_error, direction_error
		FROM accuracy_rows
		WHERE model_id = $1
		ORDER BY eval_date DESC, target_hour_local DESC
	`, modelID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageTransient, "reading accuracy rows", err)
	}
	defer rows.Close()

	var out []AccuracyRow
	for rows.Next() {
		var r AccuracyRow
		if err := rows.Scan(&r.ModelID, &r.EvalDate, &r.TargetHourLocal, &r.ActualSpeed, &r.ActualDirection,
			&r.ForecastSpeed, &r.ForecastDirection, &r.SpeedError, &r.DirectionError); err != nil {
			return nil, apperr.Wrap(apperr.KindStorageTransient, "scanning accuracy row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertModelScore writes a model's recomputed rollup. Called inside the
// scoring worker's single transaction across all models.
func (s *Store) UpsertModelScore(ctx context.Context, tx pgx.Tx, sc ModelScore) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO model_scores
			(model_id, rmse_speed, mae_speed, rmse_direction, mae_direction,
			 correlation_speed, correction_factor, eval_count, composite_score, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
		ON CONFLICT (model_id) DO UPDATE SET
			rmse_speed = EXCLUDED.rmse_speed,
			mae_speed = EXCLUDED.mae_speed,
			rmse_direction = EXCLUDED.rmse_direction,
			mae_direction = EXCLUDED.mae_direction,
			correlation_speed = EXCLUDED.correlation_speed,
			correction_factor = EXCLUDED.correction_factor,
			eval_count = EXCLUDED.eval_count,
			composite_score = EXCLUDED.composite_score,
			last_updated = now()
	`, sc.ModelID, sc.RMSESpeed, sc.MAESpeed, sc.RMSEDirection, sc.MAEDirection,
		sc.CorrelationSpeed, sc.CorrectionFactor, sc.EvalCount, sc.CompositeScore)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageTransient, "upserting model score", err)
	}
	return nil
}

// BeginScoringTx starts the transaction the scoring worker recomputes every
// model's rollup inside; on any error the caller rolls back.
func (s *Store) BeginScoringTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageTransient, "beginning scoring transaction", err)
	}
	return tx, nil
}

// ModelScoreByID returns one model's current rollup.
func (s *Store) ModelScoreByID(ctx context.Context, modelID string) (ModelScore, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT model_id, rmse_speed, mae_speed, rmse_direction, mae_direction,
		       correlation_speed, correction_factor, eval_count, composite_score, last_updated
		FROM model_scores WHERE model_id = $1
	`, modelID)
	var sc ModelScore
	err := row.Scan(&sc.ModelID, &sc.RMSESpeed, &sc.MAESpeed, &sc.RMSEDirection, &sc.MAEDirection,
		&sc.CorrelationSpeed, &sc.CorrectionFactor, &sc.EvalCount, &sc.CompositeScore, &sc.LastUpdated)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ModelScore{}, apperr.ErrNoData
		}
		return ModelScore{}, apperr.Wrap(apperr.KindStorageTransient, "reading model score", err)
	}
	return sc, nil
}

// AllModelScores returns every model's rollup, used by GET
// /wind/forecast/models and /wind/forecast/compare.
func (s *Store) AllModelScores(ctx context.Context) ([]ModelScore, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT model_id, rmse_speed, mae_speed, rmse_direction, mae_direction,
		       correlation_speed, correction_factor, eval_count, composite_score, last_updated
		FROM model_scores
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageTransient, "reading model scores", err)
	}
	defer rows.Close()

	var out []ModelScore
	for rows.Next() {
		var sc ModelScore
		if err := rows.Scan(&sc.ModelID, &sc.RMSESpeed, &sc.MAESpeed, &sc.RMSEDirection, &sc.MAEDirection,
			&sc.CorrelationSpeed, &sc.CorrectionFactor, &sc.EvalCount, &sc.CompositeScore, &sc.LastUpdated); err != nil {
			return nil, apperr.Wrap(apperr.KindStorageTransient, "scanning model score", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
