// Package scoring is the Forecast Scoring Worker (spec.md §4.5): for each
// model it turns the last N local days' accuracy-eligible HourlyAggregates
// into per-hour AccuracyRows against the latest pre-observation snapshot,
// then recomputes every model's rollup score in one transaction.
package scoring

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/circular"
	"github.com/jorikfon/JollyKite-sub000/internal/geo"
	"github.com/jorikfon/JollyKite-sub000/internal/storage"
)

// Config carries the worker's configurable knobs, mirroring
// config.ScoringConfig so this package stays independent of internal/config.
type Config struct {
	EvalDays        int
	AccuracyHourMin int
	AccuracyHourMax int
	MinEvalCount    int
	DefaultModelID  string
}

// Store is the subset of storage.Store the worker needs.
type Store interface {
	AggregatesForLocalDate(ctx context.Context, stationID string, loc *geo.Location, localDate string) ([]storage.HourlyAggregate, error)
	LatestSnapshotBefore(ctx context.Context, modelID, targetDate string, targetHourLocal int, cutoff time.Time) (storage.ForecastSnapshot, error)
	UpsertAccuracyRow(ctx context.Context, r storage.AccuracyRow) error
	AccuracyRowsForModel(ctx context.Context, modelID string) ([]storage.AccuracyRow, error)
	BeginScoringTx(ctx context.Context) (Tx, error)
}

// Tx is the narrow transaction capability the rollup pass needs.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ScoreWriter upserts one model's rollup inside an open Tx. storage.Store's
// UpsertModelScore takes a concrete pgx.Tx, so main wires this as a closure
// over the real *storage.Store and pgx.Tx rather than this package
// depending on pgx directly.
type ScoreWriter func(ctx context.Context, tx Tx, sc storage.ModelScore) error

// Worker runs the daily per-model accuracy pass and rollup.
type Worker struct {
	store       Store
	writeScore  ScoreWriter
	primaryStationID string
	models      []string
	location    *geo.Location
	cfg         Config
	log         zerolog.Logger
}

// New builds a scoring Worker.
func New(store Store, writeScore ScoreWriter, primaryStationID string, models []string, location *geo.Location, cfg Config, log zerolog.Logger) *Worker {
	return &Worker{
		store:            store,
		writeScore:       writeScore,
		primaryStationID: primaryStationID,
		models:           models,
		location:         location,
		cfg:              cfg,
		log:              log,
	}
}

// Run scores the last cfg.EvalDays local days for every configured model,
// then recomputes every model's rollup in one transaction.
func (w *Worker) Run(ctx context.Context, now time.Time) error {
	for _, modelID := range w.models {
		if err := w.scoreModel(ctx, modelID, now); err != nil {
			w.log.Error().Err(err).Str("model_id", modelID).Msg("scoring model failed")
		}
	}
	return w.recomputeRollups(ctx)
}

func (w *Worker) scoreModel(ctx context.Context, modelID string, now time.Time) error {
	for d := 0; d < w.cfg.EvalDays; d++ {
		day := now.AddDate(0, 0, -d)
		localDate := w.location.LocalDate(day)

		aggregates, err := w.store.AggregatesForLocalDate(ctx, w.primaryStationID, w.location, localDate)
		if err != nil {
			return err
		}

		for _, agg := range aggregates {
			hour := w.location.LocalHour(agg.HourTS)
			if hour < w.cfg.AccuracyHourMin || hour > w.cfg.AccuracyHourMax {
				continue
			}

			snap, err := w.store.LatestSnapshotBefore(ctx, modelID, localDate, hour, agg.HourTS)
			if err != nil {
				if err == apperr.ErrNoData {
					continue
				}
				return err
			}

			row := storage.AccuracyRow{
				ModelID:           modelID,
				EvalDate:          localDate,
				TargetHourLocal:   hour,
				ActualSpeed:       agg.AvgSpeed,
				ActualDirection:   agg.AvgDirectionDeg,
				ForecastSpeed:     snap.SpeedKnots,
				ForecastDirection: snap.DirectionDeg,
				SpeedError:        math.Abs(snap.SpeedKnots - agg.AvgSpeed),
				DirectionError:    circular.AbsShortestDelta(agg.AvgDirectionDeg, snap.DirectionDeg),
			}
			if err := w.store.UpsertAccuracyRow(ctx, row); err != nil {
				return err
			}
		}
	}
	return nil
}

// modelStats holds the raw per-model numbers the rollup pass needs before
// normalisation, since composite_score's norm(x) is relative to the max
// across all models in the same pass.
type modelStats struct {
	modelID          string
	rmseSpeed        float64
	maeSpeed         float64
	rmseDirection    float64
	maeDirection     float64
	correlationSpeed float64
	correctionFactor float64
	evalCount        int
}

func (w *Worker) recomputeRollups(ctx context.Context) error {
	stats := make([]modelStats, 0, len(w.models))
	for _, modelID := range w.models {
		rows, err := w.store.AccuracyRowsForModel(ctx, modelID)
		if err != nil {
			return err
		}
		stats = append(stats, computeModelStats(modelID, rows))
	}

	var maxRMSE, maxMAE float64
	for _, s := range stats {
		if s.rmseSpeed > maxRMSE {
			maxRMSE = s.rmseSpeed
		}
		if s.maeSpeed > maxMAE {
			maxMAE = s.maeSpeed
		}
	}
	if maxRMSE < 1 {
		maxRMSE = 1
	}
	if maxMAE < 1 {
		maxMAE = 1
	}

	tx, err := w.store.BeginScoringTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, s := range stats {
		composite := 0.5*(s.rmseSpeed/maxRMSE) + 0.3*(s.maeSpeed/maxMAE) + 0.2*(1-s.correlationSpeed)
		sc := storage.ModelScore{
			ModelID:          s.modelID,
			RMSESpeed:        s.rmseSpeed,
			MAESpeed:         s.maeSpeed,
			RMSEDirection:    s.rmseDirection,
			MAEDirection:     s.maeDirection,
			CorrelationSpeed: s.correlationSpeed,
			CorrectionFactor: s.correctionFactor,
			EvalCount:        s.evalCount,
			CompositeScore:   composite,
		}
		if err := w.writeScore(ctx, tx, sc); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func computeModelStats(modelID string, rows []storage.AccuracyRow) modelStats {
	s := modelStats{modelID: modelID, correctionFactor: 1.0, correlationSpeed: 0}
	n := len(rows)
	s.evalCount = n
	if n == 0 {
		return s
	}

	var speedSqSum, speedAbsSum, dirSqSum, dirAbsSum float64
	actualSpeeds := make([]float64, n)
	forecastSpeeds := make([]float64, n)
	var ratioSum float64
	var ratioCount int

	for i, r := range rows {
		speedSqSum += r.SpeedError * r.SpeedError
		speedAbsSum += r.SpeedError
		dirSqSum += r.DirectionError * r.DirectionError
		dirAbsSum += r.DirectionError
		actualSpeeds[i] = r.ActualSpeed
		forecastSpeeds[i] = r.ForecastSpeed

		if r.ForecastSpeed != 0 {
			ratio := r.ActualSpeed / r.ForecastSpeed
			if ratio >= 0.5 && ratio <= 2.0 {
				ratioSum += ratio
				ratioCount++
			}
		}
	}

	s.rmseSpeed = math.Sqrt(speedSqSum / float64(n))
	s.maeSpeed = speedAbsSum / float64(n)
	s.rmseDirection = math.Sqrt(dirSqSum / float64(n))
	s.maeDirection = dirAbsSum / float64(n)
	s.correlationSpeed = pearson(actualSpeeds, forecastSpeeds)
	if ratioCount > 0 {
		s.correctionFactor = ratioSum / float64(ratioCount)
	}
	return s
}

// pearson computes the Pearson correlation coefficient between two
// equal-length series, returning 0 for degenerate (zero-variance) inputs.
func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 {
		return 0
	}
	var sumA, sumB float64
	for i := 0; i < n; i++ {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/float64(n), sumB/float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// BestModel picks the lowest-composite-score model whose eval_count meets
// the minimum, else falls back to defaultModelID — the state machine named
// in spec.md §4.5 (Unscored/Warming never selected, Scored eligible).
func BestModel(scores []storage.ModelScore, minEvalCount int, defaultModelID string) string {
	best := ""
	bestScore := math.Inf(1)
	for _, sc := range scores {
		if sc.EvalCount < minEvalCount {
			continue
		}
		if sc.CompositeScore < bestScore {
			bestScore = sc.CompositeScore
			best = sc.ModelID
		}
	}
	if best == "" {
		return defaultModelID
	}
	return best
}
