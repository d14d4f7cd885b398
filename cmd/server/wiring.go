package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/jorikfon/JollyKite-sub000/internal/aggregate"
	"github.com/jorikfon/JollyKite-sub000/internal/cache"
	"github.com/jorikfon/JollyKite-sub000/internal/calibration"
	"github.com/jorikfon/JollyKite-sub000/internal/config"
	"github.com/jorikfon/JollyKite-sub000/internal/filestore"
	"github.com/jorikfon/JollyKite-sub000/internal/forecast"
	"github.com/jorikfon/JollyKite-sub000/internal/geo"
	"github.com/jorikfon/JollyKite-sub000/internal/httpapi"
	"github.com/jorikfon/JollyKite-sub000/internal/ingest"
	"github.com/jorikfon/JollyKite-sub000/internal/notify"
	"github.com/jorikfon/JollyKite-sub000/internal/scoring"
	"github.com/jorikfon/JollyKite-sub000/internal/stations"
	"github.com/jorikfon/JollyKite-sub000/internal/storage"
	"github.com/jorikfon/JollyKite-sub000/internal/stream"
	"github.com/jorikfon/JollyKite-sub000/internal/wind"
)

// scoringStoreAdapter satisfies scoring.Store by delegating to the concrete
// *storage.Store, widening its pgx.Tx return to the package-local scoring.Tx
// capability (Commit/Rollback) that scoring.go declares. pgx.Tx already
// implements that narrower interface, so no wrapper type is needed for the
// transaction value itself — only for the BeginScoringTx method that hands
// it out.
type scoringStoreAdapter struct {
	store *storage.Store
}

func (a scoringStoreAdapter) AggregatesForLocalDate(ctx context.Context, stationID string, loc *geo.Location, localDate string) ([]storage.HourlyAggregate, error) {
	return a.store.AggregatesForLocalDate(ctx, stationID, loc, localDate)
}

func (a scoringStoreAdapter) LatestSnapshotBefore(ctx context.Context, modelID, targetDate string, targetHourLocal int, cutoff time.Time) (storage.ForecastSnapshot, error) {
	return a.store.LatestSnapshotBefore(ctx, modelID, targetDate, targetHourLocal, cutoff)
}

func (a scoringStoreAdapter) UpsertAccuracyRow(ctx context.Context, r storage.AccuracyRow) error {
	return a.store.UpsertAccuracyRow(ctx, r)
}

func (a scoringStoreAdapter) AccuracyRowsForModel(ctx context.Context, modelID string) ([]storage.AccuracyRow, error) {
	return a.store.AccuracyRowsForModel(ctx, modelID)
}

func (a scoringStoreAdapter) BeginScoringTx(ctx context.Context) (scoring.Tx, error) {
	tx, err := a.store.BeginScoringTx(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// writeModelScore is the scoring.ScoreWriter closure: it type-asserts the
// scoring.Tx back to the concrete pgx.Tx that storage.Store.UpsertModelScore
// requires, the adapter seam scoring.go's doc comment calls for.
func writeModelScore(store *storage.Store) scoring.ScoreWriter {
	return func(ctx context.Context, tx scoring.Tx, sc storage.ModelScore) error {
		pgxTx, ok := tx.(pgx.Tx)
		if !ok {
			return fmt.Errorf("scoring: tx %T is not a pgx.Tx", tx)
		}
		return store.UpsertModelScore(ctx, pgxTx, sc)
	}
}

// stabilityConfig converts the user-facing config knobs into the wind
// package's evaluation config, keeping internal/wind free of internal/config.
func stabilityConfig(c config.NotificationConfig) wind.StabilityConfig {
	return wind.StabilityConfig{
		SampleCount:              c.SampleCount,
		MinSpeedKnots:            c.MinSpeedKnots,
		MaxDirectionDeviationDeg: c.MaxDirectionSpreadDeg,
		MaxGustDeltaKnots:        c.MaxGustDeltaKnots,
		MinTrendDelta:            c.MinTrendDelta,
	}
}

func scoringConfig(c config.ScoringConfig) scoring.Config {
	return scoring.Config{
		EvalDays:        c.EvalDays,
		AccuracyHourMin: c.AccuracyHourMin,
		AccuracyHourMax: c.AccuracyHourMax,
		MinEvalCount:    c.MinEvalCount,
		DefaultModelID:  c.DefaultModelID,
	}
}

// buildStationDrivers constructs one Driver per configured station.
func buildStationDrivers(stationCfgs []config.StationConfig, timeout time.Duration) ([]stations.Driver, string, error) {
	drivers := make([]stations.Driver, 0, len(stationCfgs))
	primaryID := ""
	for _, sc := range stationCfgs {
		d, err := stations.NewDriver(sc.Kind, sc.ID, sc.Endpoint, timeout)
		if err != nil {
			return nil, "", fmt.Errorf("building driver for station %q: %w", sc.ID, err)
		}
		drivers = append(drivers, d)
		if sc.IsPrimary {
			primaryID = sc.ID
		}
	}
	return drivers, primaryID, nil
}

func buildForecastClients(modelCfgs []config.ModelConfig, timeout time.Duration) []forecast.ModelClient {
	clients := make([]forecast.ModelClient, 0, len(modelCfgs))
	for _, mc := range modelCfgs {
		clients = append(clients, forecast.NewClient(mc.ID, mc.BaseURL, timeout))
	}
	return clients
}

func modelIDs(modelCfgs []config.ModelConfig) []string {
	ids := make([]string, len(modelCfgs))
	for i, mc := range modelCfgs {
		ids[i] = mc.ID
	}
	return ids
}

// buildNotifyEngine wires the push channels from the on-disk credentials
// document. A field left blank in the document leaves that channel nil,
// which notify.Engine treats as disabled rather than an error (spec.md §9's
// "missing credentials silently disables the channel").
func buildNotifyEngine(creds filestore.PushCredentials, subs *filestore.SubscriptionStore, tokens *filestore.DeviceTokenStore, loc *geo.Location, cfg wind.StabilityConfig, log zerolog.Logger) *notify.Engine {
	var web notify.WebPushSender
	if creds.VAPIDPublicKey != "" && creds.VAPIDPrivateKey != "" {
		web = notify.NewVAPIDWebPushSender(creds.VAPIDPublicKey, creds.VAPIDPrivateKey, creds.VAPIDSubject)
	} else {
		log.Warn().Msg("VAPID credentials missing, web push channel disabled")
	}

	var mobile notify.MobilePushSender
	if creds.MobileEndpoint != "" && creds.MobileKeyID != "" && creds.MobilePrivateKeyPEM != "" {
		m, err := notify.NewVendorMobilePushSender(creds.MobileEndpoint, creds.MobileBundleID, creds.MobileKeyID, creds.MobileTeamID, creds.MobilePrivateKeyPEM)
		if err != nil {
			log.Warn().Err(err).Msg("mobile push credentials invalid, mobile channel disabled")
		} else {
			mobile = m
		}
	} else {
		log.Warn().Msg("mobile push credentials missing, mobile channel disabled")
	}

	return notify.New(subs, tokens, web, mobile, loc, cfg, log)
}

// buildOnPrimarySuccess returns the ingest.OnPrimarySuccess callback that
// fans a fresh primary-station reading out to the live stream and, when the
// stability predicate holds, to the notification engine.
func buildOnPrimarySuccess(hub *stream.Hub, store *storage.Store, notifyEngine *notify.Engine, primaryStationID string, sampleCount int, loc *geo.Location, log zerolog.Logger) ingest.OnPrimarySuccess {
	return func(ctx context.Context, stationID string, reading stations.Reading) {
		safety := wind.ClassifySafety(float64(reading.WindDirectionDeg), reading.WindSpeedKnots)
		bearing := wind.ClassifyBearing(float64(reading.WindDirectionDeg))
		evt := stream.Event{
			Type: stream.EventWindUpdate,
			Data: map[string]any{
				"reading": reading,
				"safety":  safety,
				"bearing": bearing,
			},
		}
		hub.SetSnapshot(evt)
		hub.Broadcast(evt)

		rows, err := store.RecentMeasurements(ctx, primaryStationID, sampleCount)
		if err != nil {
			log.Warn().Err(err).Msg("fetching recent measurements for stability check failed")
			return
		}
		if len(rows) < sampleCount {
			return
		}
		speeds := make([]float64, len(rows))
		directions := make([]float64, len(rows))
		gusts := make([]float64, 0, len(rows))
		for i, m := range rows {
			speeds[i] = m.WindSpeedKnots
			directions[i] = float64(m.WindDirectionDeg)
			if m.WindGustKnots != nil {
				gusts = append(gusts, *m.WindGustKnots)
			}
		}
		result := notifyEngine.Evaluate(speeds, directions, gusts)
		if !result.Holds {
			return
		}
		payload := notify.Payload{
			Locales: map[string]notify.LocaleStrings{
				"default": {Title: "Conditions look good", Body: "Wind has been steady and within your range."},
			},
			SpeedKnots:       speeds[0],
			TimestampISO8601: loc.Now().Format(time.RFC3339),
		}
		dispatch := notifyEngine.Dispatch(ctx, payload, loc.Now())
		log.Info().Int("web", dispatch.WebSent).Int("mobile", dispatch.MobileSent).Msg("notification dispatch evaluated")
	}
}

// buildRouter assembles the httpapi.Handlers DI root from every built
// collaborator.
func buildRouter(cfg *config.Config, store *storage.Store, hub *stream.Hub, calib *calibration.Manager, cacheImpl cache.Cache, notifyEngine *notify.Engine, subs *filestore.SubscriptionStore, tokens *filestore.DeviceTokenStore, primaryStationID string, stationIDs []string, ingestWorker *ingest.Worker, aggWorker *aggregate.Worker, forecastWorker *forecast.Worker, scoringWorker *scoring.Worker, log zerolog.Logger) *httpapi.Handlers {
	return &httpapi.Handlers{
		Store:            store,
		Hub:              hub,
		Calib:            calib,
		Cache:            cacheImpl,
		Notify:           notifyEngine,
		Subs:             subs,
		Tokens:           tokens,
		Location:         &cfg.Location,
		PrimaryStationID: primaryStationID,
		StationIDs:       stationIDs,
		Models:           cfg.ForecastModels,
		Scoring:          cfg.Scoring,
		Stability:        cfg.Notification,
		AdminToken:       cfg.Server.AdminToken,
		IngestWorker:     ingestWorker,
		AggregateWorker:  aggWorker,
		ForecastWorker:   forecastWorker,
		ScoringWorker:    scoringWorker,
		Log:              log,
	}
}

// openStoreWithRetry opens storage with exponential backoff, tolerating
// Postgres still coming up (common in container-orchestrated deploys where
// this binary and its database start together) instead of failing fast on
// the first connection attempt.
func openStoreWithRetry(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*storage.Store, error) {
	var store *storage.Store
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	err := backoff.Retry(func() error {
		s, err := storage.Open(ctx, cfg.DSN, cfg.MaxConns, cfg.MinConns)
		if err != nil {
			log.Warn().Err(err).Msg("connecting to storage failed, retrying")
			return err
		}
		store = s
		return nil
	}, b)
	if err != nil {
		return nil, fmt.Errorf("connecting to storage: %w", err)
	}
	return store, nil
}
