// Package httpapi wires every HTTP endpoint onto a single gin.Engine. A
// single Handlers struct holds a handle to every collaborator the route
// methods need — storage, the stream hub, the calibration manager, the
// notification engine, the cache and the four periodic workers — the same
// one-struct-rooted-handler shape as the teacher's AppState, generalized
// from "one binary watching many agents" to "one binary watching one
// station".
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jorikfon/JollyKite-sub000/internal/aggregate"
	"github.com/jorikfon/JollyKite-sub000/internal/apperr"
	"github.com/jorikfon/JollyKite-sub000/internal/cache"
	"github.com/jorikfon/JollyKite-sub000/internal/calibration"
	"github.com/jorikfon/JollyKite-sub000/internal/config"
	"github.com/jorikfon/JollyKite-sub000/internal/filestore"
	"github.com/jorikfon/JollyKite-sub000/internal/forecast"
	"github.com/jorikfon/JollyKite-sub000/internal/geo"
	"github.com/jorikfon/JollyKite-sub000/internal/ingest"
	"github.com/jorikfon/JollyKite-sub000/internal/notify"
	"github.com/jorikfon/JollyKite-sub000/internal/scoring"
	"github.com/jorikfon/JollyKite-sub000/internal/storage"
	"github.com/jorikfon/JollyKite-sub000/internal/stream"
)

// ServerVersion is stamped at build time the way the teacher's ServerVersion
// var is; defaulted here since this deployment has no release pipeline yet.
var ServerVersion = "dev"

// Handlers is the dependency-injection root every route method hangs off.
type Handlers struct {
	Store      *storage.Store
	Hub        *stream.Hub
	Calib      *calibration.Manager
	Cache      cache.Cache
	Notify     *notify.Engine
	Subs       *filestore.SubscriptionStore
	Tokens     *filestore.DeviceTokenStore
	Location   *geo.Location

	PrimaryStationID string
	StationIDs       []string
	Models           []config.ModelConfig
	Scoring          config.ScoringConfig
	Stability        config.NotificationConfig
	AdminToken       string

	IngestWorker   *ingest.Worker
	AggregateWorker *aggregate.Worker
	ForecastWorker *forecast.Worker
	ScoringWorker  *scoring.Worker

	Log zerolog.Logger
}

// NewRouter builds the gin.Engine and registers every route.
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.Log))

	api := r.Group("/api")
	api.GET("/version", h.GetVersion)
	api.GET("/health", h.GetHealth)

	api.GET("/wind/current", h.GetCurrentWind)
	api.GET("/wind/stream", h.StreamWind)
	api.GET("/wind/history/:hours", h.GetHistory)
	api.GET("/wind/history", h.GetHistory)
	api.GET("/wind/history/week", h.GetHistoryWeek)
	api.GET("/wind/today/gradient", h.GetTodayGradient)
	api.GET("/wind/today/full", h.GetTodayFull)
	api.GET("/wind/statistics/:hours", h.GetStatistics)
	api.GET("/wind/statistics", h.GetStatistics)
	api.GET("/wind/trend", h.GetTrend)

	api.GET("/wind/forecast", h.GetForecast)
	api.GET("/wind/forecast/models", h.GetForecastModels)
	api.GET("/wind/forecast/compare", h.GetForecastCompare)

	api.GET("/calibration", h.GetCalibration)
	api.POST("/calibration", h.PostCalibration)

	api.GET("/archive/days/:days", h.GetArchiveDays)
	api.GET("/archive/days", h.GetArchiveDays)
	api.GET("/archive/day/:date", h.GetArchiveDay)
	api.GET("/archive/statistics/:days", h.GetArchiveStatistics)
	api.GET("/archive/statistics", h.GetArchiveStatistics)
	api.GET("/archive/patterns/:days", h.GetArchivePatterns)
	api.GET("/archive/patterns", h.GetArchivePatterns)

	api.POST("/notifications/subscribe", h.PostNotificationsSubscribe)
	api.POST("/notifications/unsubscribe", h.PostNotificationsUnsubscribe)
	api.GET("/notifications/stats", h.GetNotificationsStats)
	api.POST("/notifications/apns/register", h.PostAPNSRegister)
	api.POST("/notifications/apns/unregister", h.PostAPNSUnregister)

	// Admin-only force-run and test endpoints, gated behind a shared token
	// (spec.md marks these "(admin)"; an empty AdminToken disables the
	// whole group rather than leaving them open).
	admin := api.Group("/")
	admin.Use(h.adminRequired())
	admin.POST("/wind/forecast/snapshot", h.PostForecastSnapshot)
	admin.POST("/wind/forecast/evaluate", h.PostForecastEvaluate)
	admin.POST("/wind/collect", h.PostCollect)
	admin.POST("/archive/hourly", h.PostArchiveHourly)
	admin.POST("/notifications/test", h.PostNotificationsTest)

	return r
}

// adminRequired checks the X-Admin-Token header against the configured
// token. A blank AdminToken disables the entire admin group.
func (h *Handlers) adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.AdminToken == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "admin endpoints are disabled"})
			return
		}
		if c.GetHeader("X-Admin-Token") != h.AdminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing admin token"})
			return
		}
		c.Next()
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	}
}

// writeError renders the uniform {error: string} body required by every
// JSON endpoint (spec.md §7), picking the status from the error's Kind.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
	case apperr.KindStorageTransient, apperr.KindStorageFatal:
		status = http.StatusInternalServerError
	case apperr.KindConfigMissing:
		status = http.StatusServiceUnavailable
	case apperr.KindUpstreamTransient, apperr.KindUpstreamPermanent:
		status = http.StatusBadGateway
	}
	if err == apperr.ErrNoData {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GetVersion reports the running binary's version.
func (h *Handlers) GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":   ServerVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetHealth pings storage; used by operators and container orchestrators.
func (h *Handlers) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
