package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jorikfon/JollyKite-sub000/internal/cache"
	"github.com/jorikfon/JollyKite-sub000/internal/storage"
	"github.com/jorikfon/JollyKite-sub000/internal/stream"
	"github.com/jorikfon/JollyKite-sub000/internal/wind"
)

// cacheTTLShort bounds read-through caches for expensive, frequently polled
// endpoints — long enough to absorb a burst of refreshes, short enough that
// a newly ingested reading shows up within roughly one ingestion cycle.
const cacheTTLShort = time.Minute

func intParam(c *gin.Context, name string, def int) int {
	raw := c.Param(name)
	if raw == "" {
		raw = c.Query(name)
	}
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

type currentWindResponse struct {
	Measurement storage.Measurement `json:"measurement"`
	Safety      wind.SafetyLabel    `json:"safety"`
	Bearing     wind.BearingClass   `json:"bearing"`
}

// GetCurrentWind serves the primary station's latest reading.
func (h *Handlers) GetCurrentWind(c *gin.Context) {
	m, err := h.Store.LatestMeasurement(c.Request.Context(), h.PrimaryStationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, currentWindResponse{
		Measurement: m,
		Safety:      wind.ClassifySafety(float64(m.WindDirectionDeg), m.WindSpeedKnots),
		Bearing:     wind.ClassifyBearing(float64(m.WindDirectionDeg)),
	})
}

// StreamWind upgrades the connection to a text/event-stream and serves the
// hub's live feed. Per spec.md §7, this endpoint never emits a JSON error
// body — a fatal failure just closes the connection and the client
// reconnects.
func (h *Handlers) StreamWind(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	sub := h.Hub.Subscribe()
	defer sub.Close()

	if err := stream.Serve(c.Request.Context(), c.Writer, sub, stream.DefaultWriteDeadline); err != nil {
		h.Log.Debug().Err(err).Msg("stream client disconnected")
	}
}

// GetHistory serves the last N hours of raw readings for the primary
// station, newest first.
func (h *Handlers) GetHistory(c *gin.Context) {
	hours := intParam(c, "hours", 24)
	rows, err := h.Store.HistoryHours(c.Request.Context(), h.PrimaryStationID, hours)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hours": hours, "measurements": rows})
}

// GetHistoryWeek serves one entry per local day for the last `days` days
// (default 7), each built from that day's hourly aggregates.
func (h *Handlers) GetHistoryWeek(c *gin.Context) {
	days := intParam(c, "days", 7)
	out := make([]gin.H, 0, days)
	for d := 0; d < days; d++ {
		day := h.Location.Now().AddDate(0, 0, -d)
		localDate := h.Location.LocalDate(day)
		aggs, err := h.Store.AggregatesForLocalDate(c.Request.Context(), h.PrimaryStationID, h.Location, localDate)
		if err != nil {
			writeError(c, err)
			return
		}
		out = append(out, gin.H{"date": localDate, "aggregates": aggs})
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "daily": out})
}

// GetTodayGradient buckets today's readings into fixed-size minute buckets,
// read-through cached since the bucketing work repeats across requests
// within the same interval.
func (h *Handlers) GetTodayGradient(c *gin.Context) {
	start := intParam(c, "start", h.Location.ActivityStartHour)
	end := intParam(c, "end", h.Location.ActivityEndHour)
	interval := intParam(c, "interval", 15)
	localDate := h.Location.LocalDate(h.Location.Now())

	key := cache.GradientCacheKey(h.PrimaryStationID, localDate, interval)
	rows, err := cache.JSON(c.Request.Context(), h.Cache, key, cacheTTLShort, func(ctx context.Context) ([]storage.BucketRow, error) {
		return h.Store.TodayGradient(ctx, h.PrimaryStationID, h.Location, start, end, interval)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interval_minutes": interval, "buckets": rows})
}

// GetStatistics serves min/avg/max/trend over the last N hours.
func (h *Handlers) GetStatistics(c *gin.Context) {
	hours := intParam(c, "hours", 24)
	rows, err := h.Store.HistoryHours(c.Request.Context(), h.PrimaryStationID, hours)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusOK, gin.H{"hours": hours, "count": 0})
		return
	}

	minSpeed, maxSpeed, sum := rows[0].WindSpeedKnots, rows[0].WindSpeedKnots, 0.0
	speedsNewestFirst := make([]float64, len(rows))
	for i, m := range rows {
		speedsNewestFirst[i] = m.WindSpeedKnots
		sum += m.WindSpeedKnots
		if m.WindSpeedKnots < minSpeed {
			minSpeed = m.WindSpeedKnots
		}
		if m.WindSpeedKnots > maxSpeed {
			maxSpeed = m.WindSpeedKnots
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"hours":     hours,
		"count":     len(rows),
		"min_speed": minSpeed,
		"max_speed": maxSpeed,
		"avg_speed": sum / float64(len(rows)),
		"trend":     wind.SpeedTrend(speedsNewestFirst, wind.DefaultTrendConfig),
	})
}

// GetTrend serves the speed-trend and direction-stability classifications
// over the primary station's most recent readings.
func (h *Handlers) GetTrend(c *gin.Context) {
	rows, err := h.Store.RecentMeasurements(c.Request.Context(), h.PrimaryStationID, 12)
	if err != nil {
		writeError(c, err)
		return
	}
	speeds := make([]float64, len(rows))
	directions := make([]float64, len(rows))
	for i, m := range rows {
		speeds[i] = m.WindSpeedKnots
		directions[i] = float64(m.WindDirectionDeg)
	}
	c.JSON(http.StatusOK, gin.H{
		"speed_trend":        wind.SpeedTrend(speeds, wind.DefaultTrendConfig),
		"direction_stability": wind.ClassifyDirectionStability(directions, wind.DefaultDirectionStabilityConfig),
		"sample_count":       len(rows),
	})
}

// GetTodayFull serves a combined timeline of today's actual aggregates plus
// the upcoming hours' forecast, for the "full day at a glance" dashboard view.
func (h *Handlers) GetTodayFull(c *gin.Context) {
	localDate := h.Location.LocalDate(h.Location.Now())
	aggs, err := h.Store.AggregatesForLocalDate(c.Request.Context(), h.PrimaryStationID, h.Location, localDate)
	if err != nil {
		writeError(c, err)
		return
	}

	modelID := c.Query("model")
	if modelID == "" {
		modelID = h.defaultModelID(c)
	}
	snaps, err := h.Store.SnapshotsForModelDate(c.Request.Context(), modelID, localDate)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":       localDate,
		"actual":     aggs,
		"forecast":   snaps,
		"model_used": modelID,
	})
}

func (h *Handlers) defaultModelID(c *gin.Context) string {
	scores, err := h.Store.AllModelScores(c.Request.Context())
	if err != nil {
		return h.Scoring.DefaultModelID
	}
	return bestModelID(scores, h.Scoring.MinEvalCount, h.Scoring.DefaultModelID)
}
