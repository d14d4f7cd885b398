package httpapi

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetArchiveDays serves the last N days of hourly aggregates, newest first.
func (h *Handlers) GetArchiveDays(c *gin.Context) {
	days := intParam(c, "days", 7)
	aggs, err := h.Store.AggregatesLastNDays(c.Request.Context(), h.PrimaryStationID, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "aggregates": aggs})
}

// GetArchiveDay serves one local calendar date's hourly aggregates.
func (h *Handlers) GetArchiveDay(c *gin.Context) {
	date := c.Param("date")
	aggs, err := h.Store.AggregatesForLocalDate(c.Request.Context(), h.PrimaryStationID, h.Location, date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "aggregates": aggs})
}

// GetArchiveStatistics serves min/avg/max speed across the last N days of
// aggregates.
func (h *Handlers) GetArchiveStatistics(c *gin.Context) {
	days := intParam(c, "days", 7)
	aggs, err := h.Store.AggregatesLastNDays(c.Request.Context(), h.PrimaryStationID, days)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(aggs) == 0 {
		c.JSON(http.StatusOK, gin.H{"days": days, "count": 0})
		return
	}

	minSpeed, maxSpeed, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, a := range aggs {
		sum += a.AvgSpeed
		if a.AvgSpeed < minSpeed {
			minSpeed = a.AvgSpeed
		}
		if a.AvgSpeed > maxSpeed {
			maxSpeed = a.AvgSpeed
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"days":      days,
		"count":     len(aggs),
		"min_speed": minSpeed,
		"max_speed": maxSpeed,
		"avg_speed": sum / float64(len(aggs)),
	})
}

// GetArchivePatterns serves the per-local-hour average rollup over the last
// N days — "what does a typical hour look like".
func (h *Handlers) GetArchivePatterns(c *gin.Context) {
	days := intParam(c, "days", 30)
	rows, err := h.Store.DailyPatternRollup(c.Request.Context(), h.PrimaryStationID, h.Location, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "patterns": rows})
}

// PostArchiveHourly force-runs the hourly aggregation worker once
// (admin-only trigger).
func (h *Handlers) PostArchiveHourly(c *gin.Context) {
	if err := h.AggregateWorker.Run(c.Request.Context(), h.Location.Now()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "aggregation cycle completed"})
}

// PostCollect force-runs the ingestion worker once (admin-only trigger).
func (h *Handlers) PostCollect(c *gin.Context) {
	if err := h.IngestWorker.Run(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ingestion cycle completed"})
}
