package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jorikfon/JollyKite-sub000/internal/cache"
	"github.com/jorikfon/JollyKite-sub000/internal/scoring"
	"github.com/jorikfon/JollyKite-sub000/internal/storage"
)

// bestModelID picks the lowest-composite-score model that has met the
// minimum evaluation count, falling back to the configured default —
// thin wrapper so every handler shares one call site.
func bestModelID(scores []storage.ModelScore, minEvalCount int, defaultModelID string) string {
	return scoring.BestModel(scores, minEvalCount, defaultModelID)
}

// GetForecast serves one model's forecast for today, defaulting to the
// current best-scoring model when ?model= is omitted.
func (h *Handlers) GetForecast(c *gin.Context) {
	ctx := c.Request.Context()
	modelID := c.Query("model")
	if modelID == "" {
		modelID = h.defaultModelID(c)
	}

	localDate := h.Location.LocalDate(h.Location.Now())
	snaps, err := h.Store.SnapshotsForModelDate(ctx, modelID, localDate)
	if err != nil {
		writeError(c, err)
		return
	}

	correction := 1.0
	if sc, err := h.Store.ModelScoreByID(ctx, modelID); err == nil {
		correction = sc.CorrectionFactor
	}
	for i := range snaps {
		snaps[i].SpeedKnots *= correction
	}

	c.JSON(http.StatusOK, gin.H{
		"model_id":          modelID,
		"correction_factor": correction,
		"date":              localDate,
		"forecast":          snaps,
	})
}

// GetForecastModels serves every configured model's current rollup.
func (h *Handlers) GetForecastModels(c *gin.Context) {
	scores, err := h.Store.AllModelScores(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"models":      scores,
		"best_model":  bestModelID(scores, h.Scoring.MinEvalCount, h.Scoring.DefaultModelID),
	})
}

type modelForecast struct {
	ModelID  string                     `json:"model_id"`
	Forecast []storage.ForecastSnapshot `json:"forecast"`
}

// GetForecastCompare serves every model's forecast for today side by side,
// read-through cached since it fans out to every configured model.
func (h *Handlers) GetForecastCompare(c *gin.Context) {
	localDate := h.Location.LocalDate(h.Location.Now())
	key := cache.ForecastCompareCacheKey(localDate)

	out, err := cache.JSON(c.Request.Context(), h.Cache, key, cacheTTLShort, func(ctx context.Context) ([]modelForecast, error) {
		rows := make([]modelForecast, 0, len(h.Models))
		for _, m := range h.Models {
			snaps, err := h.Store.SnapshotsForModelDate(ctx, m.ID, localDate)
			if err != nil {
				return nil, err
			}
			rows = append(rows, modelForecast{ModelID: m.ID, Forecast: snaps})
		}
		return rows, nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": localDate, "models": out})
}

// PostForecastSnapshot force-runs the forecast ingestion worker once
// (admin-only trigger, mirrors POST /wind/collect for the station side).
func (h *Handlers) PostForecastSnapshot(c *gin.Context) {
	h.ForecastWorker.Run(c.Request.Context(), h.Location.Now())
	c.JSON(http.StatusOK, gin.H{"status": "snapshot cycle completed"})
}

// PostForecastEvaluate force-runs the scoring worker once.
func (h *Handlers) PostForecastEvaluate(c *gin.Context) {
	if err := h.ScoringWorker.Run(c.Request.Context(), h.Location.Now()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "scoring cycle completed"})
}
