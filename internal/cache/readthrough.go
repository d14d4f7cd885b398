package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GradientCacheKey builds the cache key for GET /wind/today/gradient.
func GradientCacheKey(stationID string, localDate string, intervalMinutes int) string {
	return fmt.Sprintf("gradient:%s:%s:%d", stationID, localDate, intervalMinutes)
}

// ForecastCompareCacheKey builds the cache key for GET /wind/forecast/compare.
func ForecastCompareCacheKey(localDate string) string {
	return fmt.Sprintf("forecast_compare:%s", localDate)
}

// JSON reads a cached, JSON-encoded value of type T, populating it from
// compute and writing it back with ttl on a miss.
func JSON[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if raw, ok := c.Get(ctx, key); ok {
		var val T
		if err := json.Unmarshal(raw, &val); err == nil {
			return val, nil
		}
		// Corrupt entry: fall through and recompute rather than fail the request.
	}

	val, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	if encoded, err := json.Marshal(val); err == nil {
		_ = c.Set(ctx, key, encoded, ttl)
	}
	return val, nil
}
