package forecast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_ConvertsKMHToKnotsAndAlignsParallelArrays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"hourly": {
				"time": ["2026-07-30T10:00", "2026-07-30T11:00"],
				"wind_speed_10m": [20, 25],
				"wind_direction_10m": [90, 95],
				"wind_gusts_10m": [30, 35]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient("model-a", srv.URL, 2*time.Second)
	points, err := c.Fetch(context.Background(), -33.8, 151.2, "UTC")
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.InDelta(t, 20*KMHToKnots, points[0].SpeedKnots, 0.0001)
	assert.InDelta(t, 30*KMHToKnots, points[0].GustKnots, 0.0001)
	assert.Equal(t, 90.0, points[0].DirectionDeg)
	assert.InDelta(t, 25*KMHToKnots, points[1].SpeedKnots, 0.0001)
}

func TestFetch_HTTPErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("model-a", srv.URL, 2*time.Second)
	_, err := c.Fetch(context.Background(), 0, 0, "UTC")
	assert.Error(t, err)
}

func TestModelID_ReturnsConfiguredID(t *testing.T) {
	c := NewClient("model-x", "http://example.com", time.Second)
	assert.Equal(t, "model-x", c.ModelID())
}
