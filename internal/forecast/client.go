// Package forecast fetches and scores numerical weather model predictions.
// Client follows the Open-Meteo wire shape (parallel, index-aligned arrays
// keyed by an hourly Time axis) since every configured model in spec.md
// §6.3 exposes that same "forecast family" contract, differing only in
// base URL.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// KMHToKnots matches spec.md §6.3's forecast speed conversion.
const KMHToKnots = 0.539957

// ForecastDays is how far ahead each model poll requests, per spec.md §4.4.
const ForecastDays = 3

// Client talks to one model's "forecast family" REST endpoint.
type Client struct {
	modelID string
	baseURL string
	http    *http.Client
}

// NewClient builds a Client for one configured model.
func NewClient(modelID, baseURL string, timeout time.Duration) *Client {
	return &Client{modelID: modelID, baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// ModelID returns the configured model identifier.
func (c *Client) ModelID() string { return c.modelID }

// hourlyPayload is the wire shape of the forecast family response: parallel
// arrays aligned by index against Time, as the Open-Meteo client's Hourly
// struct decodes them.
type hourlyPayload struct {
	Hourly struct {
		Time             []string  `json:"time"`
		WindSpeed10m     []float64 `json:"wind_speed_10m"`
		WindDirection10m []float64 `json:"wind_direction_10m"`
		WindGusts10m     []float64 `json:"wind_gusts_10m"`
	} `json:"hourly"`
}

// HourlyPoint is one decoded, unit-converted forecast hour.
type HourlyPoint struct {
	TS           time.Time
	SpeedKnots   float64
	GustKnots    float64
	DirectionDeg float64
}

// Fetch polls the model for a 3-day hourly forecast at the given
// coordinates and returns it as knots-converted, chronological points.
func (c *Client) Fetch(ctx context.Context, latitude, longitude float64, timezone string) ([]HourlyPoint, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing model base url: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1/forecast"
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	q.Set("hourly", "wind_speed_10m,wind_direction_10m,wind_gusts_10m")
	q.Set("timezone", timezone)
	q.Set("forecast_days", strconv.Itoa(ForecastDays))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching model %s: %w", c.modelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model %s http %d", c.modelID, resp.StatusCode)
	}

	var payload hourlyPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding model %s response: %w", c.modelID, err)
	}

	n := len(payload.Hourly.Time)
	points := make([]HourlyPoint, 0, n)
	for i := 0; i < n; i++ {
		ts, err := time.ParseInLocation("2006-01-02T15:04", payload.Hourly.Time[i], time.UTC)
		if err != nil {
			continue
		}
		p := HourlyPoint{TS: ts}
		if i < len(payload.Hourly.WindSpeed10m) {
			p.SpeedKnots = payload.Hourly.WindSpeed10m[i] * KMHToKnots
		}
		if i < len(payload.Hourly.WindGusts10m) {
			p.GustKnots = payload.Hourly.WindGusts10m[i] * KMHToKnots
		}
		if i < len(payload.Hourly.WindDirection10m) {
			p.DirectionDeg = payload.Hourly.WindDirection10m[i]
		}
		points = append(points, p)
	}
	return points, nil
}
