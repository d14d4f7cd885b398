// Package stations implements the per-station HTTP drivers the ingestion
// worker fans out to. Each driver knows how to extract a single measurement
// from its upstream's payload shape and convert its units to knots; the
// worker itself is transport-agnostic and only talks to the Driver
// interface.
package stations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Unit conversion factors named per spec.md §4.2.
const (
	MPHToKnots = 0.868976
	MSToKnots  = 1.94384
)

// Reading is one station's measurement, already converted to knots, as
// handed to storage.Measurement by the ingestion worker.
type Reading struct {
	TS                  time.Time
	WindSpeedKnots      float64
	WindGustKnots       *float64
	MaxGustKnots        *float64
	WindDirectionDeg    int
	WindDirectionAvgDeg *int
	Temperature         *float64
	Humidity            *float64
	Pressure            *float64
}

// Driver fetches and decodes one station's current reading.
type Driver interface {
	StationID() string
	Fetch(ctx context.Context) (Reading, error)
}

// httpGetJSON is the shared fetch-and-decode helper both drivers use,
// grounded on the teacher's http.Client{Timeout: ...} + json.Decoder
// pattern used throughout notifiers.go/handlers_oauth.go.
func httpGetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("station http %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
