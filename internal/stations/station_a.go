package stations

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// publicArrayEnvelope is the wire shape of the "public array" station
// family: `{ data: [ { lastData: {...} } ] }`, with the first element
// holding the current reading. Speeds arrive in miles per hour.
type publicArrayEnvelope struct {
	Data []publicArrayStation `json:"data"`
}

type publicArrayStation struct {
	LastData publicArrayEntry `json:"lastData"`
}

type publicArrayEntry struct {
	DateUTC         string   `json:"dateutc"` // "2006-01-02 15:04:05", UTC implied
	WindSpeedMPH    float64  `json:"windspeedmph"`
	WindGustMPH     *float64 `json:"windgustmph"`
	MaxDailyGustMPH *float64 `json:"maxdailygust"`
	WindDirDeg      int      `json:"winddir"`
	WindDirAvg10m   *float64 `json:"winddir_avg10m"`
	TempF           *float64 `json:"tempf"`
	Humidity        *float64 `json:"humidity"`
	BaromRelIn      *float64 `json:"baromrelin"`
}

// PublicArrayDriver talks to the "rest_public_array" station family.
type PublicArrayDriver struct {
	stationID string
	endpoint  string
	client    *http.Client
}

// NewPublicArrayDriver builds a driver for one station endpoint.
func NewPublicArrayDriver(stationID, endpoint string, timeout time.Duration) *PublicArrayDriver {
	return &PublicArrayDriver{
		stationID: stationID,
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
	}
}

func (d *PublicArrayDriver) StationID() string { return d.stationID }

func (d *PublicArrayDriver) Fetch(ctx context.Context) (Reading, error) {
	var envelope publicArrayEnvelope
	if err := httpGetJSON(ctx, d.client, d.endpoint, &envelope); err != nil {
		return Reading{}, err
	}
	if len(envelope.Data) == 0 {
		return Reading{}, fmt.Errorf("station %s returned no data entries", d.stationID)
	}

	e := envelope.Data[0].LastData
	ts, err := time.Parse("2006-01-02 15:04:05", e.DateUTC)
	if err != nil {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	r := Reading{
		TS:               ts,
		WindSpeedKnots:   e.WindSpeedMPH * MPHToKnots,
		WindDirectionDeg: e.WindDirDeg,
		Temperature:      fahrenheitToCelsiusPtr(e.TempF),
		Humidity:         e.Humidity,
		Pressure:         e.BaromRelIn,
	}
	if e.WindGustMPH != nil {
		g := *e.WindGustMPH * MPHToKnots
		r.WindGustKnots = &g
	}
	if e.MaxDailyGustMPH != nil {
		g := *e.MaxDailyGustMPH * MPHToKnots
		r.MaxGustKnots = &g
	}
	if e.WindDirAvg10m != nil {
		avg := int(*e.WindDirAvg10m)
		r.WindDirectionAvgDeg = &avg
	}
	return r, nil
}

func fahrenheitToCelsiusPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := (*f - 32) * 5 / 9
	return &c
}
