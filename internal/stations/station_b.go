package stations

import (
	"context"
	"net/http"
	"time"
)

// snapshotPayload is the wire shape of the "snapshot" station family: a
// single flat JSON object reflecting current conditions. Speeds arrive in
// metres per second.
type snapshotPayload struct {
	Epoch           int64    `json:"epoch"`
	WindSpeedMS     float64  `json:"wspd"`
	WindSpeedHighMS *float64 `json:"wspdhi"`
	WindDirectionDeg int     `json:"wdir"`
	WindDirAvgDeg   *float64 `json:"wdiravg"`
	Pressure        *float64 `json:"bar"`
}

// SnapshotDriver talks to the "rest_snapshot" station family.
type SnapshotDriver struct {
	stationID string
	endpoint  string
	client    *http.Client
}

// NewSnapshotDriver builds a driver for one station endpoint.
func NewSnapshotDriver(stationID, endpoint string, timeout time.Duration) *SnapshotDriver {
	return &SnapshotDriver{
		stationID: stationID,
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
	}
}

func (d *SnapshotDriver) StationID() string { return d.stationID }

func (d *SnapshotDriver) Fetch(ctx context.Context) (Reading, error) {
	var payload snapshotPayload
	if err := httpGetJSON(ctx, d.client, d.endpoint, &payload); err != nil {
		return Reading{}, err
	}

	r := Reading{
		TS:               time.Unix(payload.Epoch, 0).UTC(),
		WindSpeedKnots:   payload.WindSpeedMS * MSToKnots,
		WindDirectionDeg: payload.WindDirectionDeg,
		Pressure:         payload.Pressure,
	}
	if payload.WindSpeedHighMS != nil {
		g := *payload.WindSpeedHighMS * MSToKnots
		r.WindGustKnots = &g
	}
	if payload.WindDirAvgDeg != nil {
		avg := int(*payload.WindDirAvgDeg)
		r.WindDirectionAvgDeg = &avg
	}
	return r, nil
}
