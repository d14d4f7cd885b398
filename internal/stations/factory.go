package stations

import (
	"fmt"
	"time"
)

// KindPublicArray and KindSnapshot match config.StationConfig.Kind values.
const (
	KindPublicArray = "rest_public_array"
	KindSnapshot    = "rest_snapshot"
)

// NewDriver builds the right Driver for a station's configured kind.
func NewDriver(kind, stationID, endpoint string, timeout time.Duration) (Driver, error) {
	switch kind {
	case KindPublicArray:
		return NewPublicArrayDriver(stationID, endpoint, timeout), nil
	case KindSnapshot:
		return NewSnapshotDriver(stationID, endpoint, timeout), nil
	default:
		return nil, fmt.Errorf("unknown station kind %q", kind)
	}
}
