package storage

import "time"

// Measurement is one raw reading from a station at a point in time.
type Measurement struct {
	ID                  int64     `json:"id"`
	TS                  time.Time `json:"ts"`
	StationID           string    `json:"stationId"`
	WindSpeedKnots      float64   `json:"windSpeedKnots"`
	WindGustKnots       *float64  `json:"windGustKnots,omitempty"`
	MaxGustKnots        *float64  `json:"maxGustKnots,omitempty"`
	WindDirectionDeg    int       `json:"windDir"`
	WindDirectionAvgDeg *int      `json:"windDirAvgDeg,omitempty"`
	Temperature         *float64  `json:"temperature,omitempty"`
	Humidity            *float64  `json:"humidity,omitempty"`
	Pressure            *float64  `json:"pressure,omitempty"`
}

// HourlyAggregate is one station's collapsed hour of measurements.
type HourlyAggregate struct {
	HourTS               time.Time `json:"hourTs"`
	StationID            string    `json:"stationId"`
	AvgSpeed             float64   `json:"avgSpeed"`
	MinSpeed             float64   `json:"minSpeed"`
	MaxSpeed             float64   `json:"maxSpeed"`
	AvgGust              *float64  `json:"avgGust,omitempty"`
	MaxGust              *float64  `json:"maxGust,omitempty"`
	AvgDirectionDeg      float64   `json:"avgDirectionDeg"`
	DominantDirectionDeg float64   `json:"dominantDirectionDeg"`
	AvgTemp              *float64  `json:"avgTemp,omitempty"`
	AvgHumidity          *float64  `json:"avgHumidity,omitempty"`
	AvgPressure          *float64  `json:"avgPressure,omitempty"`
	MeasurementCount     int       `json:"measurementCount"`
}

// ForecastSnapshot is one model's prediction for one target hour, as polled
// at SnapshotTS. Multiple snapshots accumulate for the same target hour as
// the model is re-polled; scoring picks the latest pre-observation one.
type ForecastSnapshot struct {
	ID              int64     `json:"id"`
	SnapshotTS      time.Time `json:"snapshotTs"`
	ModelID         string    `json:"modelId"`
	TargetDate      string    `json:"targetDate"` // YYYY-MM-DD, local date
	TargetHourLocal int       `json:"targetHourLocal"`
	SpeedKnots      float64   `json:"speedKnots"`
	GustKnots       *float64  `json:"gustKnots,omitempty"`
	DirectionDeg    float64   `json:"directionDeg"`
}

// AccuracyRow is one model's scored error for one realised target hour.
type AccuracyRow struct {
	ModelID           string  `json:"modelId"`
	EvalDate          string  `json:"evalDate"`
	TargetHourLocal   int     `json:"targetHourLocal"`
	ActualSpeed       float64 `json:"actualSpeed"`
	ActualDirection   float64 `json:"actualDirection"`
	ForecastSpeed     float64 `json:"forecastSpeed"`
	ForecastDirection float64 `json:"forecastDirection"`
	SpeedError        float64 `json:"speedError"`
	DirectionError    float64 `json:"directionError"`
}

// ModelScore is the per-model rollup used to rank and correct forecasts.
type ModelScore struct {
	ModelID          string    `json:"modelId"`
	RMSESpeed        float64   `json:"rmseSpeed"`
	MAESpeed         float64   `json:"maeSpeed"`
	RMSEDirection    float64   `json:"rmseDirection"`
	MAEDirection     float64   `json:"maeDirection"`
	CorrelationSpeed float64   `json:"correlationSpeed"`
	CorrectionFactor float64   `json:"correctionFactor"`
	EvalCount        int       `json:"evalCount"`
	CompositeScore   float64   `json:"compositeScore"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// PatternRow is a per-local-hour rollup averaged across a date range, backing
// GET /archive/patterns.
type PatternRow struct {
	LocalHour         int      `json:"localHour"`
	AvgSpeed          float64  `json:"avgSpeed"`
	AvgGust           *float64 `json:"avgGust,omitempty"`
	DominantDirection float64  `json:"dominantDirection"`
}
