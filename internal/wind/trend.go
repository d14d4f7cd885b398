// Package wind holds the pure derivation functions that sit between raw
// measurements and anything a human or a notification decision looks at:
// speed trend, direction stability, and the offshore/onshore safety label.
// None of these touch storage or the network — every function here takes
// plain slices/floats and returns a classification, which is what makes them
// cheap to exercise exhaustively in tests.
package wind

import "github.com/jorikfon/JollyKite-sub000/internal/circular"

// Trend is the speed-trend classification over two adjacent sample windows.
type Trend string

const (
	TrendInsufficientData Trend = "insufficient_data"
	TrendDecreasingStrong Trend = "decreasing_strong"
	TrendDecreasing       Trend = "decreasing"
	TrendStable           Trend = "stable"
	TrendIncreasing       Trend = "increasing"
	TrendIncreasingStrong Trend = "increasing_strong"
)

// TrendConfig carries the percentage-delta thresholds that separate a
// "stable" reading from "increasing"/"decreasing", and those from their
// "_strong" variants, plus the minimum sample count each half-window needs
// before a trend is meaningful at all.
type TrendConfig struct {
	StableBandPct float64
	StrongPct     float64
	MinSamples    int
}

// DefaultTrendConfig matches the worked thresholds: under 5% change is
// stable, 5-15% is a plain trend, above 15% is a strong one; each half of
// the comparison window needs at least 3 samples.
var DefaultTrendConfig = TrendConfig{StableBandPct: 5, StrongPct: 15, MinSamples: 3}

// mean returns the arithmetic mean of a non-empty slice, 0 for an empty one.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// ClassifyTrend compares the mean of the current window against the mean of
// the previous window and classifies the percentage change. Either window
// having fewer than cfg.MinSamples readings yields TrendInsufficientData —
// the raw thresholds are meaningless over too few points.
func ClassifyTrend(previousWindow, currentWindow []float64, cfg TrendConfig) Trend {
	if len(previousWindow) < cfg.MinSamples || len(currentWindow) < cfg.MinSamples {
		return TrendInsufficientData
	}

	prev := mean(previousWindow)
	cur := mean(currentWindow)

	if prev == 0 {
		if cur == 0 {
			return TrendStable
		}
		return TrendIncreasingStrong
	}

	deltaPct := (cur - prev) / prev * 100

	switch {
	case deltaPct > cfg.StrongPct:
		return TrendIncreasingStrong
	case deltaPct >= cfg.StableBandPct:
		return TrendIncreasing
	case deltaPct < -cfg.StrongPct:
		return TrendDecreasingStrong
	case deltaPct <= -cfg.StableBandPct:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// SpeedTrend classifies the speed trend over the primary station's last 12
// measurements, newest first: the current window is speeds[0:6], the
// previous window is speeds[6:12]. Fewer than 12 readings still works —
// whatever falls past the slice bounds is simply a shorter window, subject
// to the same MinSamples floor as ClassifyTrend.
func SpeedTrend(speedsNewestFirst []float64, cfg TrendConfig) Trend {
	n := len(speedsNewestFirst)
	curEnd := 6
	if curEnd > n {
		curEnd = n
	}
	prevEnd := 12
	if prevEnd > n {
		prevEnd = n
	}
	return ClassifyTrend(speedsNewestFirst[curEnd:prevEnd], speedsNewestFirst[0:curEnd], cfg)
}

// DirectionStability classifies how settled the wind direction is.
type DirectionStability string

const (
	DirectionStable    DirectionStability = "stable"
	DirectionVariable  DirectionStability = "variable"
	DirectionChanging  DirectionStability = "changing"
)

// DirectionStabilityConfig carries the angular-spread thresholds (in degrees)
// separating stable/variable/changing, per spec.md §4.8's 15°/30° example.
type DirectionStabilityConfig struct {
	StableMaxSpreadDeg   float64
	VariableMaxSpreadDeg float64
}

// DefaultDirectionStabilityConfig matches spec.md §4.8's worked example.
var DefaultDirectionStabilityConfig = DirectionStabilityConfig{
	StableMaxSpreadDeg:   15,
	VariableMaxSpreadDeg: 30,
}

// ClassifyDirectionStability derives a stability label from a window of
// compass directions using the circular resultant length converted to an
// angular spread — never an arithmetic mean/variance over the raw degrees.
func ClassifyDirectionStability(directionsDeg []float64, cfg DirectionStabilityConfig) DirectionStability {
	if len(directionsDeg) == 0 {
		return DirectionStable
	}
	r := circular.Resultant(directionsDeg)
	spread := circular.SpreadDegrees(r)

	switch {
	case spread < cfg.StableMaxSpreadDeg:
		return DirectionStable
	case spread < cfg.VariableMaxSpreadDeg:
		return DirectionVariable
	default:
		return DirectionChanging
	}
}
