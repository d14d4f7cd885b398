package wind

import "github.com/jorikfon/JollyKite-sub000/internal/circular"

// StabilityConfig carries the notification engine's configurable knobs. The
// spec leaves SampleCount and MinSpeedKnots as implementer choices (Design
// Notes, Open Questions); MaxDirectionDeviationDeg and MaxGustDeltaKnots are
// the two remaining worked thresholds.
type StabilityConfig struct {
	SampleCount             int
	MinSpeedKnots           float64
	MaxDirectionDeviationDeg float64
	MaxGustDeltaKnots       float64
	MinTrendDelta           float64
}

// DefaultStabilityConfig resolves the open questions at 4 samples / 8 knots,
// per the spec's own worked rationale, with the two fixed thresholds.
var DefaultStabilityConfig = StabilityConfig{
	SampleCount:              4,
	MinSpeedKnots:            8,
	MaxDirectionDeviationDeg: 30,
	MaxGustDeltaKnots:        7,
	MinTrendDelta:            -1,
}

// StabilityResult reports whether the predicate held and, if not, why — the
// reason is logged verbatim by the caller (spec.md §8 scenario 4).
type StabilityResult struct {
	Holds  bool
	Reason string
}

// EvaluateStability applies the four-condition stability predicate to the
// most recent measurements for the primary station. speeds, directions, and
// gusts must all be newest-first; fewer than cfg.SampleCount speeds or
// directions fails closed (no notification). Fewer than cfg.SampleCount
// gusts skips the gust condition instead of failing.
func EvaluateStability(speedsKnots, directionsDeg, gustsKnots []float64, cfg StabilityConfig) StabilityResult {
	if len(speedsKnots) < cfg.SampleCount || len(directionsDeg) < cfg.SampleCount {
		return StabilityResult{Holds: false, Reason: "insufficient samples"}
	}

	speeds := speedsKnots[:cfg.SampleCount]
	directions := directionsDeg[:cfg.SampleCount]

	for _, s := range speeds {
		if s < cfg.MinSpeedKnots {
			return StabilityResult{Holds: false, Reason: "wind dropped below threshold"}
		}
	}

	deviation := circular.MaxDeviationFromMean(directions)
	if deviation > cfg.MaxDirectionDeviationDeg {
		return StabilityResult{Holds: false, Reason: "direction too variable"}
	}

	if len(gustsKnots) >= cfg.SampleCount {
		gusts := gustsKnots[:cfg.SampleCount]
		maxGust := gusts[0]
		for _, g := range gusts[1:] {
			if g > maxGust {
				maxGust = g
			}
		}
		avgSpeed := mean(speeds)
		if maxGust-avgSpeed > cfg.MaxGustDeltaKnots {
			return StabilityResult{Holds: false, Reason: "gusts too critical"}
		}
	}

	half := cfg.SampleCount / 2
	// speeds is newest-first: the "second half" chronologically is the
	// earlier readings (indices [half:]), the "first half" is the most
	// recent (indices [:half]) — matches spec.md's
	// mean(second_half) - mean(first_half) reading where "first" means
	// earliest in the window.
	recent := mean(speeds[:half])
	older := mean(speeds[half:])
	if recent-older < cfg.MinTrendDelta {
		return StabilityResult{Holds: false, Reason: "wind sharply decreasing"}
	}

	return StabilityResult{Holds: true}
}
