// Package circular centralizes circular-statistics helpers over compass
// directions. Both the Aggregation Worker and the Notification Engine's
// stability predicate call into this package rather than each rolling
// their own arithmetic mean of headings — a wrap-around bug the design
// notes call out explicitly (350° and 10° must average to 0°, not 180°).
package circular

import "math"

// Mean returns the circular mean, in degrees [0, 360), of a set of compass
// directions. Each reading is converted to a unit vector, the vectors are
// summed, and the resultant heading is taken via atan2. Panics-free on an
// empty slice: callers must check len(directions) > 0 first.
func Mean(directionsDeg []float64) float64 {
	var sumSin, sumCos float64
	for _, d := range directionsDeg {
		r := d * math.Pi / 180
		sumSin += math.Sin(r)
		sumCos += math.Cos(r)
	}
	mean := math.Atan2(sumSin, sumCos) * 180 / math.Pi
	return Normalize(mean)
}

// Normalize folds a degree value (possibly negative or >= 360) into [0, 360).
func Normalize(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// ShortestDelta returns the signed shortest angular difference a-b,
// in [-180, 180).
func ShortestDelta(a, b float64) float64 {
	d := math.Mod(a-b+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// AbsShortestDelta returns the unsigned shortest angular distance between
// two directions, in [0, 180] — used for direction_error in scoring.
func AbsShortestDelta(a, b float64) float64 {
	d := math.Abs(ShortestDelta(a, b))
	return d
}

// Resultant computes the mean resultant length R in [0, 1] of a set of
// directions: R=1 means all directions identical, R=0 means uniformly
// spread. Used by the direction-stability derivation (spec.md §4.8).
func Resultant(directionsDeg []float64) float64 {
	if len(directionsDeg) == 0 {
		return 0
	}
	var sumSin, sumCos float64
	for _, d := range directionsDeg {
		r := d * math.Pi / 180
		sumSin += math.Sin(r)
		sumCos += math.Cos(r)
	}
	n := float64(len(directionsDeg))
	meanSin := sumSin / n
	meanCos := sumCos / n
	r := math.Sqrt(meanSin*meanSin + meanCos*meanCos)
	if r > 1 {
		r = 1
	}
	return r
}

// MaxDeviationFromMean returns the largest absolute angular deviation, in
// degrees, of any reading from the circular mean of the set — used by the
// stability predicate's "directional variance" check (spec.md §4.9).
func MaxDeviationFromMean(directionsDeg []float64) float64 {
	if len(directionsDeg) == 0 {
		return 0
	}
	mean := Mean(directionsDeg)
	var max float64
	for _, d := range directionsDeg {
		dev := AbsShortestDelta(d, mean)
		if dev > max {
			max = dev
		}
	}
	return max
}

// SpreadDegrees converts a resultant length R into an angular spread in
// degrees: acos(min(R,1)) — the "changing/variable/stable" thresholds in
// spec.md §4.8 are evaluated against this value.
func SpreadDegrees(r float64) float64 {
	if r > 1 {
		r = 1
	}
	if r < -1 {
		r = -1
	}
	return math.Acos(r) * 180 / math.Pi
}
