package circular

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean_WrapAround(t *testing.T) {
	mean := Mean([]float64{350, 10})
	assert.InDelta(t, 0, mean, 1)
}

func TestMean_SixReadingsAroundNorth(t *testing.T) {
	mean := Mean([]float64{350, 5, 15, 355, 10, 0})
	assert.InDelta(t, 0, mean, 1)
}

func TestMean_SingleValue(t *testing.T) {
	assert.InDelta(t, 90, Mean([]float64{90}), 0.001)
}

func TestNormalize(t *testing.T) {
	assert.InDelta(t, 350, Normalize(-10), 0.001)
	assert.InDelta(t, 10, Normalize(370), 0.001)
	assert.InDelta(t, 0, Normalize(360), 0.001)
}

func TestShortestDelta(t *testing.T) {
	assert.InDelta(t, 20, ShortestDelta(10, 350), 0.001)
	assert.InDelta(t, -20, ShortestDelta(350, 10), 0.001)
}

func TestAbsShortestDelta_Antipodal(t *testing.T) {
	assert.InDelta(t, 180, AbsShortestDelta(0, 180), 0.001)
}

func TestResultant_AllIdentical(t *testing.T) {
	r := Resultant([]float64{45, 45, 45})
	assert.InDelta(t, 1, r, 0.0001)
}

func TestResultant_Opposed(t *testing.T) {
	r := Resultant([]float64{0, 180})
	assert.InDelta(t, 0, r, 0.0001)
}

func TestMaxDeviationFromMean_TightCone(t *testing.T) {
	dev := MaxDeviationFromMean([]float64{70, 75, 80, 65})
	assert.LessOrEqual(t, dev, 10.0)
}

func TestSpreadDegrees_MatchesResultant(t *testing.T) {
	r := Resultant([]float64{10, 10, 10, 10, 10, 10})
	assert.InDelta(t, 0, SpreadDegrees(r), 0.5)
}
