package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func risingCloses(n int, step float64) []float64 {
	out := make([]float64, n)
	px := 100.0
	for i := range out {
		out[i] = px
		px *= 1 + step
	}
	return out
}

func TestComputeIndicatorsShortHistory(t *testing.T) {
	ind := ComputeIndicators([]float64{100, 101, 102})
	assert.Equal(t, Indicators{RSI: 50.0}, ind)

	ind = ComputeIndicators(nil)
	assert.Equal(t, Indicators{RSI: 50.0}, ind)
}

func TestComputeIndicatorsSteadyUptrend(t *testing.T) {
	ind := ComputeIndicators(risingCloses(30, 0.01))

	assert.InDelta(t, math.Pow(1.01, 5)-1, ind.Mom5, 0.0001)
	assert.InDelta(t, math.Pow(1.01, 20)-1, ind.Mom20, 0.0001)
	// Constant daily return has zero dispersion.
	assert.InDelta(t, 0, ind.Volatility, 0.0005)
	// All gains, no losses.
	assert.Equal(t, 100.0, ind.RSI)
	assert.Greater(t, ind.ZScore, 0.0)
}

func TestComputeIndicatorsDowntrendRSI(t *testing.T) {
	closes := risingCloses(30, -0.01)
	ind := ComputeIndicators(closes)

	assert.Equal(t, 0.0, ind.RSI)
	assert.Less(t, ind.Mom20, 0.0)
	assert.Less(t, ind.ZScore, 0.0)
}

func TestComputeIndicatorsFlatSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 50.0
	}
	ind := ComputeIndicators(closes)

	assert.Equal(t, 0.0, ind.Mom5)
	assert.Equal(t, 0.0, ind.Mom20)
	assert.Equal(t, 0.0, ind.Volatility)
	// Zero standard deviation leaves the z-score at neutral.
	assert.Equal(t, 0.0, ind.ZScore)
}

func TestComputeIndicatorsRounding(t *testing.T) {
	closes := risingCloses(40, 0.013)
	ind := ComputeIndicators(closes)

	assert.Equal(t, ind.Mom5, roundTo(ind.Mom5, 4))
	assert.Equal(t, ind.Mom20, roundTo(ind.Mom20, 4))
	assert.Equal(t, ind.ZScore, roundTo(ind.ZScore, 2))
	assert.Equal(t, ind.RSI, roundTo(ind.RSI, 1))
}
