package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestReturnCorrelationShortHistory(t *testing.T) {
	assert.Equal(t, 0.0, ReturnCorrelation(linear(10, 100, 1), linear(30, 100, 1)))
	assert.Equal(t, 0.0, ReturnCorrelation(nil, linear(30, 100, 1)))
}

func TestReturnCorrelationPerfectlyCoupled(t *testing.T) {
	a := []float64{100, 102, 101, 105, 104, 108, 107, 111, 110, 114,
		113, 117, 116, 120, 119, 123, 122, 126, 125, 129, 128, 132}
	b := make([]float64, len(a))
	for i, v := range a {
		b[i] = v * 2
	}
	c := ReturnCorrelation(a, b)
	assert.InDelta(t, 1.0, c, 1e-9)
}

func TestReturnCorrelationInverse(t *testing.T) {
	a := make([]float64, 25)
	b := make([]float64, 25)
	px, qx := 100.0, 100.0
	for i := range a {
		step := 1.0
		if i%2 == 0 {
			step = -1.0
		}
		px += step
		qx -= step
		a[i] = px
		b[i] = qx
	}
	c := ReturnCorrelation(a, b)
	assert.Less(t, c, -0.9)
	assert.GreaterOrEqual(t, c, -1.0)
}

func TestReturnCorrelationConstantSeries(t *testing.T) {
	a := linear(30, 100, 0)
	b := linear(30, 100, 1)
	// Zero-variance returns produce NaN, which collapses to 0.
	assert.Equal(t, 0.0, ReturnCorrelation(a, b))
}
