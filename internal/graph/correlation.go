package graph

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ReturnCorrelation computes the Pearson correlation of daily returns
// over the last up-to-60 closes of each series. Returns 0 when either
// history is shorter than 20 bars or fewer than 10 paired returns
// remain. NaN/Inf collapse to 0; the result is clamped to [-1, 1].
func ReturnCorrelation(a, b []float64) float64 {
	if len(a) < 20 || len(b) < 20 {
		return 0
	}

	a = tail(a, 60)
	b = tail(b, 60)
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	a = tail(a, n)
	b = tail(b, n)

	ra := pctReturns(a)
	rb := pctReturns(b)
	if len(ra) < 10 || len(rb) < 10 {
		return 0
	}

	c := stat.Correlation(ra, rb, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	if c > 1 {
		c = 1
	}
	if c < -1 {
		c = -1
	}
	return c
}

func tail(xs []float64, n int) []float64 {
	if len(xs) > n {
		return xs[len(xs)-n:]
	}
	return xs
}

func pctReturns(closes []float64) []float64 {
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		denom := closes[i-1]
		if denom < 1e-9 {
			denom = 1e-9
		}
		out = append(out, (closes[i]-closes[i-1])/denom)
	}
	return out
}
