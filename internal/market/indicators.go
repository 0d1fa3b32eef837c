package market

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// Indicators summarizes a close-price history.
type Indicators struct {
	Mom5       float64 `json:"mom5"`
	Mom20      float64 `json:"mom20"`
	Volatility float64 `json:"volatility"`
	ZScore     float64 `json:"zscore"`
	RSI        float64 `json:"rsi"`
}

// ComputeIndicators derives momentum, volatility, z-score, and RSI from
// closes (most recent last). Histories shorter than 21 bars yield the
// neutral defaults.
func ComputeIndicators(closes []float64) Indicators {
	if len(closes) < 21 {
		return Indicators{RSI: 50.0}
	}

	n := len(closes)
	mom5 := closes[n-1]/closes[n-6] - 1.0
	mom20 := closes[n-1]/closes[n-21] - 1.0

	returns := make([]float64, n-1)
	for i := 1; i < n; i++ {
		denom := closes[i-1]
		if denom < 1e-9 {
			denom = 1e-9
		}
		returns[i-1] = (closes[i] - closes[i-1]) / denom
	}

	var volatility float64
	if len(returns) >= 20 {
		volatility = stat.PopStdDev(returns[len(returns)-20:], nil)
	}

	// talib SMA places the 20-bar mean of the tail in the last slot.
	sma := talib.Sma(closes, 20)
	ma20 := sma[n-1]
	sd20 := stat.PopStdDev(closes[n-20:], nil)
	var zscore float64
	if sd20 > 0 {
		zscore = (closes[n-1] - ma20) / (sd20 + 1e-9)
	}

	// Simple-average RSI over the last 14 returns. This deliberately
	// differs from Wilder smoothing; the variant is locked.
	tail := returns[len(returns)-14:]
	var avgGain, avgLoss float64
	for _, r := range tail {
		if r > 0 {
			avgGain += r
		} else {
			avgLoss += -r
		}
	}
	avgGain /= float64(len(tail))
	avgLoss /= float64(len(tail))
	rs := avgGain / (avgLoss + 1e-9)
	rsi := 100.0 - 100.0/(1.0+rs)

	return Indicators{
		Mom5:       roundTo(mom5, 4),
		Mom20:      roundTo(mom20, 4),
		Volatility: roundTo(volatility, 4),
		ZScore:     roundTo(zscore, 2),
		RSI:        roundTo(rsi, 1),
	}
}

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
