package graph

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// HeuristicChannels derives a channel set for an investible-bellwether
// pair from the return correlation c. SPY/QQQ act as broad-market
// proxies and additionally attract a liquidity coupling at a lower
// correlation bar.
func HeuristicChannels(c float64, bellwether string) map[string]float64 {
	channels := map[string]float64{}
	mag := math.Abs(c)
	if mag >= 0.25 {
		s := math.Min(1.0, 0.35+0.75*mag)
		if c > 0 {
			channels["correlates"] = s
		} else {
			channels["inverse_correlates"] = s
		}
	}
	if (bellwether == "SPY" || bellwether == "QQQ") && mag >= 0.15 {
		channels["liquidity_coupled"] = math.Min(1.0, 0.25+0.8*mag)
	}
	return channels
}

// OptionMeta is the monitored state of one option contract node.
// Rows live in option_contracts; monitoring registration is external.
type OptionMeta struct {
	NodeID     string
	Underlying string
	OptType    string // "call" or "put"
	Strike     float64
	Expiration string
	IV         float64
	Delta      float64
	Vega       float64
	IVHistory  []float64
}

// IVCorrelation computes the Pearson correlation of paired implied
// volatility observations over the last up-to-30 values. NaN/Inf
// collapse to 0; the result is clamped to [-1, 1].
func IVCorrelation(a, b []float64) float64 {
	a = tail(a, 30)
	b = tail(b, 30)
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 5 {
		return 0
	}
	a = tail(a, n)
	b = tail(b, n)

	c := stat.Correlation(a, b, nil)
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

// DeltaAlignment maps a pair of deltas onto [0,1]: 1 when the deltas
// point the same way at full magnitude, 0 when fully opposed.
func DeltaAlignment(da, db float64) float64 {
	v := (da*db + 1) / 2
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

// VegaSimilarity is the ratio of the smaller to the larger absolute
// vega, floored at 0.01. Two near-zero vegas count as similar (0.5).
func VegaSimilarity(va, vb float64) float64 {
	a, b := math.Abs(va), math.Abs(vb)
	if a < 1e-6 && b < 1e-6 {
		return 0.5
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi < 0.01 {
		hi = 0.01
	}
	return lo / hi
}

// SpreadScore classifies an option pair into a spread shape and scores
// the structural fit. Pairs on different underlyings never form a
// spread here.
func SpreadScore(a, b OptionMeta) (string, float64) {
	if a.Underlying != b.Underlying {
		return "none", 0
	}
	sameType := a.OptType == b.OptType
	sameExp := a.Expiration == b.Expiration
	sameStrike := math.Abs(a.Strike-b.Strike) < 1e-9

	switch {
	case sameType && sameExp && !sameStrike:
		return "vertical", 0.90
	case !sameType && sameExp && !sameStrike:
		return "collar", 0.85
	case sameType && !sameExp && sameStrike:
		return "horizontal", 0.75
	case sameType && !sameExp && !sameStrike:
		return "diagonal", 0.60
	default:
		return "none", 0
	}
}

// OptionBellwetherChannels derives channels for an option node against
// a bellwether, given the return correlation c of the option's
// underlying with the bellwether.
func OptionBellwetherChannels(opt OptionMeta, bellwether string, c float64) map[string]float64 {
	channels := HeuristicChannels(c, bellwether)
	mag := math.Abs(c)

	// Volatility instruments couple through vega rather than price.
	if (bellwether == "^VIX" || bellwether == "VXX") && math.Abs(opt.Vega) >= 0.05 {
		channels["vol_regime_coupled"] = math.Min(1.0, 0.40+4.0*math.Abs(opt.Vega))
	}
	// Puts against equity bellwethers read as hedges when returns oppose.
	if opt.OptType == "put" && opt.Delta < 0 && c < -0.15 {
		channels["options_hedges"] = math.Min(1.0, 0.30+0.8*mag)
	}
	if math.Abs(opt.Delta) >= 0.5 && mag >= 0.15 {
		channels["delta_flow"] = math.Min(1.0, 0.25+0.7*mag)
	}
	return channels
}

// OptionPairChannels derives channels for a pair of monitored option
// nodes from IV correlation, delta alignment, vega similarity, and
// spread shape.
func OptionPairChannels(a, b OptionMeta) map[string]float64 {
	channels := map[string]float64{}

	ivc := IVCorrelation(a.IVHistory, b.IVHistory)
	mag := math.Abs(ivc)
	if mag >= 0.25 {
		s := math.Min(1.0, 0.35+0.75*mag)
		if ivc > 0 {
			channels["iv_correlates"] = s
		} else {
			channels["iv_inverse"] = s
		}
	}

	align := DeltaAlignment(a.Delta, b.Delta)
	if align >= 0.75 {
		channels["delta_flow"] = align
	}
	if align <= 0.25 {
		if a.Underlying != b.Underlying {
			channels["cross_underlying_hedge"] = 1 - align
		} else {
			channels["options_hedges"] = 1 - align
		}
	}

	if vs := VegaSimilarity(a.Vega, b.Vega); vs >= 0.6 {
		channels["vega_exposure"] = vs
	}

	if shape, score := SpreadScore(a, b); shape != "none" {
		if shape == "collar" {
			channels["collar_strategy"] = score
		} else {
			channels["spread_strategy"] = score
		}
	}
	return channels
}
