package market

// Signals are normalized market-regime readings in [0,1], each starting
// from neutral 0.5 with linear bellwether contributions. A missing
// bellwether contributes 0.
type Signals struct {
	RiskOff   float64 `json:"risk_off"`
	RatesUp   float64 `json:"rates_up"`
	OilShock  float64 `json:"oil_shock"`
	SemiPulse float64 `json:"semi_pulse"`
}

// ComputeSignals derives regime signals from bellwether daily changes.
func ComputeSignals(prices map[string]Quote) Signals {
	ch := func(sym string) float64 {
		if q, ok := prices[sym]; ok {
			return q.ChangePct
		}
		return 0.0
	}

	vix := ch("^VIX")
	spy := ch("SPY")
	qqq := ch("QQQ")
	tlt := ch("TLT")
	uup := ch("UUP")
	tnx := ch("^TNX")
	oil := ch("CL=F")
	tsm := ch("TSM")

	riskOff := clamp01(0.50 + 0.06*vix + 0.05*uup - 0.05*spy - 0.03*qqq + 0.03*tlt)
	ratesUp := clamp01(0.50 + 0.10*tnx - 0.03*tlt)
	oilShock := clamp01(0.50 + 0.06*oil)
	semiPulse := clamp01(0.50 + 0.06*tsm + 0.03*qqq)

	return Signals{
		RiskOff:   roundTo(riskOff, 3),
		RatesUp:   roundTo(ratesUp, 3),
		OilShock:  roundTo(oilShock, 3),
		SemiPulse: roundTo(semiPulse, 3),
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
