package market

import "time"

var easternTZ = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Fixed offset fallback when the tz database is unavailable.
		return time.FixedZone("ET", -5*3600)
	}
	return loc
}

// IsOpen reports whether NYSE regular hours (9:30-16:00 ET, Mon-Fri) are
// in effect at t. Holidays are ignored.
func IsOpen(t time.Time) bool {
	et := t.In(easternTZ)
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := float64(et.Hour()) + float64(et.Minute())/60.0
	return h >= 9.5 && h < 16.0
}

// CanTradeNow is the trading-window rule: by default the engine acts on
// daily bars only while the exchange is closed.
func CanTradeNow(tradeAnytime bool, now time.Time) bool {
	return tradeAnytime || !IsOpen(now)
}
