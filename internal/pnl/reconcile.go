package pnl

import "math"

// EffectivePrice selects the price to use for valuation and settlement.
//
// Priority, strictly in order: the live price when finite and positive,
// then the last-traded price when positive, then the fallback (typically
// the entry price), clamped to 0 when invalid. Callers must not skip
// straight to the fallback while live or last-traded data exists: pricing
// a position against its own entry price masks real gains and losses.
//
// A non-positive or non-finite value means "absent" for the first two
// arguments.
func EffectivePrice(livePrice, lastTradingPrice, fallbackPrice float64) float64 {
	if isValidPrice(livePrice) {
		return livePrice
	}
	if isValidPrice(lastTradingPrice) {
		return lastTradingPrice
	}
	if isValidPrice(fallbackPrice) {
		return fallbackPrice
	}
	return 0
}

func isValidPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
