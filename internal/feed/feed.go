// Package feed provides spot price resolution for NSE indices and
// equities, with a polling distributor for subscribers.
package feed

import (
	"context"
	"sync"
)

// SpotFeed resolves the current spot price for a symbol. Implementations
// always resolve to a usable number: when live data is unavailable they
// fall back to the published constants below.
type SpotFeed interface {
	SpotPrice(ctx context.Context, symbol string) (float64, error)
}

// FallbackSpotPrices are the per-index constants used when the upstream
// feed is unreachable or returns no price.
var FallbackSpotPrices = map[string]float64{
	"NIFTY":       25418.9,
	"BANKNIFTY":   59957.85,
	"SENSEX":      82566.37,
	"NIFTYIT":     19890.45,
	"NIFTYPHARMA": 17340.20,
	"NIFTYAUTO":   9876.55,
	"FINNIFTY":    21234.80,
	"MIDCAP":      12450.30,
}

// defaultFallbackSpot covers symbols with no published constant.
const defaultFallbackSpot = 25418.9

// yahooSymbols maps NSE index names to Yahoo Finance chart symbols.
var yahooSymbols = map[string]string{
	"NIFTY":       "^NSEI",
	"BANKNIFTY":   "^NSEBANK",
	"SENSEX":      "^BSESN",
	"NIFTYIT":     "^CNXIT",
	"NIFTYPHARMA": "^CNXPHARMA",
	"NIFTYAUTO":   "^CNXAUTO",
	"FINNIFTY":    "^CNXINFRA",
	"MIDCAP":      "^CNXM100",
}

// FallbackSpot returns the fallback constant for a symbol.
func FallbackSpot(symbol string) float64 {
	if price, ok := FallbackSpotPrices[symbol]; ok {
		return price
	}
	return defaultFallbackSpot
}

// Symbols returns the index symbols the feed can resolve live.
func Symbols() []string {
	symbols := make([]string, 0, len(yahooSymbols))
	for s := range yahooSymbols {
		symbols = append(symbols, s)
	}
	return symbols
}

// StaticFeed serves prices from a fixed map, for tests and offline use.
type StaticFeed struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewStaticFeed creates a feed serving the given prices. Symbols not in
// the map resolve to their fallback constants.
func NewStaticFeed(prices map[string]float64) *StaticFeed {
	if prices == nil {
		prices = make(map[string]float64)
	}
	return &StaticFeed{prices: prices}
}

// SpotPrice returns the configured price, or the fallback constant.
func (f *StaticFeed) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if price, ok := f.prices[symbol]; ok && price > 0 {
		return price, nil
	}
	return FallbackSpot(symbol), nil
}

// SetPrice updates a symbol's price.
func (f *StaticFeed) SetPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}
