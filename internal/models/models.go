// Package models provides domain models for the paper trading application.
package models

import (
	"time"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// InstrumentType represents the kind of instrument a position holds.
type InstrumentType string

const (
	InstrumentEquity InstrumentType = "EQUITY"
	InstrumentCall   InstrumentType = "CE"
	InstrumentPut    InstrumentType = "PE"
)

// IsOption returns true for call and put instruments.
func (t InstrumentType) IsOption() bool {
	return t == InstrumentCall || t == InstrumentPut
}

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen   MarketStatus = "OPEN"
	MarketClosed MarketStatus = "CLOSED"
)

// Quote represents a spot price snapshot from the feed.
type Quote struct {
	Symbol    string
	SpotPrice float64
	Timestamp time.Time
}

// Balance represents a user's virtual cash balance.
type Balance struct {
	UserID        string
	AvailableCash float64
	UpdatedAt     time.Time
}

// LastTradingPrice is the most recent price observed for a symbol while
// the market was open, persisted per user so closures after hours settle
// against a real traded price.
type LastTradingPrice struct {
	UserID     string
	Symbol     string
	Price      float64
	ObservedAt time.Time
}
