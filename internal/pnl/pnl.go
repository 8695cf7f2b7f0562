// Package pnl computes profit-and-loss figures for equity and options
// positions. All functions are total: invalid inputs degrade to zero
// rather than erroring, because these computations sit on the hot path
// of balance mutation and portfolio rendering.
package pnl

import (
	"math"

	"paper-trader/internal/models"
)

// PnL returns the profit or loss for a position, rounded to 2 decimals.
//
// A BUY position profits when the price rises; a SELL (written) position
// profits when it falls. Quantity is in lots, converted to underlying
// units by lotSize. Returns 0 when any input is outside the valid domain:
// no P&L is claimed without real settlement data.
func PnL(entryPrice, currentPrice float64, side models.OrderSide, quantity, lotSize int) float64 {
	if entryPrice <= 0 || quantity <= 0 || lotSize <= 0 {
		return 0
	}
	if currentPrice <= 0 {
		return 0
	}

	units := float64(quantity) * float64(lotSize)
	var pnl float64
	if side == models.OrderSideSell {
		pnl = (entryPrice - currentPrice) * units
	} else {
		pnl = (currentPrice - entryPrice) * units
	}

	return round2(pnl)
}

// PnLPercent returns the per-unit gain or loss as a percentage of the
// entry price, with the same sign convention as PnL.
func PnLPercent(entryPrice, currentPrice float64, side models.OrderSide) float64 {
	if entryPrice <= 0 || currentPrice <= 0 {
		return 0
	}

	var pct float64
	if side == models.OrderSideSell {
		pct = (entryPrice - currentPrice) / entryPrice * 100
	} else {
		pct = (currentPrice - entryPrice) / entryPrice * 100
	}

	return round2(pct)
}

// AveragePrice returns the quantity-weighted average entry price after
// adding newQty units at newPrice to an existing lot.
func AveragePrice(existingQty int, existingPrice float64, newQty int, newPrice float64) float64 {
	totalQty := existingQty + newQty
	if totalQty == 0 {
		return newPrice
	}
	return (float64(existingQty)*existingPrice + float64(newQty)*newPrice) / float64(totalQty)
}

// Snapshot is one position's pricing state for aggregate metrics.
type Snapshot struct {
	EntryPrice   float64
	CurrentPrice float64
	Side         models.OrderSide
	Quantity     int
	LotSize      int
}

// Metrics are aggregate portfolio figures, all monetary values rounded
// to 2 decimals.
type Metrics struct {
	TotalInvested     float64
	TotalCurrentValue float64
	TotalPnL          float64
	TotalPnLPercent   float64
	TotalProfit       float64
	TotalLoss         float64
	ProfitCount       int
	LossCount         int
}

// Portfolio aggregates invested value, current value and P&L across
// positions. Profit and loss totals accumulate separately so the caller
// can report win/loss breakdowns; net P&L is their difference.
func Portfolio(positions []Snapshot) Metrics {
	var m Metrics

	for _, pos := range positions {
		lot := pos.LotSize
		if lot <= 0 {
			lot = 1
		}
		units := float64(pos.Quantity) * float64(lot)

		m.TotalInvested += pos.EntryPrice * units
		m.TotalCurrentValue += pos.CurrentPrice * units

		p := PnL(pos.EntryPrice, pos.CurrentPrice, pos.Side, pos.Quantity, lot)
		if p >= 0 {
			m.TotalProfit += p
			m.ProfitCount++
		} else {
			m.TotalLoss += -p
			m.LossCount++
		}
	}

	totalPnL := m.TotalProfit - m.TotalLoss
	if m.TotalInvested > 0 {
		m.TotalPnLPercent = round2(totalPnL / m.TotalInvested * 100)
	}

	m.TotalInvested = round2(m.TotalInvested)
	m.TotalCurrentValue = round2(m.TotalCurrentValue)
	m.TotalPnL = round2(totalPnL)
	m.TotalProfit = round2(m.TotalProfit)
	m.TotalLoss = round2(m.TotalLoss)

	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
