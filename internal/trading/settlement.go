// Package trading provides trade settlement calculations and the order
// execution desk.
package trading

import (
	"math"

	"paper-trader/internal/errors"
	"paper-trader/internal/models"
)

// Settlement is the cash and P&L outcome of a single buy or sell.
//
// Cash movement and display P&L are strictly separate figures: the buy
// debit and sell credit come straight from the current price, while PnL
// exists only for reporting and never feeds back into the credit.
type Settlement struct {
	Debit          float64
	Credit         float64
	PnL            float64
	PnLPercent     float64
	InvestedAmount float64
	CurrentValue   float64

	// MarketOpen is the session state at settlement time.
	// UseLastTradingPrice is its negation, surfaced so the caller knows
	// to resolve the price through the last-traded cache before
	// settling an after-hours close.
	MarketOpen          bool
	UseLastTradingPrice bool
}

// CalculateBuy computes the balance debit for a buy. There is no P&L at
// buy time; the full debit becomes the invested amount.
func CalculateBuy(currentPrice float64, quantity, lotSize int, marketOpen bool) Settlement {
	debit := currentPrice * float64(quantity) * float64(lotSize)

	return Settlement{
		Debit:          debit,
		InvestedAmount: debit,
		CurrentValue:   debit,
		MarketOpen:     marketOpen,
	}
}

// CalculateSell computes the balance credit and realized P&L for closing
// quantity lots opened at entryPrice.
//
// The credit is always currentPrice * quantity * lotSize. Deriving it as
// entry value plus P&L would be algebraically equal only before rounding;
// computing it directly keeps the cash movement exact.
func CalculateSell(entryPrice, currentPrice float64, quantity int, side models.OrderSide, lotSize int, marketOpen bool) Settlement {
	units := float64(quantity) * float64(lotSize)
	invested := entryPrice * units
	current := currentPrice * units

	var pnl float64
	if side == models.OrderSideSell {
		pnl = (entryPrice - currentPrice) * units
	} else {
		pnl = (currentPrice - entryPrice) * units
	}

	pnlPercent := 0.0
	if invested > 0 {
		pnlPercent = pnl / invested * 100
	}

	return Settlement{
		Credit:              current,
		PnL:                 round2(pnl),
		PnLPercent:          round2(pnlPercent),
		InvestedAmount:      invested,
		CurrentValue:        current,
		MarketOpen:          marketOpen,
		UseLastTradingPrice: !marketOpen,
	}
}

// CloseInput is one position's pricing state for a bulk close.
type CloseInput struct {
	ID           string
	Symbol       string
	EntryPrice   float64
	CurrentPrice float64
	Side         models.OrderSide
	Quantity     int
	LotSize      int
}

// CloseBreakdown is one position's outcome within a bulk close.
type CloseBreakdown struct {
	ID     string
	Symbol string
	Credit float64
	PnL    float64
}

// CloseAllResult aggregates a bulk close.
type CloseAllResult struct {
	TotalCredit float64
	TotalPnL    float64
	Breakdown   []CloseBreakdown
}

// CalculateCloseAll settles every position independently and sums the
// results. Positions do not interact: the totals are order-independent
// sums of the per-position settlements.
func CalculateCloseAll(positions []CloseInput, marketOpen bool) CloseAllResult {
	result := CloseAllResult{
		Breakdown: make([]CloseBreakdown, 0, len(positions)),
	}

	for _, pos := range positions {
		lot := pos.LotSize
		if lot <= 0 {
			lot = 1
		}
		s := CalculateSell(pos.EntryPrice, pos.CurrentPrice, pos.Quantity, pos.Side, lot, marketOpen)

		result.TotalCredit += s.Credit
		result.TotalPnL += s.PnL
		result.Breakdown = append(result.Breakdown, CloseBreakdown{
			ID:     pos.ID,
			Symbol: pos.Symbol,
			Credit: s.Credit,
			PnL:    s.PnL,
		})
	}

	result.TotalCredit = round2(result.TotalCredit)
	result.TotalPnL = round2(result.TotalPnL)
	return result
}

// CheckFunds validates that available covers required before any state
// mutation. A nil return means the debit may proceed; otherwise the
// typed error carries the exact shortfall for the user.
func CheckFunds(available, required float64) *errors.InsufficientFundsError {
	if available >= required {
		return nil
	}
	return errors.NewInsufficientFundsError(required, available)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
