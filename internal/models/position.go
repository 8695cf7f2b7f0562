package models

import "time"

// Position represents an open trade, equity or option.
// Quantity is in lots; LotSize converts lots to underlying units
// (1 for equity).
type Position struct {
	ID         string
	UserID     string
	Instrument InstrumentType
	Side       OrderSide
	Symbol     string
	Strike     float64 // options only, 0 for equity
	EntryPrice float64
	Quantity   int
	LotSize    int
	OpenedAt   time.Time
}

// Units returns the number of underlying units the position controls.
func (p *Position) Units() float64 {
	return float64(p.Quantity) * float64(p.LotSize)
}

// InvestedValue returns the cash originally committed to the position.
func (p *Position) InvestedValue() float64 {
	return p.EntryPrice * p.Units()
}

// Holding represents an aggregated long equity holding. AveragePrice is
// the quantity-weighted mean of all buy fills not yet sold.
type Holding struct {
	UserID       string
	Symbol       string
	Quantity     int
	AveragePrice float64
	UpdatedAt    time.Time
}

// InvestedValue returns the cash committed to the holding.
func (h *Holding) InvestedValue() float64 {
	return h.AveragePrice * float64(h.Quantity)
}

// Trade represents a settled trade recorded in the journal.
type Trade struct {
	ID         string    `csv:"id"`
	UserID     string    `csv:"user_id"`
	Timestamp  time.Time `csv:"timestamp"`
	Symbol     string    `csv:"symbol"`
	Instrument string    `csv:"instrument"`
	Side       string    `csv:"side"`
	Quantity   int       `csv:"quantity"`
	LotSize    int       `csv:"lot_size"`
	EntryPrice float64   `csv:"entry_price"`
	ExitPrice  float64   `csv:"exit_price"`
	PnL        float64   `csv:"pnl"`
	PnLPercent float64   `csv:"pnl_percent"`
}
