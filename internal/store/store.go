// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"paper-trader/internal/models"
)

// DataStore defines the interface for per-user trading state persistence.
// The server-side store is authoritative; anything downstream of it is a
// read-through cache. Implementations must be safe for concurrent use,
// but serializing settlements per user is the desk's job, not the
// store's.
type DataStore interface {
	// Balance
	GetBalance(ctx context.Context, userID string) (float64, error)
	SetBalance(ctx context.Context, userID string, amount float64) error

	// Positions
	SavePosition(ctx context.Context, pos *models.Position) error
	GetPosition(ctx context.Context, userID, positionID string) (*models.Position, error)
	GetPositions(ctx context.Context, userID string) ([]models.Position, error)
	UpdatePositionQuantity(ctx context.Context, userID, positionID string, quantity int) error
	DeletePosition(ctx context.Context, userID, positionID string) error

	// Holdings
	GetHolding(ctx context.Context, userID, symbol string) (*models.Holding, error)
	GetHoldings(ctx context.Context, userID string) ([]models.Holding, error)
	SaveHolding(ctx context.Context, holding *models.Holding) error
	DeleteHolding(ctx context.Context, userID, symbol string) error

	// Last-traded price cache: one entry per (user, symbol), overwritten
	// on every observation, no TTL. A zero price means "no entry".
	StoreLastTradingPrice(ctx context.Context, userID, symbol string, price float64) error
	GetLastTradingPrice(ctx context.Context, userID, symbol string) (float64, error)
	ClearLastTradingPrices(ctx context.Context, userID string) error

	// Trade journal
	LogTrade(ctx context.Context, trade *models.Trade) error
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)

	// Lifecycle
	Close() error
}

// TradeFilter represents filters for querying the trade journal.
type TradeFilter struct {
	UserID    string
	Symbol    string
	StartDate time.Time
	EndDate   time.Time
	Side      string
	Limit     int
}
