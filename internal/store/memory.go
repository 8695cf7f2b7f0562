package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"paper-trader/internal/errors"
	"paper-trader/internal/models"
)

// MemoryStore implements DataStore with in-process maps. It backs tests
// and the default development mode; state does not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	balances  map[string]float64
	positions map[string]map[string]*models.Position // userID -> positionID
	holdings  map[string]map[string]*models.Holding  // userID -> symbol
	ltp       map[string]map[string]float64          // userID -> symbol
	trades    []models.Trade
}

// NewMemoryStore creates a new in-memory data store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances:  make(map[string]float64),
		positions: make(map[string]map[string]*models.Position),
		holdings:  make(map[string]map[string]*models.Holding),
		ltp:       make(map[string]map[string]float64),
	}
}

// GetBalance returns the user's available cash.
func (m *MemoryStore) GetBalance(ctx context.Context, userID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cash, ok := m.balances[userID]
	if !ok {
		return 0, errors.ErrUserNotFound
	}
	return cash, nil
}

// SetBalance writes the user's available cash.
func (m *MemoryStore) SetBalance(ctx context.Context, userID string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = amount
	return nil
}

// SavePosition inserts or replaces a position.
func (m *MemoryStore) SavePosition(ctx context.Context, pos *models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userPositions, ok := m.positions[pos.UserID]
	if !ok {
		userPositions = make(map[string]*models.Position)
		m.positions[pos.UserID] = userPositions
	}
	cp := *pos
	userPositions[pos.ID] = &cp
	return nil
}

// GetPosition returns a single position by ID.
func (m *MemoryStore) GetPosition(ctx context.Context, userID, positionID string) (*models.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[userID][positionID]
	if !ok {
		return nil, errors.ErrPositionNotFound
	}
	cp := *pos
	return &cp, nil
}

// GetPositions returns all open positions for a user, oldest first.
func (m *MemoryStore) GetPositions(ctx context.Context, userID string) ([]models.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	positions := make([]models.Position, 0, len(m.positions[userID]))
	for _, pos := range m.positions[userID] {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].OpenedAt.Before(positions[j].OpenedAt)
	})
	return positions, nil
}

// UpdatePositionQuantity reduces a position's remaining quantity.
func (m *MemoryStore) UpdatePositionQuantity(ctx context.Context, userID, positionID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[userID][positionID]
	if !ok {
		return errors.ErrPositionNotFound
	}
	pos.Quantity = quantity
	return nil
}

// DeletePosition removes a closed position.
func (m *MemoryStore) DeletePosition(ctx context.Context, userID, positionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions[userID], positionID)
	return nil
}

// GetHolding returns a user's holding for a symbol.
func (m *MemoryStore) GetHolding(ctx context.Context, userID, symbol string) (*models.Holding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.holdings[userID][symbol]
	if !ok {
		return nil, errors.ErrHoldingNotFound
	}
	cp := *h
	return &cp, nil
}

// GetHoldings returns all of a user's equity holdings.
func (m *MemoryStore) GetHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	holdings := make([]models.Holding, 0, len(m.holdings[userID]))
	for _, h := range m.holdings[userID] {
		holdings = append(holdings, *h)
	}
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Symbol < holdings[j].Symbol
	})
	return holdings, nil
}

// SaveHolding inserts or updates a holding.
func (m *MemoryStore) SaveHolding(ctx context.Context, holding *models.Holding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userHoldings, ok := m.holdings[holding.UserID]
	if !ok {
		userHoldings = make(map[string]*models.Holding)
		m.holdings[holding.UserID] = userHoldings
	}
	cp := *holding
	cp.UpdatedAt = time.Now()
	userHoldings[holding.Symbol] = &cp
	return nil
}

// DeleteHolding removes a fully sold holding.
func (m *MemoryStore) DeleteHolding(ctx context.Context, userID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holdings[userID], symbol)
	return nil
}

// StoreLastTradingPrice overwrites the cached price for (user, symbol).
func (m *MemoryStore) StoreLastTradingPrice(ctx context.Context, userID, symbol string, price float64) error {
	if userID == "" || symbol == "" || price <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prices, ok := m.ltp[userID]
	if !ok {
		prices = make(map[string]float64)
		m.ltp[userID] = prices
	}
	prices[symbol] = price
	return nil
}

// GetLastTradingPrice returns the cached price, or 0 when none exists.
func (m *MemoryStore) GetLastTradingPrice(ctx context.Context, userID, symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ltp[userID][symbol], nil
}

// ClearLastTradingPrices removes all cached prices for a user.
func (m *MemoryStore) ClearLastTradingPrices(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ltp, userID)
	return nil
}

// LogTrade records a settled trade in the journal.
func (m *MemoryStore) LogTrade(ctx context.Context, trade *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, *trade)
	return nil
}

// GetTrades returns journal entries matching the filter, newest first.
func (m *MemoryStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var trades []models.Trade
	for _, t := range m.trades {
		if filter.UserID != "" && t.UserID != filter.UserID {
			continue
		}
		if filter.Symbol != "" && t.Symbol != filter.Symbol {
			continue
		}
		if filter.Side != "" && t.Side != filter.Side {
			continue
		}
		if !filter.StartDate.IsZero() && t.Timestamp.Before(filter.StartDate) {
			continue
		}
		if !filter.EndDate.IsZero() && t.Timestamp.After(filter.EndDate) {
			continue
		}
		trades = append(trades, t)
	}
	sort.Slice(trades, func(i, j int) bool {
		return trades[i].Timestamp.After(trades[j].Timestamp)
	})
	if filter.Limit > 0 && len(trades) > filter.Limit {
		trades = trades[:filter.Limit]
	}
	return trades, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements DataStore
var _ DataStore = (*MemoryStore)(nil)
