package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"paper-trader/internal/errors"
	"paper-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Virtual cash balance per user
	CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT PRIMARY KEY,
		available_cash REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Open positions (equity and options)
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		instrument TEXT NOT NULL,
		side TEXT NOT NULL,
		symbol TEXT NOT NULL,
		strike REAL DEFAULT 0,
		entry_price REAL NOT NULL,
		quantity INTEGER NOT NULL,
		lot_size INTEGER NOT NULL,
		opened_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, id)
	);

	-- Aggregated equity holdings
	CREATE TABLE IF NOT EXISTS holdings (
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		average_price REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, symbol)
	);

	-- Last price observed per (user, symbol) while the market was open
	CREATE TABLE IF NOT EXISTS last_trading_prices (
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		price REAL NOT NULL,
		observed_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, symbol)
	);

	-- Settled trades journal
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		instrument TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		lot_size INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL,
		pnl REAL,
		pnl_percent REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_positions_user ON positions(user_id);
	CREATE INDEX IF NOT EXISTS idx_holdings_user ON holdings(user_id);
	CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetBalance returns the user's available cash, or ErrUserNotFound when
// no balance row exists yet.
func (s *SQLiteStore) GetBalance(ctx context.Context, userID string) (float64, error) {
	var cash float64
	err := s.db.QueryRowContext(ctx,
		`SELECT available_cash FROM balances WHERE user_id = ?`, userID).Scan(&cash)
	if err == sql.ErrNoRows {
		return 0, errors.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return cash, nil
}

// SetBalance writes the user's available cash.
func (s *SQLiteStore) SetBalance(ctx context.Context, userID string, amount float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO balances (user_id, available_cash, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			available_cash = excluded.available_cash,
			updated_at = CURRENT_TIMESTAMP`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// SavePosition inserts or replaces a position.
func (s *SQLiteStore) SavePosition(ctx context.Context, pos *models.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO positions
		(id, user_id, instrument, side, symbol, strike, entry_price, quantity, lot_size, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.ID, pos.UserID, string(pos.Instrument), string(pos.Side), pos.Symbol,
		pos.Strike, pos.EntryPrice, pos.Quantity, pos.LotSize, pos.OpenedAt)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// GetPosition returns a single position by ID.
func (s *SQLiteStore) GetPosition(ctx context.Context, userID, positionID string) (*models.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, instrument, side, symbol, strike, entry_price, quantity, lot_size, opened_at
		FROM positions WHERE user_id = ? AND id = ?`, userID, positionID)

	pos, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return pos, nil
}

// GetPositions returns all open positions for a user, oldest first.
func (s *SQLiteStore) GetPositions(ctx context.Context, userID string) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, instrument, side, symbol, strike, entry_price, quantity, lot_size, opened_at
		FROM positions WHERE user_id = ? ORDER BY opened_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

// UpdatePositionQuantity reduces a position's remaining quantity.
func (s *SQLiteStore) UpdatePositionQuantity(ctx context.Context, userID, positionID string, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE positions SET quantity = ? WHERE user_id = ? AND id = ?`,
		quantity, userID, positionID)
	if err != nil {
		return fmt.Errorf("update position quantity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update position quantity: %w", err)
	}
	if affected == 0 {
		return errors.ErrPositionNotFound
	}
	return nil
}

// DeletePosition removes a closed position.
func (s *SQLiteStore) DeletePosition(ctx context.Context, userID, positionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM positions WHERE user_id = ? AND id = ?`, userID, positionID)
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}

// GetHolding returns a user's holding for a symbol.
func (s *SQLiteStore) GetHolding(ctx context.Context, userID, symbol string) (*models.Holding, error) {
	var h models.Holding
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, symbol, quantity, average_price, updated_at
		FROM holdings WHERE user_id = ? AND symbol = ?`, userID, symbol).
		Scan(&h.UserID, &h.Symbol, &h.Quantity, &h.AveragePrice, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrHoldingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get holding: %w", err)
	}
	return &h, nil
}

// GetHoldings returns all of a user's equity holdings.
func (s *SQLiteStore) GetHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, symbol, quantity, average_price, updated_at
		FROM holdings WHERE user_id = ? ORDER BY symbol ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("get holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.UserID, &h.Symbol, &h.Quantity, &h.AveragePrice, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// SaveHolding inserts or updates a holding.
func (s *SQLiteStore) SaveHolding(ctx context.Context, holding *models.Holding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holdings (user_id, symbol, quantity, average_price, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			average_price = excluded.average_price,
			updated_at = CURRENT_TIMESTAMP`,
		holding.UserID, holding.Symbol, holding.Quantity, holding.AveragePrice)
	if err != nil {
		return fmt.Errorf("save holding: %w", err)
	}
	return nil
}

// DeleteHolding removes a fully sold holding.
func (s *SQLiteStore) DeleteHolding(ctx context.Context, userID, symbol string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM holdings WHERE user_id = ? AND symbol = ?`, userID, symbol)
	if err != nil {
		return fmt.Errorf("delete holding: %w", err)
	}
	return nil
}

// StoreLastTradingPrice overwrites the cached price for (user, symbol).
// Non-positive prices are ignored: the cache only ever holds real traded
// prices.
func (s *SQLiteStore) StoreLastTradingPrice(ctx context.Context, userID, symbol string, price float64) error {
	if userID == "" || symbol == "" || price <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO last_trading_prices (user_id, symbol, price, observed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, symbol) DO UPDATE SET
			price = excluded.price,
			observed_at = excluded.observed_at`,
		userID, symbol, price, time.Now())
	if err != nil {
		return fmt.Errorf("store last trading price: %w", err)
	}
	return nil
}

// GetLastTradingPrice returns the cached price, or 0 when none exists.
func (s *SQLiteStore) GetLastTradingPrice(ctx context.Context, userID, symbol string) (float64, error) {
	var price float64
	err := s.db.QueryRowContext(ctx,
		`SELECT price FROM last_trading_prices WHERE user_id = ? AND symbol = ?`,
		userID, symbol).Scan(&price)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get last trading price: %w", err)
	}
	return price, nil
}

// ClearLastTradingPrices removes all cached prices for a user (logout).
func (s *SQLiteStore) ClearLastTradingPrices(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM last_trading_prices WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("clear last trading prices: %w", err)
	}
	return nil
}

// LogTrade records a settled trade in the journal.
func (s *SQLiteStore) LogTrade(ctx context.Context, trade *models.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
		(id, user_id, timestamp, symbol, instrument, side, quantity, lot_size, entry_price, exit_price, pnl, pnl_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.UserID, trade.Timestamp, trade.Symbol, trade.Instrument,
		trade.Side, trade.Quantity, trade.LotSize, trade.EntryPrice, trade.ExitPrice,
		trade.PnL, trade.PnLPercent)
	if err != nil {
		return fmt.Errorf("log trade: %w", err)
	}
	return nil
}

// GetTrades returns journal entries matching the filter, newest first.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := `
		SELECT id, user_id, timestamp, symbol, instrument, side, quantity, lot_size,
		       entry_price, exit_price, pnl, pnl_percent
		FROM trades WHERE 1=1`
	var args []interface{}

	var conditions []string
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Symbol != "" {
		conditions = append(conditions, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if filter.Side != "" {
		conditions = append(conditions, "side = ?")
		args = append(args, filter.Side)
	}
	if !filter.StartDate.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.EndDate)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.ID, &t.UserID, &t.Timestamp, &t.Symbol, &t.Instrument,
			&t.Side, &t.Quantity, &t.LotSize, &t.EntryPrice, &t.ExitPrice,
			&t.PnL, &t.PnLPercent); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var pos models.Position
	var instrument, side string
	err := row.Scan(&pos.ID, &pos.UserID, &instrument, &side, &pos.Symbol,
		&pos.Strike, &pos.EntryPrice, &pos.Quantity, &pos.LotSize, &pos.OpenedAt)
	if err != nil {
		return nil, err
	}
	pos.Instrument = models.InstrumentType(instrument)
	pos.Side = models.OrderSide(side)
	return &pos, nil
}

// Ensure SQLiteStore implements DataStore
var _ DataStore = (*SQLiteStore)(nil)
