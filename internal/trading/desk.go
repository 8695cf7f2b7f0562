package trading

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"paper-trader/internal/errors"
	"paper-trader/internal/market"
	"paper-trader/internal/models"
	"paper-trader/internal/pnl"
	"paper-trader/internal/pricing"
	"paper-trader/internal/store"
)

// DefaultVolatility is the implied volatility percentage used to
// synthesize an option premium when the caller supplies no price.
const DefaultVolatility = 22.0

// SpotSource resolves the current spot price for an underlying symbol.
// Implementations must always return a usable price (falling back to a
// published constant when live data is unavailable).
type SpotSource interface {
	SpotPrice(ctx context.Context, symbol string) (float64, error)
}

// Desk executes orders and closes against a user's balance and
// positions. All settlements for one user are serialized through a
// per-user lock so a rejected order never leaves partial state.
type Desk struct {
	store  store.DataStore
	feed   SpotSource
	logger zerolog.Logger

	now    func() time.Time
	isOpen func(time.Time) bool

	mu       sync.Mutex
	userLock map[string]*sync.Mutex
	orderSeq int64
}

// NewDesk creates an order execution desk.
func NewDesk(dataStore store.DataStore, feed SpotSource, logger zerolog.Logger) *Desk {
	return &Desk{
		store:    dataStore,
		feed:     feed,
		logger:   logger,
		now:      time.Now,
		isOpen:   market.IsOpenAt,
		userLock: make(map[string]*sync.Mutex),
	}
}

// SetSessionOffset routes market session checks through a fixed UTC
// offset in minutes instead of the IST default.
func (d *Desk) SetSessionOffset(offsetMinutes int) {
	d.isOpen = func(t time.Time) bool {
		return market.IsOpenAtOffset(t, offsetMinutes)
	}
}

// lockUser returns the mutex serializing one user's settlements.
func (d *Desk) lockUser(userID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.userLock[userID]
	if !ok {
		l = &sync.Mutex{}
		d.userLock[userID] = l
	}
	return l
}

func (d *Desk) nextID(prefix string) string {
	d.mu.Lock()
	d.orderSeq++
	seq := d.orderSeq
	d.mu.Unlock()
	return fmt.Sprintf("%s_%d_%d", prefix, d.now().Unix(), seq)
}

// OrderRequest describes a buy or sell to execute.
//
// Price is the client-observed price per unit (option premium or equity
// price); zero means the desk resolves it from the feed, reconciled
// against the last-traded cache.
type OrderRequest struct {
	UserID     string
	Symbol     string
	Instrument models.InstrumentType
	Side       models.OrderSide
	Strike     float64
	Quantity   int
	LotSize    int
	Price      float64
}

// OrderResult reports the executed order.
type OrderResult struct {
	PositionID string
	Symbol     string
	Price      float64
	Debit      float64
	Credit     float64
	PnL        float64
	Balance    float64
	MarketOpen bool
}

func (r OrderRequest) validate() error {
	if r.UserID == "" {
		return errors.NewValidationError("userId", "", "required")
	}
	if strings.TrimSpace(r.Symbol) == "" {
		return errors.NewValidationError("symbol", r.Symbol, "required")
	}
	if r.Quantity <= 0 {
		return errors.NewValidationError("quantity", r.Quantity, "must be positive")
	}
	if r.Side != models.OrderSideBuy && r.Side != models.OrderSideSell {
		return errors.NewValidationError("side", string(r.Side), "must be BUY or SELL")
	}
	switch r.Instrument {
	case models.InstrumentEquity:
	case models.InstrumentCall, models.InstrumentPut:
		if r.Strike <= 0 {
			return errors.NewValidationError("strike", r.Strike, "required for options")
		}
	default:
		return errors.NewValidationError("instrument", string(r.Instrument), "must be EQUITY, CE or PE")
	}
	return nil
}

// PlaceOrder executes a buy or sell.
//
// Equity buys merge into the user's holding at the quantity-weighted
// average price; equity sells reduce or remove the holding and realize
// P&L against that average. Option orders open a new position on either
// side; option closes go through ClosePosition.
func (d *Desk) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	lock := d.lockUser(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	marketOpen := d.isOpen(d.now())
	price, err := d.resolvePrice(ctx, req, marketOpen)
	if err != nil {
		return nil, err
	}

	if req.Instrument == models.InstrumentEquity && req.Side == models.OrderSideSell {
		return d.sellHolding(ctx, req, price, marketOpen)
	}

	lotSize := req.LotSize
	if lotSize <= 0 {
		lotSize = 1
	}

	settlement := CalculateBuy(price, req.Quantity, lotSize, marketOpen)

	balance, err := d.store.GetBalance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if fundsErr := CheckFunds(balance, settlement.Debit); fundsErr != nil {
		d.logger.Warn().
			Str("user", req.UserID).
			Str("symbol", req.Symbol).
			Float64("required", fundsErr.Required).
			Float64("available", fundsErr.Available).
			Msg("Order rejected: insufficient funds")
		return nil, fundsErr
	}

	newBalance := balance - settlement.Debit
	if err := d.store.SetBalance(ctx, req.UserID, newBalance); err != nil {
		return nil, err
	}

	result := &OrderResult{
		Symbol:     req.Symbol,
		Price:      price,
		Debit:      settlement.Debit,
		Balance:    newBalance,
		MarketOpen: marketOpen,
	}

	if req.Instrument == models.InstrumentEquity {
		if err := d.mergeHolding(ctx, req, price); err != nil {
			return nil, err
		}
	} else {
		pos := &models.Position{
			ID:         d.nextID("POS"),
			UserID:     req.UserID,
			Instrument: req.Instrument,
			Side:       req.Side,
			Symbol:     req.Symbol,
			Strike:     req.Strike,
			EntryPrice: price,
			Quantity:   req.Quantity,
			LotSize:    lotSize,
			OpenedAt:   d.now(),
		}
		if err := d.store.SavePosition(ctx, pos); err != nil {
			return nil, err
		}
		result.PositionID = pos.ID
	}

	d.recordLastTraded(ctx, req.UserID, req.Symbol, price, marketOpen)

	d.logger.Info().
		Str("user", req.UserID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Int("quantity", req.Quantity).
		Float64("price", price).
		Float64("debit", settlement.Debit).
		Msg("Order executed")

	return result, nil
}

// mergeHolding folds an equity buy into the existing holding at the
// weighted average price, or creates one.
func (d *Desk) mergeHolding(ctx context.Context, req OrderRequest, price float64) error {
	holding, err := d.store.GetHolding(ctx, req.UserID, req.Symbol)
	if err != nil {
		if errors.Is(err, errors.ErrHoldingNotFound) {
			holding = &models.Holding{
				UserID:       req.UserID,
				Symbol:       req.Symbol,
				Quantity:     req.Quantity,
				AveragePrice: price,
			}
			return d.store.SaveHolding(ctx, holding)
		}
		return err
	}

	holding.AveragePrice = pnl.AveragePrice(holding.Quantity, holding.AveragePrice, req.Quantity, price)
	holding.Quantity += req.Quantity
	return d.store.SaveHolding(ctx, holding)
}

// sellHolding reduces or removes an equity holding and credits the sale.
func (d *Desk) sellHolding(ctx context.Context, req OrderRequest, price float64, marketOpen bool) (*OrderResult, error) {
	holding, err := d.store.GetHolding(ctx, req.UserID, req.Symbol)
	if err != nil {
		return nil, err
	}
	if req.Quantity > holding.Quantity {
		return nil, errors.NewOrderError(req.UserID, req.Symbol, "SELL",
			fmt.Sprintf("sell quantity %d exceeds held %d", req.Quantity, holding.Quantity), errors.ErrInvalidOrder)
	}

	settlement := CalculateSell(holding.AveragePrice, price, req.Quantity, models.OrderSideBuy, 1, marketOpen)

	balance, err := d.store.GetBalance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	newBalance := balance + settlement.Credit
	if err := d.store.SetBalance(ctx, req.UserID, newBalance); err != nil {
		return nil, err
	}

	if req.Quantity == holding.Quantity {
		if err := d.store.DeleteHolding(ctx, req.UserID, req.Symbol); err != nil {
			return nil, err
		}
	} else {
		holding.Quantity -= req.Quantity
		if err := d.store.SaveHolding(ctx, holding); err != nil {
			return nil, err
		}
	}

	d.recordLastTraded(ctx, req.UserID, req.Symbol, price, marketOpen)
	d.journal(ctx, req.UserID, req.Symbol, string(models.InstrumentEquity), string(models.OrderSideBuy),
		req.Quantity, 1, holding.AveragePrice, price, settlement)

	d.logger.Info().
		Str("user", req.UserID).
		Str("symbol", req.Symbol).
		Int("quantity", req.Quantity).
		Float64("credit", settlement.Credit).
		Float64("pnl", settlement.PnL).
		Msg("Holding sold")

	return &OrderResult{
		Symbol:     req.Symbol,
		Price:      price,
		Credit:     settlement.Credit,
		PnL:        settlement.PnL,
		Balance:    newBalance,
		MarketOpen: marketOpen,
	}, nil
}

// CloseRequest asks to close some or all of a position.
type CloseRequest struct {
	UserID     string
	PositionID string
	// Quantity in lots; zero closes the full position.
	Quantity int
	// LivePrice is the client-observed current price, zero if unknown.
	LivePrice float64
}

// CloseResult reports a settled close.
type CloseResult struct {
	PositionID        string
	Symbol            string
	Price             float64
	Credit            float64
	PnL               float64
	PnLPercent        float64
	Balance           float64
	RemainingQuantity int
	MarketOpen        bool
}

// ClosePosition settles a full or partial close at the effective price:
// the client's live price when the market is open, otherwise the cached
// last-traded price, falling back to the entry price.
func (d *Desk) ClosePosition(ctx context.Context, req CloseRequest) (*CloseResult, error) {
	if req.UserID == "" || req.PositionID == "" {
		return nil, errors.NewValidationError("positionId", req.PositionID, "required")
	}
	if req.Quantity < 0 {
		return nil, errors.NewValidationError("quantity", req.Quantity, "must not be negative")
	}

	lock := d.lockUser(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	pos, err := d.store.GetPosition(ctx, req.UserID, req.PositionID)
	if err != nil {
		return nil, err
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = pos.Quantity
	}
	if quantity > pos.Quantity {
		return nil, errors.NewOrderError(req.UserID, pos.Symbol, "CLOSE",
			fmt.Sprintf("close quantity %d exceeds open %d", quantity, pos.Quantity), errors.ErrInvalidOrder)
	}

	marketOpen := d.isOpen(d.now())
	price := d.effectiveClosePrice(ctx, req.UserID, pos.Symbol, req.LivePrice, pos.EntryPrice, marketOpen)

	settlement := CalculateSell(pos.EntryPrice, price, quantity, pos.Side, pos.LotSize, marketOpen)

	balance, err := d.store.GetBalance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	newBalance := balance + settlement.Credit
	if err := d.store.SetBalance(ctx, req.UserID, newBalance); err != nil {
		return nil, err
	}

	remaining := pos.Quantity - quantity
	if remaining == 0 {
		if err := d.store.DeletePosition(ctx, req.UserID, req.PositionID); err != nil {
			return nil, err
		}
	} else {
		if err := d.store.UpdatePositionQuantity(ctx, req.UserID, req.PositionID, remaining); err != nil {
			return nil, err
		}
	}

	d.recordLastTraded(ctx, req.UserID, pos.Symbol, price, marketOpen)
	d.journal(ctx, req.UserID, pos.Symbol, string(pos.Instrument), string(pos.Side),
		quantity, pos.LotSize, pos.EntryPrice, price, settlement)

	d.logger.Info().
		Str("user", req.UserID).
		Str("position", req.PositionID).
		Str("symbol", pos.Symbol).
		Int("quantity", quantity).
		Float64("price", price).
		Float64("credit", settlement.Credit).
		Float64("pnl", settlement.PnL).
		Bool("market_open", marketOpen).
		Msg("Position closed")

	return &CloseResult{
		PositionID:        req.PositionID,
		Symbol:            pos.Symbol,
		Price:             price,
		Credit:            settlement.Credit,
		PnL:               settlement.PnL,
		PnLPercent:        settlement.PnLPercent,
		Balance:           newBalance,
		RemainingQuantity: remaining,
		MarketOpen:        marketOpen,
	}, nil
}

// CloseAllOutcome reports a settled bulk close.
type CloseAllOutcome struct {
	CloseAllResult
	Balance    float64
	MarketOpen bool
}

// CloseAll closes every open position for the user in one settlement.
// livePrices maps symbol to the client-observed current price; missing
// symbols reconcile through the last-traded cache as usual.
func (d *Desk) CloseAll(ctx context.Context, userID string, livePrices map[string]float64) (*CloseAllOutcome, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId", "", "required")
	}

	lock := d.lockUser(userID)
	lock.Lock()
	defer lock.Unlock()

	positions, err := d.store.GetPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	marketOpen := d.isOpen(d.now())

	inputs := make([]CloseInput, 0, len(positions))
	for _, pos := range positions {
		price := d.effectiveClosePrice(ctx, userID, pos.Symbol, livePrices[pos.Symbol], pos.EntryPrice, marketOpen)
		inputs = append(inputs, CloseInput{
			ID:           pos.ID,
			Symbol:       pos.Symbol,
			EntryPrice:   pos.EntryPrice,
			CurrentPrice: price,
			Side:         pos.Side,
			Quantity:     pos.Quantity,
			LotSize:      pos.LotSize,
		})
	}

	result := CalculateCloseAll(inputs, marketOpen)

	balance, err := d.store.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	newBalance := balance + result.TotalCredit
	if err := d.store.SetBalance(ctx, userID, newBalance); err != nil {
		return nil, err
	}

	for i, pos := range positions {
		if err := d.store.DeletePosition(ctx, userID, pos.ID); err != nil {
			return nil, err
		}
		in := inputs[i]
		s := CalculateSell(in.EntryPrice, in.CurrentPrice, in.Quantity, in.Side, in.LotSize, marketOpen)
		d.recordLastTraded(ctx, userID, pos.Symbol, in.CurrentPrice, marketOpen)
		d.journal(ctx, userID, pos.Symbol, string(pos.Instrument), string(pos.Side),
			in.Quantity, in.LotSize, in.EntryPrice, in.CurrentPrice, s)
	}

	d.logger.Info().
		Str("user", userID).
		Int("positions", len(positions)).
		Float64("total_credit", result.TotalCredit).
		Float64("total_pnl", result.TotalPnL).
		Msg("All positions closed")

	return &CloseAllOutcome{
		CloseAllResult: result,
		Balance:        newBalance,
		MarketOpen:     marketOpen,
	}, nil
}

// PortfolioView is the user's positions and holdings marked to market.
type PortfolioView struct {
	Positions    []PositionView
	Holdings     []HoldingView
	Metrics      pnl.Metrics
	Balance      float64
	TotalValue   float64
	MarketStatus models.MarketStatus
}

// PositionView is an open position with display P&L.
type PositionView struct {
	models.Position
	CurrentPrice float64
	PnL          float64
	PnLPercent   float64
}

// HoldingView is an equity holding with display P&L.
type HoldingView struct {
	models.Holding
	CurrentPrice float64
	PnL          float64
	PnLPercent   float64
}

// Portfolio marks the user's positions and holdings to the effective
// price and aggregates portfolio metrics.
func (d *Desk) Portfolio(ctx context.Context, userID string, livePrices map[string]float64) (*PortfolioView, error) {
	if userID == "" {
		return nil, errors.NewValidationError("userId", "", "required")
	}

	positions, err := d.store.GetPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := d.store.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance, err := d.store.GetBalance(ctx, userID)
	if err != nil {
		if !errors.Is(err, errors.ErrUserNotFound) {
			return nil, err
		}
		balance = 0
	}

	marketOpen := d.isOpen(d.now())

	view := &PortfolioView{
		Positions:    make([]PositionView, 0, len(positions)),
		Holdings:     make([]HoldingView, 0, len(holdings)),
		Balance:      balance,
		MarketStatus: models.MarketClosed,
	}
	if marketOpen {
		view.MarketStatus = models.MarketOpen
	}

	snapshots := make([]pnl.Snapshot, 0, len(positions)+len(holdings))

	for _, pos := range positions {
		price := d.effectiveClosePrice(ctx, userID, pos.Symbol, livePrices[pos.Symbol], pos.EntryPrice, marketOpen)
		view.Positions = append(view.Positions, PositionView{
			Position:     pos,
			CurrentPrice: price,
			PnL:          pnl.PnL(pos.EntryPrice, price, pos.Side, pos.Quantity, pos.LotSize),
			PnLPercent:   pnl.PnLPercent(pos.EntryPrice, price, pos.Side),
		})
		snapshots = append(snapshots, pnl.Snapshot{
			EntryPrice:   pos.EntryPrice,
			CurrentPrice: price,
			Side:         pos.Side,
			Quantity:     pos.Quantity,
			LotSize:      pos.LotSize,
		})
	}

	for _, h := range holdings {
		price := d.effectiveClosePrice(ctx, userID, h.Symbol, livePrices[h.Symbol], h.AveragePrice, marketOpen)
		view.Holdings = append(view.Holdings, HoldingView{
			Holding:      h,
			CurrentPrice: price,
			PnL:          pnl.PnL(h.AveragePrice, price, models.OrderSideBuy, h.Quantity, 1),
			PnLPercent:   pnl.PnLPercent(h.AveragePrice, price, models.OrderSideBuy),
		})
		snapshots = append(snapshots, pnl.Snapshot{
			EntryPrice:   h.AveragePrice,
			CurrentPrice: price,
			Side:         models.OrderSideBuy,
			Quantity:     h.Quantity,
			LotSize:      1,
		})
	}

	view.Metrics = pnl.Portfolio(snapshots)
	view.TotalValue = round2(balance + view.Metrics.TotalCurrentValue)
	return view, nil
}

// Balance returns the user's available cash, seeding new users with
// initialBalance on first read.
func (d *Desk) Balance(ctx context.Context, userID string, initialBalance float64) (float64, error) {
	if userID == "" {
		return 0, errors.NewValidationError("userId", "", "required")
	}

	balance, err := d.store.GetBalance(ctx, userID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, errors.ErrUserNotFound) {
		return 0, err
	}

	if err := d.store.SetBalance(ctx, userID, initialBalance); err != nil {
		return 0, err
	}
	return initialBalance, nil
}

// Trades returns journal entries matching the filter.
func (d *Desk) Trades(ctx context.Context, filter store.TradeFilter) ([]models.Trade, error) {
	if filter.UserID == "" {
		return nil, errors.NewValidationError("userId", "", "required")
	}
	return d.store.GetTrades(ctx, filter)
}

// ClearLastTradedPrices drops every cached last-traded price for the
// user, so the next session starts without stale after-hours prices.
func (d *Desk) ClearLastTradedPrices(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.NewValidationError("userId", "", "required")
	}

	lock := d.lockUser(userID)
	lock.Lock()
	defer lock.Unlock()

	return d.store.ClearLastTradingPrices(ctx, userID)
}

// resolvePrice determines the execution price for an order.
func (d *Desk) resolvePrice(ctx context.Context, req OrderRequest, marketOpen bool) (float64, error) {
	if req.Price > 0 {
		return req.Price, nil
	}

	spot, err := d.feed.SpotPrice(ctx, underlying(req.Symbol))
	if err != nil {
		return 0, errors.NewFeedError(req.Symbol, "resolving spot price", err)
	}

	if req.Instrument == models.InstrumentEquity {
		ltp, _ := d.store.GetLastTradingPrice(ctx, req.UserID, req.Symbol)
		live := 0.0
		if marketOpen {
			live = spot
		}
		return pnl.EffectivePrice(live, ltp, spot), nil
	}

	t := float64(pricing.DefaultDaysToExpiry) / 365.0
	premium := pricing.PriceOption(spot, req.Strike, t, DefaultVolatility, req.Instrument == models.InstrumentCall)
	return premium, nil
}

// effectiveClosePrice reconciles the price a close settles at. The live
// price only counts while the market is open; the entry price is the
// terminal fallback so a close is always priceable.
func (d *Desk) effectiveClosePrice(ctx context.Context, userID, symbol string, livePrice, entryPrice float64, marketOpen bool) float64 {
	live := 0.0
	if marketOpen {
		live = livePrice
	}
	ltp, _ := d.store.GetLastTradingPrice(ctx, userID, symbol)
	return pnl.EffectivePrice(live, ltp, entryPrice)
}

// recordLastTraded persists the settlement price to the last-traded
// cache, only while the market is open.
func (d *Desk) recordLastTraded(ctx context.Context, userID, symbol string, price float64, marketOpen bool) {
	if !marketOpen {
		return
	}
	if err := d.store.StoreLastTradingPrice(ctx, userID, symbol, price); err != nil {
		d.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store last traded price")
	}
}

func (d *Desk) journal(ctx context.Context, userID, symbol, instrument, side string,
	quantity, lotSize int, entryPrice, exitPrice float64, s Settlement) {
	trade := &models.Trade{
		ID:         d.nextID("TRD"),
		UserID:     userID,
		Timestamp:  d.now(),
		Symbol:     symbol,
		Instrument: instrument,
		Side:       side,
		Quantity:   quantity,
		LotSize:    lotSize,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		PnL:        s.PnL,
		PnLPercent: s.PnLPercent,
	}
	if err := d.store.LogTrade(ctx, trade); err != nil {
		d.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to journal trade")
	}
}

// underlying strips the strike and option suffix from a contract symbol,
// e.g. NIFTY25450CE resolves spot against NIFTY.
func underlying(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, suffix := range []string{"CE", "PE"} {
		if strings.HasSuffix(s, suffix) {
			trimmed := strings.TrimSuffix(s, suffix)
			trimmed = strings.TrimRight(trimmed, "0123456789")
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return s
}
