package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"paper-trader/internal/errors"
	"paper-trader/internal/models"
	"paper-trader/internal/pricing"
	"paper-trader/internal/store"
	"paper-trader/internal/trading"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func setResponse(response interface{}, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func setErrorResponse(statusCode int, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Success: false, Error: err.Error()})
}

// setDomainError maps domain errors to HTTP status codes.
func (s *Server) setDomainError(err error, w http.ResponseWriter) {
	var validationErr *errors.ValidationError
	var fundsErr *errors.InsufficientFundsError
	var orderErr *errors.OrderError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &orderErr):
		setErrorResponse(http.StatusBadRequest, err, w)
	case errors.As(err, &fundsErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":   false,
			"error":     err.Error(),
			"required":  fundsErr.Required,
			"available": fundsErr.Available,
			"shortfall": fundsErr.Shortfall(),
		})
	case errors.Is(err, errors.ErrPositionNotFound),
		errors.Is(err, errors.ErrHoldingNotFound),
		errors.Is(err, errors.ErrUserNotFound):
		setErrorResponse(http.StatusNotFound, err, w)
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		setErrorResponse(http.StatusInternalServerError, err, w)
	}
}

type strikeJSON struct {
	Strike   float64 `json:"strike"`
	CEPrice  float64 `json:"cePrice"`
	CEChange float64 `json:"ceChange"`
	CEOI     int64   `json:"ceOI"`
	CEVolume int64   `json:"ceVolume"`
	CEIV     float64 `json:"ceIV"`
	PEPrice  float64 `json:"pePrice"`
	PEChange float64 `json:"peChange"`
	PEOI     int64   `json:"peOI"`
	PEVolume int64   `json:"peVolume"`
	PEIV     float64 `json:"peIV"`
	IsATM    bool    `json:"isATM"`
	IsITM    bool    `json:"isITM"`
}

type chainResponse struct {
	Success    bool         `json:"success"`
	Index      string       `json:"index"`
	SpotPrice  float64      `json:"spotPrice"`
	Strikes    []strikeJSON `json:"strikes"`
	Timestamp  int64        `json:"timestamp"`
	MarketOpen bool         `json:"marketOpen"`
}

// handleOptionChain serves GET /api/options/chain?symbol=&strikeGap=&daysToExpiry=.
func (s *Server) handleOptionChain(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		setErrorResponse(http.StatusBadRequest, errors.NewValidationError(
			"symbol", "", "symbol parameter is required (e.g., ?symbol=NIFTY)"), w)
		return
	}

	strikeGap := float64(pricing.DefaultStrikeGap)
	if v := r.URL.Query().Get("strikeGap"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			strikeGap = parsed
		}
	}
	daysToExpiry := pricing.DefaultDaysToExpiry
	if v := r.URL.Query().Get("daysToExpiry"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			daysToExpiry = parsed
		}
	}

	spotPrice, err := s.feed.SpotPrice(r.Context(), symbol)
	if err != nil || spotPrice <= 0 {
		// The feed contract resolves to fallbacks, but guard anyway.
		spotPrice = 0
	}
	if spotPrice <= 0 {
		setErrorResponse(http.StatusInternalServerError,
			errors.NewFeedError(symbol, "failed to resolve spot price", err), w)
		return
	}

	marketOpen := s.isOpen(s.now())
	chain := pricing.GenerateChain(pricing.ChainParams{
		Symbol:       symbol,
		SpotPrice:    spotPrice,
		StrikeGap:    strikeGap,
		DaysToExpiry: daysToExpiry,
		MarketOpen:   marketOpen,
		Rand:         s.newRand(),
	})

	strikes := make([]strikeJSON, 0, len(chain.Strikes))
	for _, st := range chain.Strikes {
		strikes = append(strikes, strikeJSON{
			Strike:   st.Strike,
			CEPrice:  st.CallPrice,
			CEChange: st.CallChange,
			CEOI:     st.CallOI,
			CEVolume: st.CallVolume,
			CEIV:     st.CallIV,
			PEPrice:  st.PutPrice,
			PEChange: st.PutChange,
			PEOI:     st.PutOI,
			PEVolume: st.PutVolume,
			PEIV:     st.PutIV,
			IsATM:    st.IsATM,
			IsITM:    st.IsITM,
		})
	}

	setResponse(chainResponse{
		Success:    true,
		Index:      chain.Symbol,
		SpotPrice:  chain.SpotPrice,
		Strikes:    strikes,
		Timestamp:  s.now().UnixMilli(),
		MarketOpen: marketOpen,
	}, w)
}

// handleMarketStatus serves GET /api/market/status.
func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	open := s.isOpen(now)

	status := models.MarketClosed
	if open {
		status = models.MarketOpen
	}

	setResponse(map[string]interface{}{
		"success":    true,
		"isOpen":     open,
		"status":     status,
		"serverTime": now.UTC().Format(time.RFC3339),
	}, w)
}

func requireUserID(r *http.Request) (string, error) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		return "", errors.NewValidationError("userId", "", "required")
	}
	return userID, nil
}

// handlePortfolio serves GET /api/portfolio?userId=.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.setDomainError(err, w)
		return
	}

	view, err := s.desk.Portfolio(r.Context(), userID, s.livePrices())
	if err != nil {
		s.setDomainError(err, w)
		return
	}

	setResponse(map[string]interface{}{
		"success":   true,
		"portfolio": view,
	}, w)
}

// handleBalance serves GET /api/balance?userId=.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.setDomainError(err, w)
		return
	}

	balance, err := s.desk.Balance(r.Context(), userID, s.config.InitialBalance)
	if err != nil {
		s.setDomainError(err, w)
		return
	}

	setResponse(map[string]interface{}{
		"success": true,
		"userId":  userID,
		"balance": balance,
	}, w)
}

type orderRequestJSON struct {
	UserID     string  `json:"userId"`
	Symbol     string  `json:"symbol"`
	Instrument string  `json:"instrument"`
	Side       string  `json:"side"`
	Strike     float64 `json:"strike"`
	Quantity   int     `json:"quantity"`
	LotSize    int     `json:"lotSize"`
	Price      float64 `json:"price"`
}

// handlePlaceOrder serves POST /api/orders.
func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setErrorResponse(http.StatusBadRequest, errors.Wrap(err, "decoding order request"), w)
		return
	}

	result, err := s.desk.PlaceOrder(r.Context(), trading.OrderRequest{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Instrument: models.InstrumentType(req.Instrument),
		Side:       models.OrderSide(req.Side),
		Strike:     req.Strike,
		Quantity:   req.Quantity,
		LotSize:    req.LotSize,
		Price:      req.Price,
	})
	if err != nil {
		s.setDomainError(err, w)
		return
	}

	setResponse(map[string]interface{}{
		"success": true,
		"order":   result,
	}, w)
}

type closeRequestJSON struct {
	UserID     string  `json:"userId"`
	PositionID string  `json:"positionId"`
	Quantity   int     `json:"quantity"`
	LivePrice  float64 `json:"livePrice"`
}

// handleClosePosition serves POST /api/positions/close.
func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	var req closeRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setErrorResponse(http.StatusBadRequest, errors.Wrap(err, "decoding close request"), w)
		return
	}

	result, err := s.desk.ClosePosition(r.Context(), trading.CloseRequest{
		UserID:     req.UserID,
		PositionID: req.PositionID,
		Quantity:   req.Quantity,
		LivePrice:  req.LivePrice,
	})
	if err != nil {
		s.setDomainError(err, w)
		return
	}

	setResponse(map[string]interface{}{
		"success": true,
		"close":   result,
	}, w)
}

type closeAllRequestJSON struct {
	UserID     string             `json:"userId"`
	LivePrices map[string]float64 `json:"livePrices"`
}

// handleCloseAll serves POST /api/positions/close-all.
func (s *Server) handleCloseAll(w http.ResponseWriter, r *http.Request) {
	var req closeAllRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setErrorResponse(http.StatusBadRequest, errors.Wrap(err, "decoding close-all request"), w)
		return
	}

	prices := s.livePrices()
	for symbol, price := range req.LivePrices {
		prices[symbol] = price
	}

	outcome, err := s.desk.CloseAll(r.Context(), req.UserID, prices)
	if err != nil {
		s.setDomainError(err, w)
		return
	}

	setResponse(map[string]interface{}{
		"success": true,
		"result":  outcome,
	}, w)
}

// handleTrades serves GET /api/trades?userId=&symbol=&limit=.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.setDomainError(err, w)
		return
	}

	filter := store.TradeFilter{
		UserID: userID,
		Symbol: r.URL.Query().Get("symbol"),
		Side:   r.URL.Query().Get("side"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}

	trades, err := s.desk.Trades(r.Context(), filter)
	if err != nil {
		s.setDomainError(err, w)
		return
	}

	setResponse(map[string]interface{}{
		"success": true,
		"trades":  trades,
	}, w)
}

// handleClearLastTraded serves DELETE /api/prices/last-traded?userId=.
// Clearing the cache is the logout semantic: the next session starts
// with no stale after-hours prices.
func (s *Server) handleClearLastTraded(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		s.setDomainError(err, w)
		return
	}

	if err := s.desk.ClearLastTradedPrices(r.Context(), userID); err != nil {
		s.setDomainError(err, w)
		return
	}

	setResponse(map[string]interface{}{"success": true}, w)
}

// livePrices snapshots the poller's latest observed prices, or an empty
// map when no poller is wired.
func (s *Server) livePrices() map[string]float64 {
	if s.poller == nil {
		return map[string]float64{}
	}
	return s.poller.LatestPrices()
}
