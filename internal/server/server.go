// Package server exposes the trading desk and option chain engine over
// an HTTP JSON API.
package server

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"paper-trader/internal/feed"
	"paper-trader/internal/market"
	"paper-trader/internal/trading"
)

// Config holds server configuration.
type Config struct {
	Addr            string
	InitialBalance  float64
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		InitialBalance:  100000,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server routes API requests to the desk, feed and chain generator.
type Server struct {
	config Config
	desk   *trading.Desk
	feed   feed.SpotFeed
	poller *feed.Poller
	logger zerolog.Logger

	now     func() time.Time
	isOpen  func(time.Time) bool
	newRand func() *rand.Rand
}

// New creates a server. poller may be nil; when present its snapshot
// supplies live prices for requests that do not carry their own.
func New(config Config, desk *trading.Desk, spotFeed feed.SpotFeed, poller *feed.Poller, logger zerolog.Logger) *Server {
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}
	if config.InitialBalance <= 0 {
		config.InitialBalance = DefaultConfig().InitialBalance
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	return &Server{
		config: config,
		desk:   desk,
		feed:   spotFeed,
		poller: poller,
		logger: logger,
		now:    time.Now,
		isOpen: market.IsOpenAt,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// SetSessionOffset routes market session checks through a fixed UTC
// offset in minutes instead of the IST default.
func (s *Server) SetSessionOffset(offsetMinutes int) {
	s.isOpen = func(t time.Time) bool {
		return market.IsOpenAtOffset(t, offsetMinutes)
	}
}

// Router builds the API route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/options/chain", s.handleOptionChain).Methods(http.MethodGet)
	api.HandleFunc("/market/status", s.handleMarketStatus).Methods(http.MethodGet)
	api.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	api.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods(http.MethodPost)
	api.HandleFunc("/positions/close", s.handleClosePosition).Methods(http.MethodPost)
	api.HandleFunc("/positions/close-all", s.handleCloseAll).Methods(http.MethodPost)
	api.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	api.HandleFunc("/prices/last-traded", s.handleClearLastTraded).Methods(http.MethodDelete)

	r.Use(s.logRequests)
	return r
}

// Run serves the API until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info().Msg("HTTP server shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", s.now().Sub(start)).
			Msg("Request handled")
	})
}
