package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"paper-trader/internal/market"
	"paper-trader/internal/models"
)

// PollerConfig holds configuration for the quote poller.
type PollerConfig struct {
	// Interval between polling rounds.
	Interval time.Duration
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
	// Symbols to poll; defaults to every index the feed resolves live.
	Symbols []string
}

// DefaultPollerConfig returns the default poller configuration.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:             15 * time.Second,
		SubscriberBufferSize: 16,
	}
}

// Subscriber receives polled quotes on a buffered channel. Quotes are
// dropped for subscribers that fall behind; the feed is a stream of
// snapshots, not a journal.
type Subscriber struct {
	ID        string
	Channel   chan models.Quote
	CreatedAt time.Time
}

// Poller fetches spot prices on a fixed interval and fans them out to
// subscribers. While the market is open it also keeps a per-symbol
// snapshot of the latest observed price, so after the close the snapshot
// holds each symbol's last traded price.
type Poller struct {
	config PollerConfig
	feed   SpotFeed
	logger zerolog.Logger
	isOpen func(time.Time) bool
	now    func() time.Time

	mu          sync.RWMutex
	subscribers []*Subscriber
	latest      map[string]models.Quote
	started     bool
	subSeq      int
}

// NewPoller creates a quote poller over the given feed.
func NewPoller(config PollerConfig, spotFeed SpotFeed, logger zerolog.Logger) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollerConfig().Interval
	}
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultPollerConfig().SubscriberBufferSize
	}
	if len(config.Symbols) == 0 {
		config.Symbols = Symbols()
	}
	return &Poller{
		config: config,
		feed:   spotFeed,
		logger: logger,
		isOpen: market.IsOpenAt,
		now:    time.Now,
		latest: make(map[string]models.Quote),
	}
}

// SetSessionOffset routes market session checks through a fixed UTC
// offset in minutes instead of the IST default.
func (p *Poller) SetSessionOffset(offsetMinutes int) {
	p.isOpen = func(t time.Time) bool {
		return market.IsOpenAtOffset(t, offsetMinutes)
	}
}

// Start runs the polling loop until the context is cancelled. It polls
// once immediately so subscribers and the snapshot are primed.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info().
		Dur("interval", p.config.Interval).
		Strs("symbols", p.config.Symbols).
		Msg("Quote poller started")

	p.poll(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Quote poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	marketOpen := p.isOpen(p.now())

	for _, symbol := range p.config.Symbols {
		price, err := p.feed.SpotPrice(ctx, symbol)
		if err != nil {
			p.logger.Warn().Err(err).Str("symbol", symbol).Msg("Poll failed")
			continue
		}
		quote := models.Quote{
			Symbol:    symbol,
			SpotPrice: price,
			Timestamp: p.now(),
		}

		if marketOpen {
			p.mu.Lock()
			p.latest[symbol] = quote
			p.mu.Unlock()
		}

		p.broadcast(quote)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// broadcast delivers a quote to every subscriber, dropping it for any
// subscriber whose buffer is full.
func (p *Poller) broadcast(quote models.Quote) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, sub := range p.subscribers {
		select {
		case sub.Channel <- quote:
		default:
			p.logger.Debug().Str("subscriber", sub.ID).Str("symbol", quote.Symbol).Msg("Subscriber behind, quote dropped")
		}
	}
}

// Subscribe registers a new quote subscriber.
func (p *Poller) Subscribe() *Subscriber {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subSeq++
	sub := &Subscriber{
		ID:        fmt.Sprintf("sub-%d", p.subSeq),
		Channel:   make(chan models.Quote, p.config.SubscriberBufferSize),
		CreatedAt: p.now(),
	}
	p.subscribers = append(p.subscribers, sub)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (p *Poller) Unsubscribe(sub *Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, s := range p.subscribers {
		if s == sub {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			close(s.Channel)
			return
		}
	}
}

// Latest returns the most recent quote observed for a symbol while the
// market was open, and whether one exists.
func (p *Poller) Latest(symbol string) (models.Quote, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	quote, ok := p.latest[symbol]
	return quote, ok
}

// LatestPrices returns a symbol to price snapshot of the latest quotes.
func (p *Poller) LatestPrices() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	prices := make(map[string]float64, len(p.latest))
	for symbol, quote := range p.latest {
		prices[symbol] = quote.SpotPrice
	}
	return prices
}
