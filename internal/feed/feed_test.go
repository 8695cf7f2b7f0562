package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFallbackSpot(t *testing.T) {
	tests := []struct {
		symbol string
		want   float64
	}{
		{"NIFTY", 25418.9},
		{"BANKNIFTY", 59957.85},
		{"SENSEX", 82566.37},
		{"FINNIFTY", 21234.80},
		{"UNKNOWN", 25418.9},
	}
	for _, tt := range tests {
		if got := FallbackSpot(tt.symbol); got != tt.want {
			t.Errorf("FallbackSpot(%s) = %v, want %v", tt.symbol, got, tt.want)
		}
	}
}

func TestStaticFeed(t *testing.T) {
	ctx := context.Background()
	f := NewStaticFeed(map[string]float64{"NIFTY": 25500})

	price, err := f.SpotPrice(ctx, "NIFTY")
	if err != nil || price != 25500 {
		t.Errorf("SpotPrice(NIFTY) = %v, %v; want 25500", price, err)
	}

	// Unset symbols resolve to the fallback constant.
	price, err = f.SpotPrice(ctx, "BANKNIFTY")
	if err != nil || price != 59957.85 {
		t.Errorf("SpotPrice(BANKNIFTY) = %v, %v; want fallback 59957.85", price, err)
	}

	f.SetPrice("NIFTY", 25600)
	price, _ = f.SpotPrice(ctx, "NIFTY")
	if price != 25600 {
		t.Errorf("SpotPrice after SetPrice = %v, want 25600", price)
	}
}

func newTestYahooFeed(t *testing.T, handler http.HandlerFunc) *YahooFeed {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f := NewYahooFeed(2*time.Second, zerolog.Nop())
	f.baseURL = server.URL
	f.retry.MaxAttempts = 2
	f.retry.InitialDelay = time.Millisecond
	return f
}

func TestYahooFeedSpotPrice(t *testing.T) {
	f := newTestYahooFeed(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("range") != "1d" || r.URL.Query().Get("interval") != "1m" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":25432.15}}]}}`))
	})

	price, err := f.SpotPrice(context.Background(), "NIFTY")
	if err != nil {
		t.Fatalf("SpotPrice failed: %v", err)
	}
	if price != 25432.15 {
		t.Errorf("SpotPrice = %v, want 25432.15", price)
	}
}

func TestYahooFeedFallsBackOnServerError(t *testing.T) {
	var calls atomic.Int32
	f := newTestYahooFeed(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	price, err := f.SpotPrice(context.Background(), "BANKNIFTY")
	if err != nil {
		t.Fatalf("SpotPrice should not fail: %v", err)
	}
	if price != 59957.85 {
		t.Errorf("SpotPrice = %v, want fallback 59957.85", price)
	}
	if calls.Load() != 2 {
		t.Errorf("made %d requests, want 2 (one retry)", calls.Load())
	}
}

func TestYahooFeedFallsBackOnMissingPrice(t *testing.T) {
	f := newTestYahooFeed(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":0}}]}}`))
	})

	price, err := f.SpotPrice(context.Background(), "SENSEX")
	if err != nil {
		t.Fatalf("SpotPrice should not fail: %v", err)
	}
	if price != 82566.37 {
		t.Errorf("SpotPrice = %v, want fallback 82566.37", price)
	}
}

func TestYahooFeedUnknownSymbol(t *testing.T) {
	f := newTestYahooFeed(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unknown symbols must not reach the upstream API")
	})

	price, err := f.SpotPrice(context.Background(), "RELIANCE")
	if err != nil {
		t.Fatalf("SpotPrice should not fail: %v", err)
	}
	if price != 25418.9 {
		t.Errorf("SpotPrice = %v, want default fallback 25418.9", price)
	}
}

func TestPollerBroadcastAndSnapshot(t *testing.T) {
	f := NewStaticFeed(map[string]float64{"NIFTY": 25500})
	p := NewPoller(PollerConfig{
		Interval: 10 * time.Millisecond,
		Symbols:  []string{"NIFTY"},
	}, f, zerolog.Nop())
	p.isOpen = func(time.Time) bool { return true }

	sub := p.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	select {
	case quote := <-sub.Channel:
		if quote.Symbol != "NIFTY" || quote.SpotPrice != 25500 {
			t.Errorf("quote = %+v", quote)
		}
	case <-time.After(time.Second):
		t.Fatal("no quote received")
	}

	latest, ok := p.Latest("NIFTY")
	if !ok || latest.SpotPrice != 25500 {
		t.Errorf("Latest = %+v, %v; want 25500", latest, ok)
	}
	if prices := p.LatestPrices(); prices["NIFTY"] != 25500 {
		t.Errorf("LatestPrices = %v", prices)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on context cancel")
	}
}

func TestPollerSnapshotFrozenWhenClosed(t *testing.T) {
	f := NewStaticFeed(map[string]float64{"NIFTY": 25500})
	p := NewPoller(PollerConfig{
		Interval: 10 * time.Millisecond,
		Symbols:  []string{"NIFTY"},
	}, f, zerolog.Nop())
	p.isOpen = func(time.Time) bool { return false }

	sub := p.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	// Quotes still flow to subscribers after hours.
	select {
	case <-sub.Channel:
	case <-time.After(time.Second):
		t.Fatal("no quote received")
	}

	// But the last-traded snapshot is not touched.
	if _, ok := p.Latest("NIFTY"); ok {
		t.Error("snapshot should not update while the market is closed")
	}
}

func TestPollerUnsubscribe(t *testing.T) {
	p := NewPoller(DefaultPollerConfig(), NewStaticFeed(nil), zerolog.Nop())

	sub := p.Subscribe()
	p.Unsubscribe(sub)

	if _, ok := <-sub.Channel; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// Broadcasting after unsubscribe must not panic.
	p.broadcast(p.latest["NIFTY"])
}
