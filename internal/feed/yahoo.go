package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"paper-trader/pkg/utils"
)

const defaultChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooFeed resolves index spot prices from the Yahoo Finance chart API.
// Fetch failures never propagate: after the retries are exhausted the
// feed resolves to the symbol's fallback constant.
type YahooFeed struct {
	client  *http.Client
	baseURL string
	retry   utils.RetryConfig
	logger  zerolog.Logger
}

// NewYahooFeed creates a feed with the given request timeout.
func NewYahooFeed(timeout time.Duration, logger zerolog.Logger) *YahooFeed {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &YahooFeed{
		client:  &http.Client{Timeout: timeout},
		baseURL: defaultChartBaseURL,
		retry:   utils.DefaultRetryConfig(),
		logger:  logger,
	}
}

// chartResponse is the slice of the Yahoo chart payload we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// SpotPrice resolves the spot price for an index symbol. Unknown symbols
// and upstream failures resolve to the fallback constant.
func (f *YahooFeed) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	ySymbol, ok := yahooSymbols[symbol]
	if !ok {
		f.logger.Warn().Str("symbol", symbol).Msg("Unknown feed symbol, using fallback")
		return FallbackSpot(symbol), nil
	}

	price, err := utils.RetryWithResult(ctx, f.retry, func() (float64, error) {
		return f.fetchPrice(ctx, ySymbol)
	})
	if err != nil {
		f.logger.Warn().Err(err).Str("symbol", symbol).Msg("Feed unavailable, using fallback")
		return FallbackSpot(symbol), nil
	}

	f.logger.Debug().Str("symbol", symbol).Float64("price", price).Msg("Spot price resolved")
	return price, nil
}

func (f *YahooFeed) fetchPrice(ctx context.Context, ySymbol string) (float64, error) {
	u := fmt.Sprintf("%s/%s?range=1d&interval=1m&includePrePost=false",
		f.baseURL, url.PathEscape(ySymbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("chart API status %d", resp.StatusCode)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decoding chart response: %w", err)
	}
	if payload.Chart.Error != nil {
		return 0, fmt.Errorf("chart API error: %s", payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return 0, fmt.Errorf("chart response has no result")
	}

	price := payload.Chart.Result[0].Meta.RegularMarketPrice
	if price <= 0 {
		return 0, fmt.Errorf("chart response has no market price")
	}
	return price, nil
}
