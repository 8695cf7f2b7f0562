package trading

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"paper-trader/internal/models"
)

func TestCalculateBuy(t *testing.T) {
	tests := []struct {
		name         string
		currentPrice float64
		quantity     int
		lotSize      int
		wantDebit    float64
	}{
		{"option single lot", 70, 1, 50, 3500},
		{"option multiple lots", 82.45, 3, 15, 3710.25},
		{"equity", 2800, 10, 1, 28000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := CalculateBuy(tt.currentPrice, tt.quantity, tt.lotSize, true)
			if math.Abs(s.Debit-tt.wantDebit) > 1e-9 {
				t.Errorf("Debit = %v, want %v", s.Debit, tt.wantDebit)
			}
			if s.InvestedAmount != s.Debit {
				t.Errorf("InvestedAmount = %v, want debit %v", s.InvestedAmount, s.Debit)
			}
			if s.Credit != 0 || s.PnL != 0 {
				t.Errorf("buy must not credit or realize P&L: %+v", s)
			}
		})
	}
}

func TestCalculateSell(t *testing.T) {
	tests := []struct {
		name           string
		entryPrice     float64
		currentPrice   float64
		quantity       int
		side           models.OrderSide
		lotSize        int
		marketOpen     bool
		wantCredit     float64
		wantPnL        float64
		wantPnLPercent float64
	}{
		{
			name:       "long option profit",
			entryPrice: 70, currentPrice: 80, quantity: 1,
			side: models.OrderSideBuy, lotSize: 50, marketOpen: true,
			wantCredit: 4000, wantPnL: 500, wantPnLPercent: 14.29,
		},
		{
			name:       "long option loss",
			entryPrice: 80, currentPrice: 70, quantity: 1,
			side: models.OrderSideBuy, lotSize: 50, marketOpen: true,
			wantCredit: 3500, wantPnL: -500, wantPnLPercent: -12.5,
		},
		{
			name:       "short option profit on falling price",
			entryPrice: 80, currentPrice: 70, quantity: 1,
			side: models.OrderSideSell, lotSize: 50, marketOpen: true,
			wantCredit: 3500, wantPnL: 500, wantPnLPercent: 12.5,
		},
		{
			name:       "short option loss on rising price",
			entryPrice: 70, currentPrice: 80, quantity: 1,
			side: models.OrderSideSell, lotSize: 50, marketOpen: true,
			wantCredit: 4000, wantPnL: -500, wantPnLPercent: -14.29,
		},
		{
			name:       "flat close",
			entryPrice: 70, currentPrice: 70, quantity: 2,
			side: models.OrderSideBuy, lotSize: 50, marketOpen: true,
			wantCredit: 7000, wantPnL: 0, wantPnLPercent: 0,
		},
		{
			name:       "after hours close",
			entryPrice: 100, currentPrice: 110, quantity: 1,
			side: models.OrderSideBuy, lotSize: 25, marketOpen: false,
			wantCredit: 2750, wantPnL: 250, wantPnLPercent: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := CalculateSell(tt.entryPrice, tt.currentPrice, tt.quantity, tt.side, tt.lotSize, tt.marketOpen)
			if math.Abs(s.Credit-tt.wantCredit) > 1e-9 {
				t.Errorf("Credit = %v, want %v", s.Credit, tt.wantCredit)
			}
			if math.Abs(s.PnL-tt.wantPnL) > 1e-9 {
				t.Errorf("PnL = %v, want %v", s.PnL, tt.wantPnL)
			}
			if math.Abs(s.PnLPercent-tt.wantPnLPercent) > 1e-9 {
				t.Errorf("PnLPercent = %v, want %v", s.PnLPercent, tt.wantPnLPercent)
			}
			if s.UseLastTradingPrice == tt.marketOpen {
				t.Errorf("UseLastTradingPrice = %v with marketOpen = %v", s.UseLastTradingPrice, tt.marketOpen)
			}
		})
	}
}

// The credit depends only on the exit price, never on the entry value
// plus rounded P&L.
func TestCreditIsCurrentPriceTimesUnits(t *testing.T) {
	s := CalculateSell(70.333, 80.118, 1, models.OrderSideBuy, 3, true)

	wantCredit := 80.118 * 1 * 3
	if s.Credit != wantCredit {
		t.Errorf("Credit = %v, want exact %v", s.Credit, wantCredit)
	}

	// Entry value plus rounded P&L drifts from the true credit here,
	// which is exactly why the credit never goes through that path.
	drifted := 70.333*1*3 + s.PnL
	if math.Abs(drifted-wantCredit) < 1e-4 {
		t.Errorf("test prices no longer exhibit rounding drift: drifted=%v credit=%v", drifted, wantCredit)
	}
}

func TestCalculateCloseAll(t *testing.T) {
	positions := []CloseInput{
		{ID: "p1", Symbol: "NIFTY25450CE", EntryPrice: 70, CurrentPrice: 80, Side: models.OrderSideBuy, Quantity: 1, LotSize: 50},
		{ID: "p2", Symbol: "RELIANCE", EntryPrice: 2800, CurrentPrice: 2780, Side: models.OrderSideBuy, Quantity: 10, LotSize: 1},
	}

	result := CalculateCloseAll(positions, true)

	if math.Abs(result.TotalPnL-300) > 1e-9 {
		t.Errorf("TotalPnL = %v, want 300", result.TotalPnL)
	}
	if math.Abs(result.TotalCredit-(4000+27800)) > 1e-9 {
		t.Errorf("TotalCredit = %v, want 31800", result.TotalCredit)
	}
	if len(result.Breakdown) != 2 {
		t.Fatalf("Breakdown has %d entries, want 2", len(result.Breakdown))
	}
	if result.Breakdown[0].ID != "p1" || math.Abs(result.Breakdown[0].PnL-500) > 1e-9 {
		t.Errorf("Breakdown[0] = %+v, want p1 with pnl 500", result.Breakdown[0])
	}
	if result.Breakdown[1].ID != "p2" || math.Abs(result.Breakdown[1].PnL+200) > 1e-9 {
		t.Errorf("Breakdown[1] = %+v, want p2 with pnl -200", result.Breakdown[1])
	}
}

func TestCalculateCloseAllEmpty(t *testing.T) {
	result := CalculateCloseAll(nil, true)
	if result.TotalCredit != 0 || result.TotalPnL != 0 || len(result.Breakdown) != 0 {
		t.Errorf("empty close-all should be all zero, got %+v", result)
	}
}

func TestCalculateCloseAllZeroLotDefaults(t *testing.T) {
	positions := []CloseInput{
		{ID: "p1", Symbol: "TCS", EntryPrice: 3800, CurrentPrice: 3850, Side: models.OrderSideBuy, Quantity: 5, LotSize: 0},
	}
	result := CalculateCloseAll(positions, true)
	if math.Abs(result.TotalPnL-250) > 1e-9 {
		t.Errorf("TotalPnL = %v, want 250 (lot size defaulting to 1)", result.TotalPnL)
	}
}

func TestCheckFunds(t *testing.T) {
	if err := CheckFunds(10000, 7000); err != nil {
		t.Errorf("CheckFunds with surplus = %v, want nil", err)
	}
	if err := CheckFunds(7000, 7000); err != nil {
		t.Errorf("CheckFunds with exact cover = %v, want nil", err)
	}

	err := CheckFunds(7000, 10000)
	if err == nil {
		t.Fatal("CheckFunds with shortfall should fail")
	}
	if got := err.Shortfall(); math.Abs(got-3000) > 1e-9 {
		t.Errorf("Shortfall = %v, want 3000", got)
	}
	if err.Required != 10000 || err.Available != 7000 {
		t.Errorf("error fields = %+v, want required 10000 available 7000", err)
	}
}

// Property: bulk close totals equal the sum of individually settled
// positions regardless of ordering.
func TestProperty_CloseAllMatchesIndividualCloses(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Close-all credit and pnl equal summed singles", prop.ForAll(
		func(entries []float64, exits []float64, qtys []int) bool {
			n := len(entries)
			if len(exits) < n {
				n = len(exits)
			}
			if len(qtys) < n {
				n = len(qtys)
			}

			positions := make([]CloseInput, 0, n)
			var wantCredit, wantPnL float64
			for i := 0; i < n; i++ {
				pos := CloseInput{
					ID:           "p",
					Symbol:       "NIFTY",
					EntryPrice:   entries[i],
					CurrentPrice: exits[i],
					Side:         models.OrderSideBuy,
					Quantity:     qtys[i],
					LotSize:      50,
				}
				positions = append(positions, pos)

				s := CalculateSell(pos.EntryPrice, pos.CurrentPrice, pos.Quantity, pos.Side, pos.LotSize, true)
				wantCredit += s.Credit
				wantPnL += s.PnL
			}

			result := CalculateCloseAll(positions, true)
			return math.Abs(result.TotalCredit-math.Round(wantCredit*100)/100) < 1e-6 &&
				math.Abs(result.TotalPnL-math.Round(wantPnL*100)/100) < 1e-6
		},
		gen.SliceOf(gen.Float64Range(0.05, 1000)),
		gen.SliceOf(gen.Float64Range(0.05, 1000)),
		gen.SliceOf(gen.IntRange(1, 20)),
	))

	properties.TestingRun(t)
}
