package pricing

import (
	"math"
	"math/rand"
	"testing"
)

func TestPriceOption_Floor(t *testing.T) {
	// Deep OTM, short expiry: the raw formula value falls under the floor.
	price := PriceOption(25000, 26000, 1.0/365, 18, true)
	if price < MinPremium {
		t.Errorf("premium %.4f below floor %.2f", price, MinPremium)
	}
}

func TestPriceOption_InvalidInputs(t *testing.T) {
	tests := []struct {
		name                  string
		spot, strike, tm, vol float64
	}{
		{"zero spot", 0, 25000, 7.0 / 365, 20},
		{"negative spot", -1, 25000, 7.0 / 365, 20},
		{"zero strike", 25000, 0, 7.0 / 365, 20},
		{"zero expiry", 25000, 25000, 0, 20},
		{"zero volatility", 25000, 25000, 7.0 / 365, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriceOption(tt.spot, tt.strike, tt.tm, tt.vol, true); got != MinPremium {
				t.Errorf("PriceOption = %v, want floor %v", got, MinPremium)
			}
		})
	}
}

func TestPriceOption_ITMExceedsIntrinsic(t *testing.T) {
	spot, strike := 25400.0, 25000.0
	call := PriceOption(spot, strike, 7.0/365, 20, true)
	if call < spot-strike {
		t.Errorf("ITM call %.2f below intrinsic %.2f", call, spot-strike)
	}

	put := PriceOption(spot, 25800, 7.0/365, 20, false)
	if put < 25800-spot {
		t.Errorf("ITM put %.2f below intrinsic %.2f", put, 25800-spot)
	}
}

func TestPriceOption_Deterministic(t *testing.T) {
	a := PriceOption(25418.9, 25400, 7.0/365, 22, true)
	b := PriceOption(25418.9, 25400, 7.0/365, 22, true)
	if a != b {
		t.Errorf("same inputs produced different premiums: %v vs %v", a, b)
	}
}

func TestGenerateChain_Shape(t *testing.T) {
	chain := GenerateChain(ChainParams{
		Symbol:       "NIFTY",
		SpotPrice:    25418.9,
		StrikeGap:    50,
		DaysToExpiry: 7,
		MarketOpen:   true,
		Rand:         rand.New(rand.NewSource(42)),
	})

	if len(chain.Strikes) != 15 {
		t.Fatalf("chain has %d strikes, want 15", len(chain.Strikes))
	}

	atm := math.Round(25418.9/50) * 50
	atmCount := 0
	for i, s := range chain.Strikes {
		want := atm + float64(i-ChainHalfWidth)*50
		if s.Strike != want {
			t.Errorf("strike[%d] = %v, want %v", i, s.Strike, want)
		}
		if s.IsATM {
			atmCount++
			if s.Strike != atm {
				t.Errorf("ATM flag on strike %v, want %v", s.Strike, atm)
			}
		}
		if got, want := s.IsITM, s.Strike < 25418.9; got != want {
			t.Errorf("strike %v IsITM = %v, want %v", s.Strike, got, want)
		}
	}
	if atmCount != 1 {
		t.Errorf("chain has %d ATM strikes, want exactly 1", atmCount)
	}
}

func TestGenerateChain_ATMOnHalfGapBoundary(t *testing.T) {
	// Spot exactly between two strikes still yields exactly one ATM flag.
	chain := GenerateChain(ChainParams{
		Symbol:    "NIFTY",
		SpotPrice: 25025,
		StrikeGap: 50,
		Rand:      rand.New(rand.NewSource(1)),
	})

	atmCount := 0
	for _, s := range chain.Strikes {
		if s.IsATM {
			atmCount++
		}
	}
	if atmCount != 1 {
		t.Errorf("chain has %d ATM strikes on half-gap boundary, want exactly 1", atmCount)
	}
}

func TestGenerateChain_ClosedMarketFreezesChanges(t *testing.T) {
	chain := GenerateChain(ChainParams{
		Symbol:     "BANKNIFTY",
		SpotPrice:  59957.85,
		StrikeGap:  100,
		MarketOpen: false,
		Rand:       rand.New(rand.NewSource(7)),
	})

	for _, s := range chain.Strikes {
		if s.CallChange != 0 || s.PutChange != 0 {
			t.Errorf("strike %v has nonzero change with market closed: ce=%v pe=%v",
				s.Strike, s.CallChange, s.PutChange)
		}
	}
	if chain.MarketOpen {
		t.Errorf("chain marked open")
	}
}

func TestGenerateChain_SeededDeterminism(t *testing.T) {
	gen := func() []float64 {
		chain := GenerateChain(ChainParams{
			Symbol:     "NIFTY",
			SpotPrice:  25418.9,
			StrikeGap:  50,
			MarketOpen: true,
			Rand:       rand.New(rand.NewSource(99)),
		})
		out := make([]float64, 0, len(chain.Strikes)*2)
		for _, s := range chain.Strikes {
			out = append(out, s.CallPrice, s.PutPrice)
		}
		return out
	}

	a, b := gen(), gen()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("seeded chains diverge at premium %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestGenerateChain_Defaults(t *testing.T) {
	chain := GenerateChain(ChainParams{Symbol: "NIFTY", SpotPrice: 25418.9})
	if chain.StrikeGap != DefaultStrikeGap {
		t.Errorf("StrikeGap = %v, want default %v", chain.StrikeGap, DefaultStrikeGap)
	}
	if len(chain.Strikes) != 15 {
		t.Errorf("len(Strikes) = %d, want 15", len(chain.Strikes))
	}
}
