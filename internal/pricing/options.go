// Package pricing synthesizes option premiums and option chains from a
// spot price. The premium model is a deliberately simplified
// approximation, not textbook Black-Scholes: downstream settlement
// figures depend on these exact numbers, so the formula must not be
// "corrected" toward a textbook model.
package pricing

import (
	"math"
	"math/rand"
	"time"

	"paper-trader/internal/models"
)

const (
	// MinPremium is the floor for any synthesized option premium.
	MinPremium = 0.05

	// DefaultRiskFreeRate is carried for contract compatibility; the
	// simplified premium formula does not discount by it.
	DefaultRiskFreeRate = 0.06

	// DefaultStrikeGap is the strike ladder step when none is given.
	DefaultStrikeGap = 50.0

	// DefaultDaysToExpiry is the expiry horizon when none is given.
	DefaultDaysToExpiry = 7

	// ChainHalfWidth strikes are generated on each side of the ATM strike.
	ChainHalfWidth = 7
)

// PriceOption returns the synthetic premium for a call or put.
//
// The premium is intrinsic value plus a time-value term scaled by
// volatility and distance from the strike, multiplied by a time-decay
// factor, rounded to 2 decimals and floored at MinPremium. Inputs outside
// the valid domain degrade to the floor rather than erroring.
func PriceOption(spot, strike, timeToExpiryYears, volatilityPct float64, isCall bool) float64 {
	if spot <= 0 || strike <= 0 || timeToExpiryYears <= 0 || volatilityPct <= 0 {
		return MinPremium
	}

	sigma := volatilityPct / 100

	intrinsic := 0.0
	if isCall {
		intrinsic = math.Max(0, spot-strike)
	} else {
		intrinsic = math.Max(0, strike-spot)
	}

	daysToExpiry := math.Max(1, timeToExpiryYears*365)
	timeDecay := math.Sqrt(daysToExpiry/365) * 0.5

	// Distance from the strike in volatility-scaled terms. The ITM and
	// OTM branches of the source formula collapse to this single
	// expression once the zero intrinsic value is accounted for.
	distance := math.Abs(spot-strike) / spot
	moneyness := distance / (sigma * math.Sqrt(timeToExpiryYears))

	premium := intrinsic + sigma*spot*math.Sqrt(timeToExpiryYears)*0.4*math.Exp(-moneyness*0.5)
	premium *= 1 + timeDecay

	return math.Max(MinPremium, math.Round(premium*100)/100)
}

// ChainParams configures option chain generation.
type ChainParams struct {
	Symbol       string
	SpotPrice    float64
	StrikeGap    float64
	DaysToExpiry int
	MarketOpen   bool

	// Rand supplies the pseudo-random draws for the decorative fields
	// (IV jitter, change percent, OI, volume). Inject a seeded source to
	// make chains reproducible; nil falls back to a time-seeded one.
	Rand *rand.Rand
}

// GenerateChain builds a 15-strike option chain centered on the strike
// nearest the spot price. Premiums and ATM/ITM flags are deterministic
// functions of spot, strike and the drawn volatility; open interest,
// volume and change percent are synthetic display-only fields.
func GenerateChain(p ChainParams) *models.OptionChain {
	if p.StrikeGap <= 0 {
		p.StrikeGap = DefaultStrikeGap
	}
	if p.DaysToExpiry <= 0 {
		p.DaysToExpiry = DefaultDaysToExpiry
	}
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	atm := math.Round(p.SpotPrice/p.StrikeGap) * p.StrikeGap
	timeToExpiry := float64(p.DaysToExpiry) / 365

	const (
		baseOI     = 50000
		baseVolume = 5000
	)

	strikes := make([]models.Strike, 0, 2*ChainHalfWidth+1)
	for i := -ChainHalfWidth; i <= ChainHalfWidth; i++ {
		strike := atm + float64(i)*p.StrikeGap
		volatility := 18 + rng.Float64()*8

		callPrice := PriceOption(p.SpotPrice, strike, timeToExpiry, volatility, true)
		putPrice := PriceOption(p.SpotPrice, strike, timeToExpiry, volatility, false)

		// Prices do not move while the market is closed.
		callChange, putChange := 0.0, 0.0
		if p.MarketOpen {
			callChange = (rng.Float64() - 0.5) * 4
			putChange = (rng.Float64() - 0.5) * 4
		}

		// Liquidity clusters around the ATM strike.
		distanceFromATM := math.Abs(strike - atm)
		proximity := math.Exp(-(distanceFromATM / (3 * p.StrikeGap)))

		callOI := int64(baseOI*proximity + rng.Float64()*baseOI*0.5)
		putOI := int64(baseOI*proximity + rng.Float64()*baseOI*0.5)
		callVolume := int64(baseVolume*proximity + rng.Float64()*baseVolume*0.3)
		putVolume := int64(baseVolume*proximity + rng.Float64()*baseVolume*0.3)

		callIV := round2(volatility*0.95 + rng.Float64()*2)
		putIV := round2(volatility*1.05 + rng.Float64()*2)

		// Exactly one strike carries the ATM flag: the one nearest the
		// spot after rounding. On the exact half-gap boundary the
		// rounded-up strike wins.
		isATM := i == 0
		isITM := strike < p.SpotPrice

		strikes = append(strikes, models.Strike{
			Strike:     strike,
			CallPrice:  callPrice,
			CallChange: callChange,
			CallOI:     callOI,
			CallVolume: callVolume,
			CallIV:     callIV,
			PutPrice:   putPrice,
			PutChange:  putChange,
			PutOI:      putOI,
			PutVolume:  putVolume,
			PutIV:      putIV,
			IsATM:      isATM,
			IsITM:      isITM,
		})
	}

	return &models.OptionChain{
		Symbol:      p.Symbol,
		SpotPrice:   p.SpotPrice,
		StrikeGap:   p.StrikeGap,
		Strikes:     strikes,
		GeneratedAt: time.Now(),
		MarketOpen:  p.MarketOpen,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
