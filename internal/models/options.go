package models

import "time"

// OptionChain represents a synthetic option chain generated around the
// current spot price. Chains are request-scoped: regenerating replaces
// the whole chain, nothing mutates one in place.
type OptionChain struct {
	Symbol      string
	SpotPrice   float64
	StrikeGap   float64
	Strikes     []Strike
	GeneratedAt time.Time
	MarketOpen  bool
}

// Strike represents a single rung of the option chain ladder.
type Strike struct {
	Strike        float64
	CallPrice     float64
	CallChange    float64
	CallOI        int64
	CallVolume    int64
	CallIV        float64
	PutPrice      float64
	PutChange     float64
	PutOI         int64
	PutVolume     int64
	PutIV         float64
	IsATM         bool
	IsITM         bool // call-centric: strike below spot
}
