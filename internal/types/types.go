package types

import "time"

// RawCandidate is a single hit from a condition-search query. The price and
// rate carried here come from the search response and may be stale; the
// screener refetches authoritative quotes per symbol before filtering.
type RawCandidate struct {
	Symbol string
	Name   string
	Price  int64
	Rate   float64
	Volume int64
}

// PriceDetail is the authoritative quote for one symbol at one instant.
// Prices are KRW and therefore integral.
type PriceDetail struct {
	Symbol          string
	Name            string
	Price           int64
	Open, High, Low int64
	UpperLimit      int64
	BestAsk         int64
	AccumVolume     int64
	ProgramNetBuy   int64 // net program-trading volume in shares, negative = net selling
	DayRate         float64
}

// RateFromOpen returns the percent move of the last price against the
// session open. Zero when the open is missing.
func (d *PriceDetail) RateFromOpen() float64 {
	if d.Open <= 0 {
		return 0
	}
	return float64(d.Price-d.Open) / float64(d.Open) * 100.0
}

// WickRatio is the fraction of the open-to-high range sitting above
// max(price, open). Zero for candles with no range above the open.
func (d *PriceDetail) WickRatio() float64 {
	if d.High <= d.Open {
		return 0
	}
	top := d.Price
	if d.Open > top {
		top = d.Open
	}
	return float64(d.High-top) / float64(d.High-d.Open)
}

// TradedValue is the notional traded so far today.
func (d *PriceDetail) TradedValue() int64 {
	return d.Price * d.AccumVolume
}

// Candidate is a screened, ranked entry target.
type Candidate struct {
	Symbol      string
	Name        string
	Price       int64
	WickRatio   float64
	TradedValue int64
}

// Holding is one row of the broker's authoritative balance report.
// OrderableQty is lower than Qty when unfilled orders are resting.
type Holding struct {
	Symbol       string
	Name         string
	Qty          int64
	OrderableQty int64
	AvgPrice     float64
	Price        int64
}

// Position is the bot-side state for one owned symbol.
type Position struct {
	Symbol         string
	Name           string
	Qty            int64
	AvgBuyPrice    float64
	EntryTime      time.Time
	MaxProfitRate  float64
	HasPartialSold bool
	Strategy       string
}

// ProfitRate returns the unrealized return at the given price, as a fraction
// (-0.02 = down two percent).
func (p *Position) ProfitRate(price int64) float64 {
	if p.AvgBuyPrice <= 0 {
		return 0
	}
	return (float64(price) - p.AvgBuyPrice) / p.AvgBuyPrice
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderReq describes one cash order. Price zero means market order,
// otherwise a limit order at the given price.
type OrderReq struct {
	Symbol string
	Side   Side
	Qty    int64
	Price  int64
	Ref    string
}

// OrderResp is the venue's answer. Accepted=false with a nil transport error
// is a business rejection and must not mutate any position state.
type OrderResp struct {
	OrderID  string
	Accepted bool
	Message  string
}
