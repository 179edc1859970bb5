package domain

import "time"

// Pool is what external callers insert: the Price Graph atomically derives
// the forward edge (Pair.AssetX -> Pair.AssetY) and a reverse edge from it
// (spec section 3 "Pool").
type Pool struct {
	Pair     TradingPair
	Exchange ExchangeId
	Model    PoolModel
}

// Hop is one leg of a path: the exchange used to move from one asset to the
// next (the next asset is implied by the following hop, or by the start
// asset for the closing leg of a cycle).
type Hop struct {
	Asset    Asset
	Exchange ExchangeId
}

// PathQuote is the result of re-evaluating a reconstructed cycle in forward
// amount space (spec section 4.3 step 4).
type PathQuote struct {
	Path      []Hop
	AmountIn  Quantity
	AmountOut Quantity
	ProfitPct float64
}

// CanonicalKey returns a rotation-invariant key for deduplication and
// ranking: the lexicographically-smallest rotation of the (asset, exchange)
// sequence, joined into one string.
func (q PathQuote) CanonicalKey() string {
	return canonicalCycleKey(q.Path)
}

func canonicalCycleKey(path []Hop) string {
	n := len(path)
	if n == 0 {
		return ""
	}
	best := 0
	for start := 1; start < n; start++ {
		if rotationLess(path, start, best) {
			best = start
		}
	}
	s := ""
	for i := 0; i < n; i++ {
		h := path[(best+i)%n]
		s += string(h.Asset) + "/" + string(h.Exchange) + "|"
	}
	return s
}

func rotationLess(path []Hop, a, b int) bool {
	n := len(path)
	for i := 0; i < n; i++ {
		ha := path[(a+i)%n]
		hb := path[(b+i)%n]
		if ha.Asset != hb.Asset {
			return ha.Asset < hb.Asset
		}
		if ha.Exchange != hb.Exchange {
			return ha.Exchange < hb.Exchange
		}
	}
	return false
}

// CycleEval is the gas-adjusted net-profit evaluation of one PathQuote
// (spec section 4.4).
type CycleEval struct {
	GrossProfit  Quantity
	GasEstimate  Quantity
	GasUnitPrice Quantity
	NetProfit    Quantity
}

// Opportunity is the record emitted downstream to the Risk Manager (spec
// section 3).
type Opportunity struct {
	ID            string
	Strategy      string
	Path          []Edge
	InputAmount   Quantity
	ExpectedGross Quantity
	ExpectedNet   Quantity
	GasEstimate   Quantity
	BlockNumber   uint64
	DetectedAt    time.Time
}

// CanonicalKey returns the rotation-invariant cycle key over this
// opportunity's path, for dedup-window comparisons.
func (o Opportunity) CanonicalKey() string {
	hops := make([]Hop, len(o.Path))
	for i, e := range o.Path {
		hops[i] = Hop{Asset: e.Pair.AssetX, Exchange: e.Exchange}
	}
	return canonicalCycleKey(hops)
}
