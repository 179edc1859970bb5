package cycle

import (
	"sort"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/aptosarb/arbcore/internal/quote"
	"github.com/shopspring/decimal"
)

// SizingPolicy generates the ordered, deduplicated candidate input sizes for
// one starting asset (spec section 4.3 "Sizing policy"). Determinism is
// required: the same snapshot and policy must always yield the same list.
type SizingPolicy struct {
	Epsilon      domain.Quantity
	Ladder       []domain.Quantity
	SizeFraction float64
}

// DefaultSizingPolicy is the baseline ladder from the spec: [ε, 100, 500, 1000].
func DefaultSizingPolicy() SizingPolicy {
	return SizingPolicy{
		Epsilon:      decimal.NewFromFloat(0.0001),
		Ladder:       []domain.Quantity{decimal.NewFromInt(100), decimal.NewFromInt(500), decimal.NewFromInt(1000)},
		SizeFraction: 0.1,
	}
}

// Sizes returns the capped, deduplicated, ascending candidate sizes for
// startAsset given its outgoing edges in one snapshot. S_max is the minimum
// liquidity across out-edges times size_fraction; every ladder entry above
// that cap is clamped down to it rather than discarded.
func (p SizingPolicy) Sizes(outEdges []domain.Edge) []domain.Quantity {
	sizeCeiling := sizeCap(outEdges, p.SizeFraction)

	raw := make([]domain.Quantity, 0, len(p.Ladder)+1)
	raw = append(raw, p.Epsilon)
	raw = append(raw, p.Ladder...)

	seen := make(map[string]bool, len(raw))
	out := make([]domain.Quantity, 0, len(raw))
	for _, s := range raw {
		v := s
		if sizeCeiling.Sign() > 0 && v.GreaterThan(sizeCeiling) {
			v = sizeCeiling
		}
		if v.Sign() <= 0 {
			continue
		}
		key := v.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

func sizeCap(outEdges []domain.Edge, fraction float64) domain.Quantity {
	if len(outEdges) == 0 || fraction <= 0 {
		return domain.ZeroQuantity
	}
	var min domain.Quantity
	for i, e := range outEdges {
		l := edgeLiquidity(e)
		if i == 0 || l.LessThan(min) {
			min = l
		}
	}
	return min.Mul(decimal.NewFromFloat(fraction))
}

// edgeLiquidity is a rough sizing-only liquidity proxy: the input-side
// reserve for CPMM, or the sum of tick liquidity for CLMM. It is never used
// for quoting, only for clamping candidate sizes.
func edgeLiquidity(e domain.Edge) domain.Quantity {
	switch e.Model.Kind {
	case domain.KindConstantProduct:
		return e.Model.CPMM.ReserveX
	case domain.KindConcentratedLiquidity:
		total := domain.ZeroQuantity
		for _, t := range e.Model.CLMM.Ticks {
			total = total.Add(t.LiquidityGross)
		}
		return total
	default:
		return domain.ZeroQuantity
	}
}

// marginalRate is exposed for the weighting pass; kept here since it shares
// the edgeLiquidity helper's import set.
func marginalRate(e domain.Edge) (domain.Quantity, error) {
	return quote.MarginalPrice(e.Model)
}
