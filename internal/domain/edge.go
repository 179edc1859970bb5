package domain

import (
	"strconv"
	"time"
)

// ActivityStats guides the Price Graph's retention policy. It is mutated
// only by the Block Scheduler, after a successful detection cycle, via
// Graph.MarkOpportunity — the Cycle Engine itself is read-only against the
// graph.
type ActivityStats struct {
	OpportunityCount  int64
	LastOpportunityAt time.Time
	TotalVolume       Quantity
	TVLEstimate       Quantity
}

// Edge is one directed swap capability between two assets on one venue.
// Edge identity/equality excludes LastUpdated and Activity: two edges are
// equal iff (Pair, Exchange, Model) are equal, which makes dedup and
// idempotent upserts well defined (spec section 3).
type Edge struct {
	Pair        TradingPair
	Exchange    ExchangeId
	Model       PoolModel
	LastUpdated time.Time
	Activity    ActivityStats
}

// Identity is the (pair, exchange, model) triple that defines edge equality,
// independent of LastUpdated/Activity.
type Identity struct {
	Pair     TradingPair
	Exchange ExchangeId
	modelKey string
}

// identityKey builds a comparable key for the edge's (Pair, Exchange, Model)
// identity. Model equality is structural, so the key folds in every field
// that participates in quoting.
func (e Edge) identityKey() Identity {
	return Identity{
		Pair:     e.Pair,
		Exchange: e.Exchange,
		modelKey: modelKey(e.Model),
	}
}

// Identity returns the edge's (pair, exchange, model) identity used as the
// map key in the Price Graph.
func (e Edge) Identity() Identity {
	return e.identityKey()
}

func modelKey(m PoolModel) string {
	switch m.Kind {
	case KindConstantProduct:
		return "cpmm:" + m.CPMM.ReserveX.String() + ":" + m.CPMM.ReserveY.String() + ":" + strconv.FormatInt(int64(m.CPMM.FeeBps), 10)
	case KindConcentratedLiquidity:
		s := "clmm:" + strconv.FormatInt(int64(m.CLMM.FeeBps), 10)
		for _, t := range m.CLMM.Ticks {
			s += ":" + t.Price.String() + "@" + t.LiquidityGross.String()
		}
		return s
	default:
		return "unknown"
	}
}

// Equal reports whether two edges have the same (Pair, Exchange, Model)
// identity, ignoring LastUpdated and Activity (spec section 3).
func (e Edge) Equal(other Edge) bool {
	return e.identityKey() == other.identityKey()
}
