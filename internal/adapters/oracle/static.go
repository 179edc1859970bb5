// Package oracle implements evaluator.GasOracle and evaluator.PriceOracle
// over a periodically-refreshed in-memory snapshot, grounded on the
// teacher's adapters/onchain/merge.go: that file re-fetched Polygon gas
// price on a fixed interval (gasPriceUpdateInterval) and fell back to a
// hardcoded POL price when no oracle was reachable (polPriceFallbackUSD).
// This package generalizes that refresh-with-fallback shape away from
// go-ethereum/ethclient (dropped, see DESIGN.md) into a pluggable Refresher
// function, since no Aptos-specific gas/price feed exists in the example
// pack. It is the Open Question resolution for spec section 6's
// GasOracle/PriceOracle capabilities: a concrete, swappable default rather
// than an unimplemented interface.
package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/aptosarb/arbcore/internal/evaluator"
	"github.com/shopspring/decimal"
)

// GasQuote is one refreshed reading of the chain's gas unit price.
type GasQuote struct {
	UnitPrice domain.Quantity
	AsOf      time.Time
}

// Refresher fetches a fresh GasQuote. Implementations wrap whatever
// chain-specific RPC client the deployment uses; this package is agnostic
// to it.
type Refresher func(ctx context.Context) (GasQuote, error)

// PriceTable returns the current exchange rate from one asset to another.
// A static deployment can back this with a fixed map; a live one would wrap
// a price-feed client.
type PriceTable func(ctx context.Context, from, to domain.Asset) (domain.Quantity, error)

// Static is a GasOracle + PriceOracle pair backed by a cached gas quote
// (refreshed lazily, no more often than maxAge) and a pluggable price
// lookup. Simulate always reports success with a fixed per-hop gas
// estimate, since this core never executes a real transaction — spec
// section 1 places simulation *fidelity* outside this detector's scope;
// only net-profit bookkeeping depends on GasOracle's numbers being
// self-consistent.
type Static struct {
	mu sync.Mutex

	gasToken    domain.Asset
	refresh     Refresher
	maxAge      time.Duration
	cached      GasQuote
	simGasUsed  domain.Quantity
	priceLookup PriceTable
}

// NewStatic builds a Static oracle. fallback seeds the cache so the first
// GasUnitPrice call has something to serve before a refresh ever succeeds
// (mirrors the teacher's polPriceFallbackUSD constant). The seeded quote is
// stamped with the construction time, not the zero time, so a deployment
// with no Refresher (or one that hasn't fired yet) doesn't read back as
// infinitely stale to the evaluator's staleness check.
func NewStatic(gasToken domain.Asset, refresh Refresher, maxAge time.Duration, fallback, simGasUsedPerHop domain.Quantity, prices PriceTable) *Static {
	return &Static{
		gasToken:    gasToken,
		refresh:     refresh,
		maxAge:      maxAge,
		simGasUsed:  simGasUsedPerHop,
		cached:      GasQuote{UnitPrice: fallback, AsOf: time.Now()},
		priceLookup: prices,
	}
}

// GasToken reports the asset gas is denominated in.
func (s *Static) GasToken() domain.Asset {
	return s.gasToken
}

// GasUnitPrice returns the cached gas price, refreshing it first if it has
// gone stale. A refresh failure keeps serving the last good (or fallback)
// value rather than erroring the whole evaluation pass.
func (s *Static) GasUnitPrice(ctx context.Context) (domain.Quantity, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refresh != nil && time.Since(s.cached.AsOf) > s.maxAge {
		if q, err := s.refresh(ctx); err == nil {
			s.cached = q
		}
	}
	return s.cached.UnitPrice, s.cached.AsOf, nil
}

// Simulate reports a fixed per-hop gas estimate for any candidate path. A
// real deployment would replace this with a chain-specific dry-run RPC;
// this core only needs a number, not transaction fidelity (spec section 1
// non-goals, "execution correctness on the chain itself").
func (s *Static) Simulate(_ context.Context, req evaluator.SimulationRequest) (evaluator.SimulationResult, error) {
	total := domain.ZeroQuantity
	for range req.Hops {
		total = total.Add(s.simGasUsed)
	}
	return evaluator.SimulationResult{GasUsed: total, Success: true}, nil
}

// Price delegates to the configured PriceTable, erroring if none is set.
func (s *Static) Price(ctx context.Context, from, to domain.Asset) (domain.Quantity, error) {
	if s.priceLookup == nil {
		return domain.ZeroQuantity, fmt.Errorf("oracle: no price table configured for %s->%s", from, to)
	}
	return s.priceLookup(ctx, from, to)
}

// FixedPriceTable builds a PriceTable over a static map, for deployments
// that price gas in a small fixed set of quote assets and need nothing
// more dynamic. Keys are TradingPair{AssetX: from, AssetY: to}.
func FixedPriceTable(rates map[domain.TradingPair]domain.Quantity) PriceTable {
	return func(_ context.Context, from, to domain.Asset) (domain.Quantity, error) {
		if from == to {
			return decimal.NewFromInt(1), nil
		}
		if rate, ok := rates[domain.TradingPair{AssetX: from, AssetY: to}]; ok {
			return rate, nil
		}
		return domain.ZeroQuantity, fmt.Errorf("oracle: no fixed rate for %s->%s", from, to)
	}
}
