package cycle

import (
	"context"
	"testing"
	"time"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/aptosarb/arbcore/internal/graph"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func q(s string) domain.Quantity {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testThresholds() Thresholds {
	return Thresholds{MinProfitPct: 0.0001, SlippageCapPct: 0.5, MaxCycleLen: 6}
}

func testSizing() SizingPolicy {
	return SizingPolicy{
		Epsilon:      q("0.001"),
		Ladder:       []domain.Quantity{q("100")},
		SizeFraction: 1, // effectively unbounded for small test graphs
	}
}

// scenario 1: two-pool APT/USDC cycle is profitable.
func TestEngine_ProfitableTwoPoolCycle(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	now := time.Unix(0, 0)

	require.NoError(t, g.UpsertPool(domain.Pool{
		Pair:     domain.TradingPair{AssetX: "APT", AssetY: "USDC"},
		Exchange: "DexA",
		Model:    domain.NewConstantProduct(q("100"), q("1000"), 30),
	}, now))
	require.NoError(t, g.UpsertPool(domain.Pool{
		Pair:     domain.TradingPair{AssetX: "USDC", AssetY: "APT"},
		Exchange: "DexB",
		Model:    domain.NewConstantProduct(q("1010"), q("99"), 30),
	}, now))

	engine := NewEngine("default", testSizing(), testThresholds(), 2)
	results, err := engine.Detect(context.Background(), g.Snapshot())
	require.NoError(t, err)
	require.NotEmpty(t, results, "expected at least one profitable cycle")
	for _, pq := range results {
		assert.Greater(t, pq.AmountOut.Sub(pq.AmountIn).Sign(), 0)
	}
}

// scenario 2: identical reserves on both venues yield no opportunities.
func TestEngine_NoArbitrageWhenReservesMirror(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	now := time.Unix(0, 0)

	model := domain.NewConstantProduct(q("100"), q("1000"), 30)
	require.NoError(t, g.UpsertPool(domain.Pool{
		Pair: domain.TradingPair{AssetX: "APT", AssetY: "USDC"}, Exchange: "DexA", Model: model,
	}, now))
	require.NoError(t, g.UpsertPool(domain.Pool{
		Pair: domain.TradingPair{AssetX: "APT", AssetY: "USDC"}, Exchange: "DexB", Model: model,
	}, now))

	engine := NewEngine("default", testSizing(), testThresholds(), 2)
	results, err := engine.Detect(context.Background(), g.Snapshot())
	require.NoError(t, err)
	assert.Empty(t, results)
}

// scenario 6: a triangle with product of effective rates > 1 yields exactly
// one 3-hop cycle, regardless of which vertex the run started from.
func TestEngine_TriangleNegativeCycleOnFinalPass(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	now := time.Unix(0, 0)

	// A->B, B->C, C->A each priced so the round trip multiplies out > 1
	// after fees: 1 * 2 * 0.9 ~= 1.8 effective with near-zero fees.
	require.NoError(t, g.UpsertPool(domain.Pool{
		Pair: domain.TradingPair{AssetX: "A", AssetY: "B"}, Exchange: "Dex1",
		Model: domain.NewConstantProduct(q("1000"), q("1000"), 1),
	}, now))
	require.NoError(t, g.UpsertPool(domain.Pool{
		Pair: domain.TradingPair{AssetX: "B", AssetY: "C"}, Exchange: "Dex2",
		Model: domain.NewConstantProduct(q("500"), q("1000"), 1),
	}, now))
	require.NoError(t, g.UpsertPool(domain.Pool{
		Pair: domain.TradingPair{AssetX: "C", AssetY: "A"}, Exchange: "Dex3",
		Model: domain.NewConstantProduct(q("1000"), q("900"), 1),
	}, now))

	engine := NewEngine("default", testSizing(), testThresholds(), 2)
	results, err := engine.Detect(context.Background(), g.Snapshot())
	require.NoError(t, err)
	require.NotEmpty(t, results)
	foundTriangle := false
	for _, pq := range results {
		if len(pq.Path) == 3 {
			foundTriangle = true
		}
	}
	assert.True(t, foundTriangle, "expected a 3-hop triangle cycle among results")
}

func TestSizingPolicy_Deterministic(t *testing.T) {
	edges := []domain.Edge{
		{Pair: domain.TradingPair{AssetX: "APT", AssetY: "USDC"}, Model: domain.NewConstantProduct(q("50"), q("500"), 30)},
	}
	p := DefaultSizingPolicy()
	a := p.Sizes(edges)
	b := p.Sizes(edges)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.True(t, a[i].Equal(b[i]))
	}
}

func TestSizingPolicy_ClampsToLiquidityCap(t *testing.T) {
	edges := []domain.Edge{
		{Pair: domain.TradingPair{AssetX: "APT", AssetY: "USDC"}, Model: domain.NewConstantProduct(q("10"), q("500"), 30)},
	}
	p := SizingPolicy{Epsilon: q("0.001"), Ladder: []domain.Quantity{q("100"), q("500")}, SizeFraction: 0.1}
	sizes := p.Sizes(edges)
	for _, s := range sizes {
		assert.True(t, s.LessThanOrEqual(q("1")))
	}
}

// AllowedPairs restricts cycles to the configured start/end asset allow-list
// (spec section 6 "detector.allowed_pairs").
func TestEngine_AllowedPairsExcludesDisallowedEdges(t *testing.T) {
	g := graph.New(graph.DefaultConfig())
	now := time.Unix(0, 0)

	require.NoError(t, g.UpsertPool(domain.Pool{
		Pair:     domain.TradingPair{AssetX: "APT", AssetY: "USDC"},
		Exchange: "DexA",
		Model:    domain.NewConstantProduct(q("100"), q("1000"), 30),
	}, now))
	require.NoError(t, g.UpsertPool(domain.Pool{
		Pair:     domain.TradingPair{AssetX: "USDC", AssetY: "APT"},
		Exchange: "DexB",
		Model:    domain.NewConstantProduct(q("1010"), q("99"), 30),
	}, now))

	thresh := testThresholds()
	thresh.AllowedPairs = map[domain.TradingPair]struct{}{
		{AssetX: "SOL", AssetY: "USDC"}: {},
	}
	engine := NewEngine("default", testSizing(), thresh, 2)
	results, err := engine.Detect(context.Background(), g.Snapshot())
	require.NoError(t, err)
	assert.Empty(t, results, "no edge matches the allow-list, so no cycle should survive")
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	engine := NewEngine("default", testSizing(), testThresholds(), 1)
	r.Register(engine)

	got, ok := r.Get("default")
	require.True(t, ok)
	assert.Equal(t, "default", got.Name())
}
