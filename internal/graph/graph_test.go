package graph

import (
	"testing"
	"time"

	"github.com/aptosarb/arbcore/internal/domain"
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

func samplePool() domain.Pool {
	return domain.Pool{
		Pair:     domain.TradingPair{AssetX: "APT", AssetY: "USDC"},
		Exchange: "Hyperion",
		Model:    domain.NewConstantProduct(q("100"), q("1000"), 30),
	}
}

func TestUpsertPool_CreatesMirroredPair(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Unix(0, 0)
	require.NoError(t, g.UpsertPool(samplePool(), now))

	snap := g.Snapshot()
	assert.Equal(t, 2, snap.EdgeCount())

	forward := snap.Neighbors("APT")
	require.Len(t, forward, 1)
	assert.Equal(t, domain.Asset("USDC"), forward[0].Pair.AssetY)

	reverse := snap.Neighbors("USDC")
	require.Len(t, reverse, 1)
	assert.Equal(t, domain.Asset("APT"), reverse[0].Pair.AssetY)
}

func TestUpsertPool_ReverseModelIsInvolution(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Unix(0, 0)
	pool := samplePool()
	require.NoError(t, g.UpsertPool(pool, now))

	snap := g.Snapshot()
	reverseEdge := snap.Neighbors("USDC")[0]
	doubleInverted := reverseEdge.Model.Invert()

	assert.True(t, doubleInverted.CPMM.ReserveX.Equal(pool.Model.CPMM.ReserveX))
	assert.True(t, doubleInverted.CPMM.ReserveY.Equal(pool.Model.CPMM.ReserveY))
}

func TestUpsertPool_RepeatedUpsertPreservesActivity(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Unix(0, 0)
	pool := samplePool()
	require.NoError(t, g.UpsertPool(pool, now))

	edge := g.Snapshot().Neighbors("APT")[0]
	g.MarkOpportunity([]domain.Edge{edge}, q("50"), now)

	require.NoError(t, g.UpsertPool(pool, now.Add(time.Second)))

	after := g.Snapshot().Neighbors("APT")[0]
	assert.Equal(t, int64(1), after.Activity.OpportunityCount)
	assert.True(t, after.Activity.TotalVolume.Equal(q("50")))
	assert.Equal(t, 2, g.Snapshot().EdgeCount())
}

func TestUpsertPool_RejectsInvalidModel(t *testing.T) {
	g := New(DefaultConfig())
	bad := domain.Pool{
		Pair:     domain.TradingPair{AssetX: "APT", AssetY: "USDC"},
		Exchange: "Hyperion",
		Model:    domain.NewConstantProduct(q("0"), q("1000"), 30),
	}
	err := g.UpsertPool(bad, time.Unix(0, 0))
	assert.ErrorIs(t, err, domain.ErrGraphInvalidModel)
	assert.Equal(t, 0, g.Snapshot().EdgeCount())
}

func TestSnapshot_UnaffectedBySubsequentMutation(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Unix(0, 0)
	require.NoError(t, g.UpsertPool(samplePool(), now))
	before := g.Snapshot()

	other := domain.Pool{
		Pair:     domain.TradingPair{AssetX: "APT", AssetY: "SOL"},
		Exchange: "Thala",
		Model:    domain.NewConstantProduct(q("10"), q("20"), 30),
	}
	require.NoError(t, g.UpsertPool(other, now.Add(time.Second)))

	assert.Equal(t, 2, before.EdgeCount())
	assert.Equal(t, 4, g.Snapshot().EdgeCount())
}

func TestIngestBatch_AllOrNothingOnError(t *testing.T) {
	g := New(DefaultConfig())
	good := samplePool()
	bad := domain.Pool{
		Pair:     domain.TradingPair{AssetX: "SOL", AssetY: "USDC"},
		Exchange: "Thala",
		Model:    domain.NewConstantProduct(q("0"), q("0"), 30),
	}
	err := g.IngestBatch([]domain.Pool{good, bad}, time.Unix(0, 0))
	assert.Error(t, err)
	assert.Equal(t, 0, g.Snapshot().EdgeCount())
}

func TestPruneStale_RemovesOnlyAfterTTLButSnapshotUnaffected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTVL = q("1000000")
	g := New(cfg)

	t0 := time.Unix(0, 0)
	require.NoError(t, g.UpsertPool(samplePool(), t0))

	midSnapshot := g.Snapshot()

	t2 := t0.Add(2 * time.Second)
	removed := g.PruneStale(time.Second, t2)

	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, g.Snapshot().EdgeCount())
	assert.Equal(t, 2, midSnapshot.EdgeCount(), "prior snapshot must still see the edge")
}

func TestPruneStale_ProtectedPairsAreRetained(t *testing.T) {
	pair := domain.TradingPair{AssetX: "APT", AssetY: "USDC"}
	cfg := DefaultConfig()
	cfg.MinTVL = q("1000000")
	cfg.ProtectedPairs = map[domain.TradingPair]struct{}{pair: {}}
	g := New(cfg)

	t0 := time.Unix(0, 0)
	require.NoError(t, g.UpsertPool(samplePool(), t0))

	removed := g.PruneStale(time.Second, t0.Add(2*time.Second))
	assert.Equal(t, 0, removed)
	assert.Equal(t, 2, g.Snapshot().EdgeCount())
}

func TestPruneStale_RecentOpportunityRetainsEdge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTVL = q("1000000")
	cfg.OpportunityWindow = time.Minute
	g := New(cfg)

	t0 := time.Unix(0, 0)
	require.NoError(t, g.UpsertPool(samplePool(), t0))
	edge := g.Snapshot().Neighbors("APT")[0]
	g.MarkOpportunity([]domain.Edge{edge}, q("1"), t0.Add(500*time.Millisecond))

	removed := g.PruneStale(time.Second, t0.Add(2*time.Second))
	assert.Equal(t, 0, removed)
}
