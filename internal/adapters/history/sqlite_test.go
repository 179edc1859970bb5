package history

import (
	"context"
	"path/filepath"
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

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleOpportunity(id string, net string, blockNumber uint64, at time.Time) domain.Opportunity {
	return domain.Opportunity{
		ID:            id,
		Strategy:      "default",
		Path:          []domain.Edge{{Pair: domain.TradingPair{AssetX: "APT", AssetY: "USDC"}, Exchange: "DexA"}},
		InputAmount:   q("100"),
		ExpectedGross: q("1"),
		ExpectedNet:   q(net),
		GasEstimate:   q("0.01"),
		BlockNumber:   blockNumber,
		DetectedAt:    at,
	}
}

func TestSaveOpportunities_AndGetHistoryRoundTrips(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	err := s.SaveOpportunities(context.Background(), []domain.Opportunity{
		sampleOpportunity("1-a", "0.5", 1, now),
		sampleOpportunity("1-b", "0.9", 1, now),
	})
	require.NoError(t, err)

	got, err := s.GetHistory(context.Background(), now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].ExpectedNet.GreaterThanOrEqual(got[1].ExpectedNet))
}

func TestSaveOpportunities_EmptyBatchIsNoop(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveOpportunities(context.Background(), nil))

	got, err := s.GetHistory(context.Background(), time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveOpportunities_DuplicateIDIgnored(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	opp := sampleOpportunity("dup", "1", 1, now)

	require.NoError(t, s.SaveOpportunities(context.Background(), []domain.Opportunity{opp}))
	require.NoError(t, s.SaveOpportunities(context.Background(), []domain.Opportunity{opp}))

	got, err := s.GetHistory(context.Background(), now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
