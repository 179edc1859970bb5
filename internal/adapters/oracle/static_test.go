package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/aptosarb/arbcore/internal/evaluator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_GasUnitPrice_UsesFallbackBeforeAnyRefresh(t *testing.T) {
	s := NewStatic("APT", nil, time.Minute, decimal.NewFromFloat(0.5), decimal.NewFromInt(100), nil)
	price, _, err := s.GasUnitPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(0.5)))
}

func TestStatic_GasUnitPrice_RefreshesWhenStale(t *testing.T) {
	calls := 0
	refresh := func(context.Context) (GasQuote, error) {
		calls++
		return GasQuote{UnitPrice: decimal.NewFromInt(9), AsOf: time.Now()}, nil
	}
	s := NewStatic("APT", refresh, 0, domain.ZeroQuantity, domain.ZeroQuantity, nil)

	price, _, err := s.GasUnitPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(9)))
	assert.Equal(t, 1, calls)
}

func TestStatic_GasUnitPrice_KeepsLastGoodOnRefreshError(t *testing.T) {
	refresh := func(context.Context) (GasQuote, error) {
		return GasQuote{}, assert.AnError
	}
	s := NewStatic("APT", refresh, 0, decimal.NewFromInt(3), domain.ZeroQuantity, nil)

	price, _, err := s.GasUnitPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(3)))
}

func TestStatic_Simulate_SumsPerHopGasAcrossHops(t *testing.T) {
	s := NewStatic("APT", nil, time.Minute, domain.ZeroQuantity, decimal.NewFromInt(10), nil)
	result, err := s.Simulate(context.Background(), evaluator.SimulationRequest{
		Hops: []evaluator.SimulationHop{{}, {}, {}},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.GasUsed.Equal(decimal.NewFromInt(30)))
}

func TestStatic_Price_SameAssetIsOne(t *testing.T) {
	s := NewStatic("APT", nil, time.Minute, domain.ZeroQuantity, domain.ZeroQuantity, FixedPriceTable(nil))
	price, err := s.Price(context.Background(), "APT", "APT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1)))
}

func TestStatic_Price_LooksUpFixedRate(t *testing.T) {
	table := FixedPriceTable(map[domain.TradingPair]domain.Quantity{
		{AssetX: "APT", AssetY: "USDC"}: decimal.NewFromFloat(6.5),
	})
	s := NewStatic("APT", nil, time.Minute, domain.ZeroQuantity, domain.ZeroQuantity, table)

	price, err := s.Price(context.Background(), "APT", "USDC")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(6.5)))
}

func TestStatic_Price_ErrorsWhenNoTableConfigured(t *testing.T) {
	s := NewStatic("APT", nil, time.Minute, domain.ZeroQuantity, domain.ZeroQuantity, nil)
	_, err := s.Price(context.Background(), "APT", "USDC")
	assert.Error(t, err)
}
