package quote

import (
	"testing"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(x, y string) domain.TradingPair {
	return domain.TradingPair{AssetX: domain.Asset(x), AssetY: domain.Asset(y)}
}

func dec(s string) domain.Quantity {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestQuote_CPMM_Basic(t *testing.T) {
	model := domain.NewConstantProduct(dec("1000"), dec("1000"), 30)
	out, err := Quote(pair("USDC", "APT"), model, "USDC", dec("10"))
	require.NoError(t, err)
	assert.True(t, out.Sign() > 0)
	assert.True(t, out.LessThan(dec("10")))
}

func TestQuote_CPMM_WrongDirection(t *testing.T) {
	model := domain.NewConstantProduct(dec("1000"), dec("1000"), 30)
	_, err := Quote(pair("USDC", "APT"), model, "APT", dec("10"))
	assert.ErrorIs(t, err, domain.ErrWrongDirection)
}

func TestQuote_CPMM_NonPositiveInput(t *testing.T) {
	model := domain.NewConstantProduct(dec("1000"), dec("1000"), 30)
	_, err := Quote(pair("USDC", "APT"), model, "USDC", dec("0"))
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestQuote_CPMM_ZeroReserves(t *testing.T) {
	model := domain.NewConstantProduct(dec("0"), dec("1000"), 30)
	_, err := Quote(pair("USDC", "APT"), model, "USDC", dec("10"))
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestQuote_CPMM_LargerInputYieldsWorseRate(t *testing.T) {
	model := domain.NewConstantProduct(dec("1000"), dec("1000"), 30)
	small, err := Quote(pair("USDC", "APT"), model, "USDC", dec("1"))
	require.NoError(t, err)
	large, err := Quote(pair("USDC", "APT"), model, "USDC", dec("100"))
	require.NoError(t, err)

	smallRate := small.Div(dec("1"))
	largeRate := large.Div(dec("100"))
	assert.True(t, largeRate.LessThan(smallRate), "rate should worsen with size")
}

func TestQuote_CPMM_RoundTripWithinInput(t *testing.T) {
	forwardPair := pair("USDC", "APT")
	forward := domain.NewConstantProduct(dec("1000"), dec("1000"), 30)
	reverse := forward.Invert()

	amountIn := dec("10")
	out, err := Quote(forwardPair, forward, "USDC", amountIn)
	require.NoError(t, err)

	back, err := Quote(forwardPair.Reversed(), reverse, "APT", out)
	require.NoError(t, err)

	assert.True(t, back.LessThanOrEqual(amountIn), "round trip must not manufacture input")
}

func TestQuote_CLMM_SingleTickSegment(t *testing.T) {
	model := domain.NewConcentratedLiquidity([]domain.Tick{
		{Price: dec("2"), LiquidityGross: dec("100")},
	}, 0)
	out, err := Quote(pair("USDC", "APT"), model, "USDC", dec("50"))
	require.NoError(t, err)
	assert.True(t, out.Equal(dec("100")))
}

func TestQuote_CLMM_SpansMultipleTicks(t *testing.T) {
	model := domain.NewConcentratedLiquidity([]domain.Tick{
		{Price: dec("2"), LiquidityGross: dec("50")},
		{Price: dec("1.5"), LiquidityGross: dec("50")},
	}, 0)
	out, err := Quote(pair("USDC", "APT"), model, "USDC", dec("100"))
	require.NoError(t, err)
	// 50@2 + 50@1.5 = 100 + 75 = 175
	assert.True(t, out.Equal(dec("175")))
}

func TestQuote_CLMM_ExhaustsTicks(t *testing.T) {
	model := domain.NewConcentratedLiquidity([]domain.Tick{
		{Price: dec("2"), LiquidityGross: dec("10")},
	}, 0)
	_, err := Quote(pair("USDC", "APT"), model, "USDC", dec("100"))
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestQuote_CLMM_NoTicks(t *testing.T) {
	model := domain.NewConcentratedLiquidity(nil, 0)
	_, err := Quote(pair("USDC", "APT"), model, "USDC", dec("1"))
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestMarginalPrice_CPMM(t *testing.T) {
	model := domain.NewConstantProduct(dec("1000"), dec("2000"), 0)
	p, err := MarginalPrice(model)
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("2")))
}

func TestMarginalPrice_CLMM_IsFirstTick(t *testing.T) {
	model := domain.NewConcentratedLiquidity([]domain.Tick{
		{Price: dec("3"), LiquidityGross: dec("10")},
		{Price: dec("4"), LiquidityGross: dec("10")},
	}, 0)
	p, err := MarginalPrice(model)
	require.NoError(t, err)
	assert.True(t, p.Equal(dec("3")))
}
