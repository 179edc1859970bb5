package quote

import (
	"fmt"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/shopspring/decimal"
)

// quoteCLMM walks the pool's pre-sorted ticks in index order, consuming each
// tick's liquidity_gross (denominated in input-asset units) as a segment
// that swaps at that tick's price, until amount_in is exhausted or ticks run
// out (spec section 4.1 "CLMM math"). Fees are taken off the input per
// segment, same multiplier as CPMM. Ticks are never re-sorted here: the
// graph guarantees they arrive pre-sorted (I2).
func quoteCLMM(m domain.ConcentratedLiquidity, amountIn domain.Quantity) (domain.Quantity, error) {
	if len(m.Ticks) == 0 {
		return domain.ZeroQuantity, fmt.Errorf("%w: no ticks", domain.ErrInsufficientLiquidity)
	}

	feeMultiplier := decimalFeeMultiplier(m.FeeBps)
	remaining := amountIn
	amountOut := domain.ZeroQuantity

	for _, t := range m.Ticks {
		if remaining.Sign() <= 0 {
			break
		}
		if t.LiquidityGross.Sign() <= 0 || t.Price.Sign() <= 0 {
			continue
		}

		segmentIn := remaining
		if segmentIn.GreaterThan(t.LiquidityGross) {
			segmentIn = t.LiquidityGross
		}

		segmentInAfterFee := segmentIn.Mul(feeMultiplier)
		segmentOut := segmentInAfterFee.Mul(t.Price)
		amountOut = amountOut.Add(segmentOut)
		remaining = remaining.Sub(segmentIn)
	}

	if remaining.Sign() > 0 {
		// Ticks ran out before amount_in was fully consumed: the pool
		// cannot honor the full swap size.
		return domain.ZeroQuantity, fmt.Errorf("%w: tick liquidity exhausted", domain.ErrInsufficientLiquidity)
	}
	if amountOut.Sign() <= 0 {
		return domain.ZeroQuantity, fmt.Errorf("%w: output rounds to zero", domain.ErrInsufficientLiquidity)
	}
	return amountOut, nil
}

// marginalPriceCLMM is the rate of the first tick at zero size (the lowest
// price, since ticks are held ascending).
func marginalPriceCLMM(m domain.ConcentratedLiquidity) (domain.Quantity, error) {
	if len(m.Ticks) == 0 {
		return domain.ZeroQuantity, fmt.Errorf("%w: no ticks", domain.ErrInsufficientLiquidity)
	}
	return m.Ticks[0].Price.Mul(decimalFeeMultiplier(m.FeeBps)), nil
}

// decimalFeeMultiplier mirrors the (1 - fee_bps/10_000) multiplier used in
// quoteCPMM, so both pool kinds apply fees identically.
func decimalFeeMultiplier(feeBps int32) domain.Quantity {
	return decimal.NewFromInt(int64(10_000 - feeBps)).Div(feeDenominator)
}
