package quote

import (
	"fmt"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/shopspring/decimal"
)

var feeDenominator = decimal.NewFromInt(10_000)

// quoteCPMM applies the constant-product formula with fee taken off the
// input (spec section 4.1 "CPMM math"):
//
//	dx' = dx * (1 - fee_bps/10_000)
//	dy  = ry * dx' / (rx + dx')
//
// Output is rounded toward zero at 18 decimal places (QuoRem truncates the
// quotient, so behavior is independent of the decimal package's default
// division scale and rounding).
func quoteCPMM(m domain.ConstantProduct, amountIn domain.Quantity) (domain.Quantity, error) {
	rx, ry := m.ReserveX, m.ReserveY
	if rx.Sign() <= 0 || ry.Sign() <= 0 {
		return domain.ZeroQuantity, fmt.Errorf("%w: zero reserves", domain.ErrInsufficientLiquidity)
	}

	feeMultiplier := decimal.NewFromInt(int64(10_000 - m.FeeBps)).Div(feeDenominator)
	dxPrime := amountIn.Mul(feeMultiplier)
	if dxPrime.Sign() <= 0 {
		return domain.ZeroQuantity, fmt.Errorf("%w: input fully consumed by fee", domain.ErrInsufficientLiquidity)
	}

	denom := rx.Add(dxPrime)
	if denom.Sign() <= 0 {
		return domain.ZeroQuantity, fmt.Errorf("%w: degenerate reserve sum", domain.ErrOverflow)
	}

	dy, _ := ry.Mul(dxPrime).QuoRem(denom, 18)
	if dy.GreaterThanOrEqual(ry) {
		return domain.ZeroQuantity, fmt.Errorf("%w: swap would drain reserve_y", domain.ErrInsufficientLiquidity)
	}
	if dy.Sign() <= 0 {
		return domain.ZeroQuantity, fmt.Errorf("%w: output rounds to zero", domain.ErrInsufficientLiquidity)
	}
	return dy, nil
}

// marginalPriceCPMM is the instantaneous rate at zero size: ry/rx scaled by
// the fee multiplier (the limit of quoteCPMM's output/input ratio as
// amountIn -> 0).
func marginalPriceCPMM(m domain.ConstantProduct) (domain.Quantity, error) {
	if m.ReserveX.Sign() <= 0 || m.ReserveY.Sign() <= 0 {
		return domain.ZeroQuantity, fmt.Errorf("%w: zero reserves", domain.ErrInsufficientLiquidity)
	}
	feeMultiplier := decimal.NewFromInt(int64(10_000 - m.FeeBps)).Div(feeDenominator)
	return m.ReserveY.Div(m.ReserveX).Mul(feeMultiplier), nil
}
