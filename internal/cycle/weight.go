package cycle

import (
	"fmt"
	"math"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/aptosarb/arbcore/internal/quote"
	"github.com/shopspring/decimal"
)

// edgeWeight computes w(e) = -ln(rate(e) * (1 - fee)) per spec section 4.1
// "Edge weight". rate(e) is marginal_price for the zero-size pass, or
// quote(model, asset_x, size)/size for each non-zero ladder size.
func edgeWeight(e domain.Edge, size domain.Quantity, useMarginal bool) (float64, error) {
	var rate domain.Quantity
	if useMarginal {
		r, err := marginalRate(e)
		if err != nil {
			return 0, err
		}
		rate = r
	} else {
		out, err := quote.Quote(e.Pair, e.Model, e.Pair.AssetX, size)
		if err != nil {
			return 0, err
		}
		rate = out.Div(size)
	}

	effective := rate.Mul(feeMultiplier(e.Model))
	f, _ := effective.Float64()
	if f <= 0 {
		return 0, fmt.Errorf("%w: non-positive effective rate", domain.ErrInsufficientLiquidity)
	}
	return -math.Log(f), nil
}

func feeMultiplier(m domain.PoolModel) domain.Quantity {
	var feeBps int32
	switch m.Kind {
	case domain.KindConstantProduct:
		feeBps = m.CPMM.FeeBps
	case domain.KindConcentratedLiquidity:
		feeBps = m.CLMM.FeeBps
	}
	return decimal.NewFromInt(int64(10_000 - feeBps)).Div(decimal.NewFromInt(10_000))
}
