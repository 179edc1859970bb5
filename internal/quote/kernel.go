// Package quote is the Quote Kernel: pure pool math dispatched by a switch
// over domain.PoolKind, never a type hierarchy (spec section 9 "Polymorphic
// pool math"). Every function here is side-effect free and safe to call
// from any number of concurrent readers holding a graph.Snapshot.
package quote

import (
	"fmt"

	"github.com/aptosarb/arbcore/internal/domain"
)

// Quote computes the output amount for swapping amountIn of assetIn through
// model, which is oriented for pair (AssetX -> AssetY). It fails with
// ErrWrongDirection unless assetIn == pair.AssetX, ErrInsufficientLiquidity
// if the pool cannot honor the swap, and ErrOverflow on arithmetic overflow.
func Quote(pair domain.TradingPair, model domain.PoolModel, assetIn domain.Asset, amountIn domain.Quantity) (domain.Quantity, error) {
	if assetIn != pair.AssetX {
		return domain.ZeroQuantity, fmt.Errorf("%w: swap quoted for %s, got %s", domain.ErrWrongDirection, pair.AssetX, assetIn)
	}
	if amountIn.Sign() <= 0 {
		return domain.ZeroQuantity, fmt.Errorf("%w: amount_in must be positive", domain.ErrInsufficientLiquidity)
	}

	switch model.Kind {
	case domain.KindConstantProduct:
		return quoteCPMM(model.CPMM, amountIn)
	case domain.KindConcentratedLiquidity:
		return quoteCLMM(model.CLMM, amountIn)
	default:
		return domain.ZeroQuantity, fmt.Errorf("%w: unknown pool kind %d", domain.ErrInsufficientLiquidity, model.Kind)
	}
}

// MarginalPrice returns the instantaneous output-per-input rate at zero
// size, used to weight edges before any trade-size ladder is applied.
func MarginalPrice(model domain.PoolModel) (domain.Quantity, error) {
	switch model.Kind {
	case domain.KindConstantProduct:
		return marginalPriceCPMM(model.CPMM)
	case domain.KindConcentratedLiquidity:
		return marginalPriceCLMM(model.CLMM)
	default:
		return domain.ZeroQuantity, fmt.Errorf("%w: unknown pool kind %d", domain.ErrInsufficientLiquidity, model.Kind)
	}
}
