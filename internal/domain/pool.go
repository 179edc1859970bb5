package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// PoolKind discriminates the PoolModel variant. Dispatch is a plain switch
// on this tag everywhere (internal/quote), never a type hierarchy.
type PoolKind int

const (
	KindConstantProduct PoolKind = iota
	KindConcentratedLiquidity
)

func (k PoolKind) String() string {
	switch k {
	case KindConstantProduct:
		return "cpmm"
	case KindConcentratedLiquidity:
		return "clmm"
	default:
		return "unknown"
	}
}

// Tick is a price-indexed segment holding gross liquidity for a CLMM pool.
type Tick struct {
	Price          Quantity
	LiquidityGross Quantity
}

// ConstantProduct is the CPMM variant: reserve_x, reserve_y, fee_bps.
type ConstantProduct struct {
	ReserveX Quantity
	ReserveY Quantity
	FeeBps   int32
}

// ConcentratedLiquidity is the CLMM variant: an ascending-by-price sequence
// of ticks plus a pool-wide fee. The graph holds ticks pre-sorted; the
// Quote Kernel must never re-sort them on every call.
type ConcentratedLiquidity struct {
	Ticks  []Tick
	FeeBps int32
}

// PoolModel is the tagged variant over the two supported AMM shapes, oriented
// for one swap direction (AssetX -> AssetY). Exactly one of CPMM/CLMM is set,
// selected by Kind.
type PoolModel struct {
	Kind PoolKind
	CPMM ConstantProduct
	CLMM ConcentratedLiquidity
}

// NewConstantProduct builds a CPMM pool model.
func NewConstantProduct(reserveX, reserveY Quantity, feeBps int32) PoolModel {
	return PoolModel{Kind: KindConstantProduct, CPMM: ConstantProduct{
		ReserveX: reserveX,
		ReserveY: reserveY,
		FeeBps:   feeBps,
	}}
}

// NewConcentratedLiquidity builds a CLMM pool model. ticks must already be
// sorted ascending by price; Validate() checks this rather than re-sorting.
func NewConcentratedLiquidity(ticks []Tick, feeBps int32) PoolModel {
	return PoolModel{Kind: KindConcentratedLiquidity, CLMM: ConcentratedLiquidity{
		Ticks:  ticks,
		FeeBps: feeBps,
	}}
}

// Validate checks the invariants a PoolModel must hold after every mutation
// (spec I2, and the upsert-time rejection criteria of section 4.2).
func (m PoolModel) Validate() error {
	switch m.Kind {
	case KindConstantProduct:
		if m.CPMM.ReserveX.Sign() <= 0 || m.CPMM.ReserveY.Sign() <= 0 {
			return fmt.Errorf("%w: cpmm reserves must be positive", ErrGraphInvalidModel)
		}
		if m.CPMM.FeeBps < 0 || m.CPMM.FeeBps >= 10_000 {
			return fmt.Errorf("%w: cpmm fee_bps out of range", ErrGraphInvalidModel)
		}
		return nil
	case KindConcentratedLiquidity:
		if len(m.CLMM.Ticks) == 0 {
			return fmt.Errorf("%w: clmm ticks must be non-empty", ErrGraphInvalidModel)
		}
		if m.CLMM.FeeBps < 0 || m.CLMM.FeeBps >= 10_000 {
			return fmt.Errorf("%w: clmm fee_bps out of range", ErrGraphInvalidModel)
		}
		for i, t := range m.CLMM.Ticks {
			if t.Price.Sign() <= 0 {
				return fmt.Errorf("%w: clmm tick %d has non-positive price", ErrGraphInvalidModel, i)
			}
			if t.LiquidityGross.Sign() <= 0 {
				return fmt.Errorf("%w: clmm tick %d has non-positive liquidity", ErrGraphInvalidModel, i)
			}
			if i > 0 && !m.CLMM.Ticks[i-1].Price.LessThan(t.Price) {
				return fmt.Errorf("%w: clmm ticks not strictly increasing by price", ErrGraphInvalidModel)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown pool kind %d", ErrGraphInvalidModel, m.Kind)
	}
}

// IsSorted reports whether ticks are currently sorted ascending by price,
// without mutating the slice. Used by tests; Validate checks strict ordering
// itself.
func (c ConcentratedLiquidity) IsSorted() bool {
	return sort.SliceIsSorted(c.Ticks, func(i, j int) bool {
		return c.Ticks[i].Price.LessThan(c.Ticks[j].Price)
	})
}

// Invert derives the reverse-direction model for the pool upsert's mirrored
// edge (spec section 3 "Pool"):
//   - CPMM: swap reserve_x <-> reserve_y, keep fee_bps.
//   - CLMM: invert each tick price (p -> 1/p), reverse order, keep
//     liquidity_gross and fee_bps unchanged.
//
// Open question (spec section 9): whether liquidity_gross should be
// re-scaled under inversion is left unresolved by the source; this keeps the
// straight inversion, per spec's explicit instruction to record it as an
// open item rather than guess.
func (m PoolModel) Invert() PoolModel {
	switch m.Kind {
	case KindConstantProduct:
		return PoolModel{Kind: KindConstantProduct, CPMM: ConstantProduct{
			ReserveX: m.CPMM.ReserveY,
			ReserveY: m.CPMM.ReserveX,
			FeeBps:   m.CPMM.FeeBps,
		}}
	case KindConcentratedLiquidity:
		n := len(m.CLMM.Ticks)
		inverted := make([]Tick, n)
		one := decimal.NewFromInt(1)
		for i, t := range m.CLMM.Ticks {
			inverted[n-1-i] = Tick{
				Price:          one.Div(t.Price),
				LiquidityGross: t.LiquidityGross,
			}
		}
		return PoolModel{Kind: KindConcentratedLiquidity, CLMM: ConcentratedLiquidity{
			Ticks:  inverted,
			FeeBps: m.CLMM.FeeBps,
		}}
	default:
		return m
	}
}
