package scheduler

import (
	"fmt"
	"sort"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/shopspring/decimal"
)

// MessageKind discriminates the DetectorMessage variant (spec section 4.5
// "Messages"). Dispatch is a plain switch on this tag, matching the
// PoolModel/ModelUpdate tagged-union convention used throughout this core.
type MessageKind int

const (
	KindBlockStart MessageKind = iota
	KindMarketUpdate
	KindBlockEnd
)

func (k MessageKind) String() string {
	switch k {
	case KindBlockStart:
		return "block_start"
	case KindMarketUpdate:
		return "market_update"
	case KindBlockEnd:
		return "block_end"
	default:
		return "unknown"
	}
}

// BlockStart marks the beginning of a new block's worth of market updates.
type BlockStart struct {
	BlockNumber uint64
	TimestampMs uint64
}

// MarketUpdate carries one pool's freshly observed state from the Ingestor.
// ModelUpdate is the Ingestor's wire-level encoding; the scheduler
// materializes a domain.PoolModel from it before calling graph.UpsertPool.
type MarketUpdate struct {
	PoolID   string
	Pair     domain.TradingPair
	Exchange domain.ExchangeId
	Model    ModelUpdate
}

// BlockEnd marks that every MarketUpdate belonging to BlockNumber has been
// delivered; it triggers one detection cycle.
type BlockEnd struct {
	BlockNumber uint64
}

// DetectorMessage is the tagged union an Ingestor feeds into Scheduler.Run
// (spec section 4.5). Exactly one of the three payload fields is valid,
// selected by Kind.
type DetectorMessage struct {
	Kind         MessageKind
	BlockStart   BlockStart
	MarketUpdate MarketUpdate
	BlockEnd     BlockEnd
}

// NewBlockStart builds a BlockStart DetectorMessage.
func NewBlockStart(blockNumber, timestampMs uint64) DetectorMessage {
	return DetectorMessage{Kind: KindBlockStart, BlockStart: BlockStart{BlockNumber: blockNumber, TimestampMs: timestampMs}}
}

// NewMarketUpdate builds a MarketUpdate DetectorMessage.
func NewMarketUpdate(u MarketUpdate) DetectorMessage {
	return DetectorMessage{Kind: KindMarketUpdate, MarketUpdate: u}
}

// NewBlockEnd builds a BlockEnd DetectorMessage.
func NewBlockEnd(blockNumber uint64) DetectorMessage {
	return DetectorMessage{Kind: KindBlockEnd, BlockEnd: BlockEnd{BlockNumber: blockNumber}}
}

// ModelUpdateKind discriminates the wire-level pool state an Ingestor
// reports, mirroring domain.PoolKind but expressed the way a chain adapter
// would actually observe it (raw reserves, or sqrt_price/tick/tick_map).
type ModelUpdateKind int

const (
	ModelUpdateCPMM ModelUpdateKind = iota
	ModelUpdateCLMM
)

// CPMMUpdate is the raw reserve snapshot for a constant-product pool.
type CPMMUpdate struct {
	ReserveX domain.Quantity
	ReserveY domain.Quantity
	FeeBps   int32
}

// CLMMUpdate is the raw concentrated-liquidity state: the tick the pool is
// currently sitting at plus a sparse map of initialized ticks to their
// gross liquidity, as an on-chain indexer would expose it.
type CLMMUpdate struct {
	Tick    int64
	TickMap map[int64]domain.Quantity
	FeeBps  int32
}

// ModelUpdate is the tagged union of wire-level pool states a MarketUpdate
// carries (spec section 4.5 "translate u -> pool").
type ModelUpdate struct {
	Kind ModelUpdateKind
	CPMM CPMMUpdate
	CLMM CLMMUpdate
}

// ToPoolModel materializes a domain.PoolModel from the wire-level update,
// so the scheduler can call graph.UpsertPool directly (spec 4.5 InProgress
// + MarketUpdate transition).
//
// CLMM tick prices are derived from tick index via the standard
// 1.0001^tick base (grounded on the concentrated-liquidity convention the
// pack's CLMM reference uses internally, reimplemented here over
// shopspring/decimal instead of that reference's big.Int SDK so it composes
// with domain.Quantity).
func (u ModelUpdate) ToPoolModel() (domain.PoolModel, error) {
	switch u.Kind {
	case ModelUpdateCPMM:
		return domain.NewConstantProduct(u.CPMM.ReserveX, u.CPMM.ReserveY, u.CPMM.FeeBps), nil
	case ModelUpdateCLMM:
		if len(u.CLMM.TickMap) == 0 {
			return domain.PoolModel{}, fmt.Errorf("scheduler: clmm update has no ticks")
		}
		ticks := make([]domain.Tick, 0, len(u.CLMM.TickMap))
		for idx, liquidity := range u.CLMM.TickMap {
			ticks = append(ticks, domain.Tick{Price: priceAtTick(idx), LiquidityGross: liquidity})
		}
		sortTicksByPrice(ticks)
		return domain.NewConcentratedLiquidity(ticks, u.CLMM.FeeBps), nil
	default:
		return domain.PoolModel{}, fmt.Errorf("scheduler: unknown model update kind %d", u.Kind)
	}
}

var tickBase = decimal.RequireFromString("1.0001")

// priceAtTick computes 1.0001^tick by exponentiation-by-squaring, since
// shopspring/decimal has no general fractional-exponent Pow and tick is
// always an integer.
func priceAtTick(tick int64) domain.Quantity {
	neg := tick < 0
	n := tick
	if neg {
		n = -n
	}
	result := decimal.NewFromInt(1)
	b := tickBase
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(b)
		}
		b = b.Mul(b)
		n >>= 1
	}
	if neg {
		result = decimal.NewFromInt(1).Div(result)
	}
	return result
}

func sortTicksByPrice(ticks []domain.Tick) {
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Price.LessThan(ticks[j].Price) })
}
