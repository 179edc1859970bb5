// Package evaluator is the Gas & Net-Profit Evaluator: it turns surviving
// PathQuotes into gas-adjusted CycleEval results by fanning GasOracle
// simulations out in parallel under a global timeout, grounded on the
// teacher's rate-limited outbound-call pattern in adapters/polymarket's
// client.go (golang.org/x/time/rate) generalized from one limiter per HTTP
// route to one limiter per external capability (spec section 4.4).
package evaluator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aptosarb/arbcore/internal/domain"
	"golang.org/x/time/rate"
)

// SimulationRequest is the opaque payload handed to GasOracle.Simulate. Its
// encoding is implementation/chain-defined (spec 9 "Gas payload encoding");
// this core only needs enough structure to describe a multi-hop swap.
type SimulationRequest struct {
	Hops      []SimulationHop
	StartSize domain.Quantity
}

// SimulationHop names one leg of the simulated swap.
type SimulationHop struct {
	Exchange domain.ExchangeId
	PoolID   string
	AmountIn domain.Quantity
}

// SimulationResult is what GasOracle.Simulate returns for one candidate.
type SimulationResult struct {
	GasUsed domain.Quantity
	Success bool
}

// GasOracle estimates execution gas cost for a candidate path and reports
// the current gas unit price (spec section 6 "Capabilities consumed").
type GasOracle interface {
	Simulate(ctx context.Context, req SimulationRequest) (SimulationResult, error)
	GasUnitPrice(ctx context.Context) (price domain.Quantity, asOf time.Time, err error)
	GasToken() domain.Asset
}

// PriceOracle converts between assets, used to express gas cost in the
// cycle's start asset.
type PriceOracle interface {
	Price(ctx context.Context, from, to domain.Asset) (domain.Quantity, error)
}

// Config bounds the evaluator's parallel fan-out (spec 4.4, 5 "Resource
// caps").
type Config struct {
	SimTimeout       time.Duration
	MaxConcurrent    int
	MinNetProfit     domain.Quantity
	GasPriceMaxAge   time.Duration
	OracleRatePerSec float64
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		SimTimeout:       50 * time.Millisecond,
		MaxConcurrent:    16,
		MinNetProfit:     domain.ZeroQuantity,
		GasPriceMaxAge:   5 * time.Minute,
		OracleRatePerSec: 20,
	}
}

// DroppedCounter receives a reason each time a candidate is dropped, so the
// code that builds the Evaluator (cmd/detector) can export
// metrics.dropped_by_gas_total without this package depending on the
// metrics package directly.
type DroppedCounter func(reason string)

// Evaluator runs the gas/net-profit pass over a batch of PathQuotes.
type Evaluator struct {
	gas     GasOracle
	price   PriceOracle
	cfg     Config
	limiter *rate.Limiter
	dropped DroppedCounter
}

func New(gas GasOracle, price PriceOracle, cfg Config, dropped DroppedCounter) *Evaluator {
	if dropped == nil {
		dropped = func(string) {}
	}
	return &Evaluator{
		gas:     gas,
		price:   price,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.OracleRatePerSec), int(cfg.OracleRatePerSec)+1),
		dropped: dropped,
	}
}

// Candidate pairs a PathQuote with the simulation payload an upstream
// converter (the Block Scheduler, which knows pool ids) built for it.
type Candidate struct {
	Quote      domain.PathQuote
	StartAsset domain.Asset
	Request    SimulationRequest
}

// Evaluated is a candidate that survived simulation, carrying its CycleEval.
type Evaluated struct {
	Candidate Candidate
	Eval      domain.CycleEval
}

// Evaluate fans Simulate calls out across all candidates of one detection
// cycle under a shared timeout, computes net_profit, filters by
// min_net_profit, and re-ranks by net_profit descending (spec 4.4 steps
// 2-4). Gas price staleness beyond GasPriceMaxAge causes the whole batch to
// be refused (spec 4.4 "Gas unit price ... staleness").
func (ev *Evaluator) Evaluate(ctx context.Context, candidates []Candidate) ([]Evaluated, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	gasPrice, asOf, err := ev.gas.GasUnitPrice(ctx)
	if err != nil {
		return nil, err
	}
	if time.Since(asOf) > ev.cfg.GasPriceMaxAge {
		return nil, domain.ErrGasPriceStale
	}

	ctx, cancel := context.WithTimeout(ctx, ev.cfg.SimTimeout)
	defer cancel()

	sem := make(chan struct{}, max(ev.cfg.MaxConcurrent, 1))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []Evaluated

	for _, c := range candidates {
		wg.Add(1)
		go func(c Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ev.limiter.Wait(ctx); err != nil {
				ev.dropped("rate_limited")
				return
			}

			result, err := ev.gas.Simulate(ctx, c.Request)
			if err != nil {
				if ctx.Err() != nil {
					ev.dropped("timeout")
				} else {
					ev.dropped("simulation_failed")
				}
				return
			}
			if !result.Success {
				ev.dropped("simulation_unsuccessful")
				return
			}

			px, err := ev.price.Price(ctx, ev.gas.GasToken(), c.StartAsset)
			if err != nil {
				ev.dropped("price_oracle_failed")
				return
			}

			grossProfit := c.Quote.AmountOut.Sub(c.Quote.AmountIn)
			gasCost := result.GasUsed.Mul(gasPrice).Mul(px)
			netProfit := grossProfit.Sub(gasCost)

			eval := domain.CycleEval{
				GrossProfit:  grossProfit,
				GasEstimate:  result.GasUsed,
				GasUnitPrice: gasPrice,
				NetProfit:    netProfit,
			}

			if netProfit.LessThan(ev.cfg.MinNetProfit) {
				ev.dropped("below_min_net_profit")
				return
			}

			mu.Lock()
			results = append(results, Evaluated{Candidate: c, Eval: eval})
			mu.Unlock()
		}(c)
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Eval.NetProfit.GreaterThan(results[j].Eval.NetProfit)
	})
	return results, nil
}
