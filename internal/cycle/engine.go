// Package cycle is the Cycle Engine: log-space Bellman-Ford over a graph
// Snapshot, reconstructing and re-evaluating negative-weight cycles into
// ranked PathQuotes (spec section 4.3). It is read-only against the graph —
// ActivityStats are only ever written back by the Block Scheduler.
package cycle

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/aptosarb/arbcore/internal/graph"
	"github.com/aptosarb/arbcore/internal/quote"
)

// Thresholds bounds the candidates a detection pass accepts (spec 4.3
// "Inputs").
type Thresholds struct {
	MinProfitPct   float64
	SlippageCapPct float64
	MaxCycleLen    int

	// AllowedPairs restricts cycles to only those using edges whose pair is
	// in this set (spec section 6 "detector.allowed_pairs", optional
	// start/end asset allow-list). Empty means no restriction.
	AllowedPairs map[domain.TradingPair]struct{}
}

func (t Thresholds) pairAllowed(pair domain.TradingPair) bool {
	if len(t.AllowedPairs) == 0 {
		return true
	}
	_, ok := t.AllowedPairs[pair]
	return ok
}

// Engine is the default Strategy: it runs the sizing ladder x Bellman-Ford x
// reconstruction x re-evaluation pipeline over every asset in a snapshot.
type Engine struct {
	name    string
	sizing  SizingPolicy
	thresh  Thresholds
	workers int
}

// NewEngine builds a Cycle Engine strategy. workers <= 0 uses
// runtime.NumCPU(), grounded on the teacher's analyzeMarketsConcurrent
// worker-pool sizing default.
func NewEngine(name string, sizing SizingPolicy, thresh Thresholds, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{name: name, sizing: sizing, thresh: thresh, workers: workers}
}

func (e *Engine) Name() string { return e.name }

// RequiredView is an opaque hint for future filtered-snapshot strategies;
// the default engine always wants the full graph.
func (e *Engine) RequiredView() string { return "full" }

// Detect runs the full per-(start asset x size) pipeline over snap and
// returns ranked, deduplicated PathQuotes (spec 4.3 steps 1-5, "Ranking &
// dedup"). Candidates are bounded-parallel across start assets; the inner
// Bellman-Ford relaxation loop itself never suspends.
func (e *Engine) Detect(ctx context.Context, snap *graph.Snapshot) ([]domain.PathQuote, error) {
	vi := buildVertexIndex(snap)
	if len(vi.assets) == 0 {
		return nil, nil
	}

	type work struct {
		asset domain.Asset
	}
	workCh := make(chan work, len(vi.assets))
	resultCh := make(chan domain.PathQuote, len(vi.assets)*4)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				for _, pq := range e.detectFromAsset(snap, vi, w.asset) {
					resultCh <- pq
				}
			}
		}()
	}

	for _, a := range vi.assets {
		workCh <- work{asset: a}
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var candidates []domain.PathQuote
	for pq := range resultCh {
		candidates = append(candidates, pq)
	}

	return rankAndDedup(candidates), nil
}

// detectFromAsset runs the sizing ladder for one starting asset: zero-size
// pass with marginal_price weights (re-evaluated at the smallest, ε, size),
// then one Bellman-Ford run per remaining candidate size.
func (e *Engine) detectFromAsset(snap *graph.Snapshot, vi vertexIndex, start domain.Asset) []domain.PathQuote {
	outEdges := snap.Neighbors(start)
	if len(outEdges) == 0 {
		return nil
	}

	var out []domain.PathQuote
	sizes := e.sizing.Sizes(outEdges)
	for i, size := range sizes {
		res := runBellmanFord(snap, vi, start, size, i == 0)
		for _, edges := range reconstructAllCycles(res) {
			if e.thresh.MaxCycleLen > 0 && len(edges) > e.thresh.MaxCycleLen {
				continue
			}
			pq, ok := e.reevaluate(edges, size)
			if !ok {
				continue
			}
			out = append(out, pq)
		}
	}
	return out
}

// reevaluate re-runs the reconstructed cycle in forward amount space (spec
// 4.3 step 4): thread size through every hop's quote, compute gross_profit
// and profit_pct, reject on profit floor or per-hop slippage.
func (e *Engine) reevaluate(edges []domain.Edge, size domain.Quantity) (domain.PathQuote, bool) {
	amount := size
	for _, edge := range edges {
		if !e.thresh.pairAllowed(edge.Pair) {
			return domain.PathQuote{}, false
		}
		out, err := quote.Quote(edge.Pair, edge.Model, edge.Pair.AssetX, amount)
		if err != nil {
			return domain.PathQuote{}, false
		}
		marginal, merr := quote.MarginalPrice(edge.Model)
		if merr == nil && marginal.Sign() > 0 {
			realized := out.Div(amount)
			slip := 1 - toFloat(realized)/toFloat(marginal)
			if slip > e.thresh.SlippageCapPct {
				return domain.PathQuote{}, false
			}
		}
		amount = out
	}

	grossProfit := amount.Sub(size)
	profitPct := toFloat(grossProfit) / toFloat(size)
	if profitPct < e.thresh.MinProfitPct {
		return domain.PathQuote{}, false
	}

	// Cycle-level slippage: secondary sanity check (spec 9 open-question
	// resolution) against the product of marginal rates along the path.
	marginalOut := size
	for _, edge := range edges {
		mp, err := quote.MarginalPrice(edge.Model)
		if err != nil || mp.Sign() <= 0 {
			marginalOut = domain.Quantity{}
			break
		}
		marginalOut = marginalOut.Mul(mp)
	}
	if marginalOut.Sign() > 0 {
		cycleSlip := 1 - toFloat(amount)/toFloat(marginalOut)
		if cycleSlip > e.thresh.SlippageCapPct {
			return domain.PathQuote{}, false
		}
	}

	hops := make([]domain.Hop, len(edges))
	for i, edge := range edges {
		hops[i] = domain.Hop{Asset: edge.Pair.AssetX, Exchange: edge.Exchange}
	}

	return domain.PathQuote{
		Path:      hops,
		AmountIn:  size,
		AmountOut: amount,
		ProfitPct: profitPct,
	}, true
}

func toFloat(q domain.Quantity) float64 {
	f, _ := q.Float64()
	return f
}

// rankAndDedup groups candidates by canonical cycle key, keeps the one with
// the largest amount_out (the engine's only profit signal before gas
// adjustment), then sorts by profit_pct descending (spec 4.3 "Ranking &
// dedup"). Net-profit re-ranking after gas adjustment is the Evaluator's job
// (spec 4.4 step 4).
func rankAndDedup(candidates []domain.PathQuote) []domain.PathQuote {
	best := make(map[string]domain.PathQuote, len(candidates))
	for _, c := range candidates {
		key := c.CanonicalKey()
		if cur, ok := best[key]; !ok || c.AmountOut.GreaterThan(cur.AmountOut) {
			best[key] = c
		}
	}

	out := make([]domain.PathQuote, 0, len(best))
	for _, pq := range best {
		out = append(out, pq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfitPct > out[j].ProfitPct })
	return out
}
