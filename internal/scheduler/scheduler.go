// Package scheduler is the Block Scheduler: a message-driven state machine
// that serializes graph writes to block boundaries and triggers one
// detection cycle per block (spec section 4.5). It is grounded on the
// teacher's application/scanner.Scanner Run/runCycle/cycle split
// (internal/application/scanner/scanner.go), generalized from a ticker-
// driven poll loop into a state machine consuming a channel of
// DetectorMessage values instead of polling an external API on an interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aptosarb/arbcore/internal/cycle"
	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/aptosarb/arbcore/internal/evaluator"
	"github.com/aptosarb/arbcore/internal/graph"
	"github.com/aptosarb/arbcore/internal/metrics"
	"github.com/aptosarb/arbcore/internal/quote"
)

// State is the scheduler's current position in the block lifecycle (spec
// 4.5 "States").
type State int

const (
	StateWaiting State = iota
	StateInProgress
)

func (s State) String() string {
	if s == StateInProgress {
		return "in_progress"
	}
	return "waiting"
}

// Config bounds the scheduler's periodic actions and output behavior (spec
// 4.5 "Additional periodic actions", section 6 configuration table).
type Config struct {
	PruneEveryBlocks        uint64
	PruneTTL                time.Duration
	DedupWindow             time.Duration
	DedupReemitThresholdPct float64
	OutputBufferSize        int
	BlockBudget             time.Duration
}

// DefaultConfig mirrors the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		PruneEveryBlocks:        100,
		PruneTTL:                10 * time.Minute,
		DedupWindow:             time.Second,
		DedupReemitThresholdPct: 0.05,
		OutputBufferSize:        256,
		BlockBudget:             200 * time.Millisecond,
	}
}

// Scheduler owns the Waiting/InProgress state machine wiring the Price
// Graph, the Cycle Engine registry, and the Gas & Net-Profit Evaluator
// together (spec 4.5). A single goroutine should own Run; the mutex guards
// against a caller misusing it from two goroutines at once, the way Graph's
// writerMu guards writer misuse rather than relying purely on discipline.
type Scheduler struct {
	mu    sync.Mutex
	state State

	currentBlock      uint64
	ingestedThisBlock uint64
	blocksSincePrune  uint64

	graph     *graph.Graph
	registry  cycle.Registry
	evaluator *evaluator.Evaluator
	metrics   *metrics.Registry
	dedup     *dedupWindow
	cfg       Config

	out chan domain.Opportunity
}

// New builds a Scheduler. registry must already hold every Strategy the
// scheduler should run per block.
func New(g *graph.Graph, registry cycle.Registry, ev *evaluator.Evaluator, m *metrics.Registry, cfg Config) *Scheduler {
	return &Scheduler{
		state:     StateWaiting,
		graph:     g,
		registry:  registry,
		evaluator: ev,
		metrics:   m,
		dedup:     newDedupWindow(cfg.DedupWindow, cfg.DedupReemitThresholdPct),
		cfg:       cfg,
		out:       make(chan domain.Opportunity, max(cfg.OutputBufferSize, 1)),
	}
}

// Output is the downstream channel opportunities are published on. Callers
// must drain it; the scheduler drops the oldest buffered opportunity rather
// than block a detection cycle (spec 4.5 "bounded output channel").
func (s *Scheduler) Output() <-chan domain.Opportunity {
	return s.out
}

// State reports the scheduler's current lifecycle state (test/debug hook).
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run consumes in until ctx is cancelled or in is closed, dispatching every
// DetectorMessage through the state machine (spec 4.5 transition table).
func (s *Scheduler) Run(ctx context.Context, in <-chan DetectorMessage) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				return domain.ErrChannelClosed
			}
			s.handle(ctx, msg)
		}
	}
}

func (s *Scheduler) handle(ctx context.Context, msg DetectorMessage) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch msg.Kind {
	case KindBlockStart:
		if state == StateInProgress {
			slog.Warn("block_start received while in_progress, discarding in-flight block",
				"discarded_block", s.currentBlock, "new_block", msg.BlockStart.BlockNumber)
		}
		s.mu.Lock()
		s.currentBlock = msg.BlockStart.BlockNumber
		s.ingestedThisBlock = 0
		s.state = StateInProgress
		s.mu.Unlock()

	case KindMarketUpdate:
		if state == StateWaiting {
			slog.Warn("market_update received while waiting, ignoring", "pool_id", msg.MarketUpdate.PoolID)
			return
		}
		s.applyMarketUpdate(msg.MarketUpdate)

	case KindBlockEnd:
		if state == StateWaiting {
			slog.Warn("block_end received while waiting, ignoring", "block", msg.BlockEnd.BlockNumber)
			return
		}
		s.runDetectionCycle(ctx, msg.BlockEnd.BlockNumber)
		s.mu.Lock()
		s.state = StateWaiting
		s.mu.Unlock()
	}
}

func (s *Scheduler) applyMarketUpdate(u MarketUpdate) {
	model, err := u.Model.ToPoolModel()
	if err != nil {
		slog.Warn("market_update rejected: bad model", "pool_id", u.PoolID, "err", err)
		return
	}
	pool := domain.Pool{Pair: u.Pair, Exchange: u.Exchange, Model: model}
	if err := s.graph.UpsertPool(pool, time.Now()); err != nil {
		slog.Warn("market_update rejected by graph", "pool_id", u.PoolID, "err", err)
		return
	}
	s.mu.Lock()
	s.ingestedThisBlock++
	s.mu.Unlock()
	s.metrics.IngestedUpdates.Inc()
}

// runDetectionCycle takes a Snapshot, runs every registered Strategy, gas-
// adjusts survivors, dedups against the sliding window, marks winning edges,
// and publishes emitted Opportunities (spec 4.5 InProgress + BlockEnd
// transition).
func (s *Scheduler) runDetectionCycle(ctx context.Context, blockNumber uint64) {
	start := time.Now()
	snap := s.graph.Snapshot()

	results, errs := s.registry.DetectAll(ctx, snap)
	for name, err := range errs {
		slog.Warn("strategy failed", "strategy", name, "err", err)
	}

	var candidates []evaluator.Candidate
	edgesByKey := make(map[string][]domain.Edge)
	strategyByKey := make(map[string]string)
	for strategyName, quotes := range results {
		for _, pq := range quotes {
			edges, ok := resolveEdges(snap, pq.Path)
			if !ok {
				slog.Warn("could not resolve path quote back to edges, dropping", "strategy", strategyName)
				continue
			}
			req, err := buildSimulationRequest(edges, pq.AmountIn)
			if err != nil {
				slog.Warn("could not build simulation request, dropping", "strategy", strategyName, "err", err)
				continue
			}
			key := pq.CanonicalKey()
			edgesByKey[key] = edges
			strategyByKey[key] = strategyName
			candidates = append(candidates, evaluator.Candidate{
				Quote:      pq,
				StartAsset: pq.Path[0].Asset,
				Request:    req,
			})
		}
	}

	s.metrics.RunsTotal.Inc()
	s.metrics.EdgesActive.Set(float64(snap.EdgeCount()))

	if len(candidates) > 0 {
		evaluated, err := s.evaluator.Evaluate(ctx, candidates)
		if err != nil {
			slog.Warn("evaluator refused batch", "block", blockNumber, "err", err)
		} else {
			now := time.Now()
			for _, e := range evaluated {
				key := e.Candidate.Quote.CanonicalKey()
				if !s.dedup.allow(key, e.Eval.NetProfit, now) {
					s.metrics.DedupSuppressed.Inc()
					continue
				}
				edges := edgesByKey[key]
				opp := domain.Opportunity{
					ID:            fmt.Sprintf("%d-%s", blockNumber, key),
					Strategy:      strategyByKey[key],
					Path:          edges,
					InputAmount:   e.Candidate.Quote.AmountIn,
					ExpectedGross: e.Eval.GrossProfit,
					ExpectedNet:   e.Eval.NetProfit,
					GasEstimate:   e.Eval.GasEstimate,
					BlockNumber:   blockNumber,
					DetectedAt:    now,
				}
				s.publish(opp)
				s.graph.MarkOpportunity(edges, opp.InputAmount, now)
				s.metrics.OpportunitiesTotal.Inc()
			}
		}
	}

	s.dedup.sweep(time.Now())

	s.mu.Lock()
	s.blocksSincePrune++
	shouldPrune := (s.cfg.PruneEveryBlocks > 0 && s.blocksSincePrune >= s.cfg.PruneEveryBlocks) || s.graph.EdgeCountOverCap()
	if shouldPrune {
		s.blocksSincePrune = 0
	}
	s.mu.Unlock()
	if shouldPrune {
		removed := s.graph.PruneStale(s.cfg.PruneTTL, time.Now())
		slog.Info("pruned stale edges", "removed", removed)
	}

	elapsed := time.Since(start)
	s.metrics.DetectionMs.Observe(float64(elapsed.Milliseconds()))
	if s.cfg.BlockBudget > 0 && elapsed > s.cfg.BlockBudget {
		slog.Warn("detection cycle exceeded block budget",
			"block", blockNumber, "elapsed", elapsed, "budget", s.cfg.BlockBudget)
	}
}

// publish sends opp to the output channel, dropping the oldest buffered
// opportunity instead of blocking when the channel is full (spec 4.5
// "bounded output channel").
func (s *Scheduler) publish(opp domain.Opportunity) {
	select {
	case s.out <- opp:
		return
	default:
	}
	select {
	case <-s.out:
		s.metrics.OutputDropped.Inc()
	default:
	}
	select {
	case s.out <- opp:
	default:
	}
}

// resolveEdges maps a PathQuote's (asset, exchange) hop sequence back onto
// the concrete Edges the snapshot holds for it, since PathQuote only carries
// enough to name the path, not replay it.
func resolveEdges(snap *graph.Snapshot, hops []domain.Hop) ([]domain.Edge, bool) {
	n := len(hops)
	if n == 0 {
		return nil, false
	}
	edges := make([]domain.Edge, n)
	for i, hop := range hops {
		next := hops[(i+1)%n].Asset
		pair := domain.TradingPair{AssetX: hop.Asset, AssetY: next}
		found := false
		for _, e := range snap.Neighbors(hop.Asset) {
			if e.Pair == pair && e.Exchange == hop.Exchange {
				edges[i] = e
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return edges, true
}

// buildSimulationRequest threads amountIn through each edge's quote to
// recover the per-hop amount the GasOracle needs to simulate (PathQuote only
// keeps the start and end amounts).
func buildSimulationRequest(edges []domain.Edge, amountIn domain.Quantity) (evaluator.SimulationRequest, error) {
	hops := make([]evaluator.SimulationHop, len(edges))
	amount := amountIn
	for i, e := range edges {
		hops[i] = evaluator.SimulationHop{
			Exchange: e.Exchange,
			PoolID:   syntheticPoolID(e),
			AmountIn: amount,
		}
		out, err := quote.Quote(e.Pair, e.Model, e.Pair.AssetX, amount)
		if err != nil {
			return evaluator.SimulationRequest{}, err
		}
		amount = out
	}
	return evaluator.SimulationRequest{Hops: hops, StartSize: amountIn}, nil
}

// syntheticPoolID stands in for a chain-level pool id: the graph's Edge
// identity is (pair, exchange, model), not a chain address, so this is the
// best identifier a GasOracle simulation payload can carry without the
// Ingestor's raw pool id threaded all the way through.
func syntheticPoolID(e domain.Edge) string {
	return fmt.Sprintf("%s/%s@%s", e.Pair.AssetX, e.Pair.AssetY, e.Exchange)
}
