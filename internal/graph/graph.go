// Package graph is the Price Graph: the one piece of shared mutable state in
// the detector (spec section 4.2). Exactly one writer (the Block Scheduler)
// mutates it; any number of Cycle Engine readers hold Snapshot values
// concurrently. The writer publishes a new immutable Snapshot behind an
// atomic pointer on every mutation (versioned double-buffer / RCU), so
// Snapshot() is wait-free for readers and the writer never blocks on them —
// grounded on the teacher's adapters/storage RWMutex+cache split, generalized
// to lock-free reads since this graph is read far more often than written.
package graph

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aptosarb/arbcore/internal/domain"
)

// Config is the retention/pruning policy used by PruneStale and the edge cap
// reported by EdgeCountOverCap (spec section 4.2 "Retention / pruning
// policy", section 5 "Resource caps"). IngestBatch does not enforce the cap.
type Config struct {
	MaxStaleAge       time.Duration
	MinTVL            domain.Quantity
	OpportunityWindow time.Duration
	ProtectedPairs    map[domain.TradingPair]struct{}
	MaxGraphEdges     int
}

// DefaultConfig mirrors the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxStaleAge:       10 * time.Minute,
		MinTVL:            domain.ZeroQuantity,
		OpportunityWindow: time.Hour,
		ProtectedPairs:    map[domain.TradingPair]struct{}{},
		MaxGraphEdges:     10_000,
	}
}

// Snapshot is an immutable point-in-time view of the graph (spec section 3
// "Snapshot"). It is never mutated after publication; the writer builds a
// fresh one and swaps the pointer.
type Snapshot struct {
	generation uint64
	edges      map[domain.Identity]domain.Edge
	outgoing   map[domain.Asset][]domain.Identity
}

// Generation is a monotonically increasing version counter, useful for
// callers (e.g. tests) that need to observe that a write took effect.
func (s *Snapshot) Generation() uint64 {
	if s == nil {
		return 0
	}
	return s.generation
}

// Neighbors returns the outgoing edges from asset. Order is unspecified but
// stable for this one snapshot (spec 4.2).
func (s *Snapshot) Neighbors(asset domain.Asset) []domain.Edge {
	if s == nil {
		return nil
	}
	ids := s.outgoing[asset]
	out := make([]domain.Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.edges[id])
	}
	return out
}

// Edge looks up one edge by its (pair, exchange, model) identity.
func (s *Snapshot) Edge(id domain.Identity) (domain.Edge, bool) {
	if s == nil {
		return domain.Edge{}, false
	}
	e, ok := s.edges[id]
	return e, ok
}

// Assets returns every vertex with at least one outgoing edge.
func (s *Snapshot) Assets() []domain.Asset {
	if s == nil {
		return nil
	}
	out := make([]domain.Asset, 0, len(s.outgoing))
	for a := range s.outgoing {
		out = append(out, a)
	}
	return out
}

// EdgeCount reports the total number of directed edges held.
func (s *Snapshot) EdgeCount() int {
	if s == nil {
		return 0
	}
	return len(s.edges)
}

// Graph is the single-writer, many-reader Price Graph. The zero value is not
// usable; construct with New.
type Graph struct {
	cfg Config

	// writerMu serializes the writer-side API (UpsertPool/IngestBatch/
	// PruneStale/MarkOpportunity). The spec assumes one writer (the Block
	// Scheduler) but this guards against misuse rather than relying on
	// caller discipline.
	writerMu sync.Mutex
	current  atomic.Pointer[Snapshot]
}

// New constructs an empty Graph.
func New(cfg Config) *Graph {
	g := &Graph{cfg: cfg}
	g.current.Store(&Snapshot{
		edges:    map[domain.Identity]domain.Edge{},
		outgoing: map[domain.Asset][]domain.Identity{},
	})
	return g
}

// Snapshot returns the current graph state. Wait-free: a single atomic load.
func (g *Graph) Snapshot() *Snapshot {
	return g.current.Load()
}

// UpsertPool inserts or replaces a pool's forward and reverse edges under a
// single write scope, preserving ActivityStats for identities that already
// existed (spec 4.2 "upsert_pool").
func (g *Graph) UpsertPool(pool domain.Pool, now time.Time) error {
	g.writerMu.Lock()
	defer g.writerMu.Unlock()
	return g.ingestLocked([]domain.Pool{pool}, now)
}

// IngestBatch applies every pool upsert atomically with respect to
// concurrent Snapshot() readers: either all or none of the batch becomes
// visible (spec 4.2 "ingest_batch").
func (g *Graph) IngestBatch(pools []domain.Pool, now time.Time) error {
	g.writerMu.Lock()
	defer g.writerMu.Unlock()
	return g.ingestLocked(pools, now)
}

func (g *Graph) ingestLocked(pools []domain.Pool, now time.Time) error {
	prev := g.current.Load()
	next := cloneSnapshot(prev)

	for _, pool := range pools {
		if err := pool.Model.Validate(); err != nil {
			return err
		}
		forward := domain.Edge{
			Pair:        pool.Pair,
			Exchange:    pool.Exchange,
			Model:       pool.Model,
			LastUpdated: now,
		}
		reverse := domain.Edge{
			Pair:        pool.Pair.Reversed(),
			Exchange:    pool.Exchange,
			Model:       pool.Model.Invert(),
			LastUpdated: now,
		}
		upsertEdge(next, forward, now)
		upsertEdge(next, reverse, now)
	}

	next.generation = prev.generation + 1
	g.current.Store(next)
	return nil
}

// upsertEdge writes e into snap, preserving the prior ActivityStats if the
// identity already existed (I1, I3: last_updated never regresses). An edge
// with the same (pair, exchange) but a different model is replaced by e,
// which inherits its ActivityStats and LastUpdated floor.
func upsertEdge(snap *Snapshot, e domain.Edge, now time.Time) {
	id := e.Identity()
	if prior, ok := snap.edges[id]; ok {
		e.Activity = prior.Activity
		if e.LastUpdated.Before(prior.LastUpdated) {
			e.LastUpdated = prior.LastUpdated
		}
		snap.edges[id] = e
		return
	}
	kept := make([]domain.Identity, 0, len(snap.outgoing[e.Pair.AssetX])+1)
	for _, old := range snap.outgoing[e.Pair.AssetX] {
		if old.Pair == e.Pair && old.Exchange == e.Exchange {
			prior := snap.edges[old]
			e.Activity = prior.Activity
			if e.LastUpdated.Before(prior.LastUpdated) {
				e.LastUpdated = prior.LastUpdated
			}
			delete(snap.edges, old)
			continue
		}
		kept = append(kept, old)
	}
	snap.edges[id] = e
	snap.outgoing[e.Pair.AssetX] = append(kept, id)
}

// PruneStale removes edges that are all of: older than ttl, below min_tvl,
// no opportunity within opportunity_window, and not in protected_pairs
// (spec 4.2 "Retention / pruning policy"). Any one criterion failing retains
// the edge. Pruning is pool-aware, not edge-aware: a pool's forward and
// reverse edges are always decided as one unit, so a recent opportunity
// recorded against only the forward edge (MarkOpportunity marks the
// traversed direction, never its mirror) still protects the reverse edge
// from deletion (spec 4.2 "the forward/reverse pair is removed together",
// I1 "the graph holds exactly two edges" per pool).
func (g *Graph) PruneStale(ttl time.Duration, now time.Time) int {
	g.writerMu.Lock()
	defer g.writerMu.Unlock()

	prev := g.current.Load()
	next := cloneSnapshot(prev)
	cutoff := now.Add(-ttl)

	groups := make(map[poolKey][]domain.Identity, len(next.edges))
	for id, e := range next.edges {
		key := poolKeyFor(e)
		groups[key] = append(groups[key], id)
	}

	removed := 0
	for _, ids := range groups {
		prunable := true
		for _, id := range ids {
			if !g.eligibleForPrune(next.edges[id], cutoff, now) {
				prunable = false
				break
			}
		}
		if !prunable {
			continue
		}
		for _, id := range ids {
			delete(next.edges, id)
			removed++
		}
	}
	if removed == 0 {
		return 0
	}
	rebuildAdjacency(next)
	next.generation = prev.generation + 1
	g.current.Store(next)
	return removed
}

// poolKey groups a pool's forward and reverse edges under one retention
// decision, independent of which direction each was recorded under.
type poolKey struct {
	assetLo, assetHi domain.Asset
	exchange         domain.ExchangeId
}

func poolKeyFor(e domain.Edge) poolKey {
	a, b := e.Pair.AssetX, e.Pair.AssetY
	if b < a {
		a, b = b, a
	}
	return poolKey{assetLo: a, assetHi: b, exchange: e.Exchange}
}

func (g *Graph) eligibleForPrune(e domain.Edge, cutoff, now time.Time) bool {
	oldEnough := e.LastUpdated.Before(cutoff)
	belowTVL := e.Activity.TVLEstimate.LessThan(g.cfg.MinTVL)
	quiet := e.Activity.LastOpportunityAt.IsZero() || now.Sub(e.Activity.LastOpportunityAt) > g.cfg.OpportunityWindow
	_, protected := g.cfg.ProtectedPairs[e.Pair]
	return oldEnough && belowTVL && quiet && !protected
}

// MarkOpportunity records that the edges forming a winning cycle produced an
// opportunity of the given volume (spec 4.2 "mark_opportunity").
func (g *Graph) MarkOpportunity(edges []domain.Edge, volume domain.Quantity, now time.Time) {
	if len(edges) == 0 {
		return
	}
	g.writerMu.Lock()
	defer g.writerMu.Unlock()

	prev := g.current.Load()
	next := cloneSnapshot(prev)
	for _, e := range edges {
		id := e.Identity()
		cur, ok := next.edges[id]
		if !ok {
			continue
		}
		cur.Activity.OpportunityCount++
		cur.Activity.LastOpportunityAt = now
		cur.Activity.TotalVolume = cur.Activity.TotalVolume.Add(volume)
		next.edges[id] = cur
	}
	next.generation = prev.generation + 1
	g.current.Store(next)
}

// EdgeCountOverCap reports whether the live graph exceeds max_graph_edges,
// signalling the Block Scheduler to force an out-of-band retention sweep.
func (g *Graph) EdgeCountOverCap() bool {
	return g.current.Load().EdgeCount() > g.cfg.MaxGraphEdges
}

func cloneSnapshot(s *Snapshot) *Snapshot {
	edges := make(map[domain.Identity]domain.Edge, len(s.edges))
	for k, v := range s.edges {
		edges[k] = v
	}
	outgoing := make(map[domain.Asset][]domain.Identity, len(s.outgoing))
	for k, v := range s.outgoing {
		cp := make([]domain.Identity, len(v))
		copy(cp, v)
		outgoing[k] = cp
	}
	return &Snapshot{generation: s.generation, edges: edges, outgoing: outgoing}
}

func rebuildAdjacency(s *Snapshot) {
	s.outgoing = make(map[domain.Asset][]domain.Identity, len(s.outgoing))
	for id, e := range s.edges {
		s.outgoing[e.Pair.AssetX] = append(s.outgoing[e.Pair.AssetX], id)
	}
}
