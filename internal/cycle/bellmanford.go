package cycle

import (
	"math"
	"sort"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/aptosarb/arbcore/internal/graph"
)

// vertexIndex assigns a stable integer index to every asset that appears as
// a vertex, sorted so that two runs over the same snapshot see the same
// ordering (required for the determinism property of the sizing/BF pass).
type vertexIndex struct {
	assets []domain.Asset
	byName map[domain.Asset]int
}

func buildVertexIndex(snap *graph.Snapshot) vertexIndex {
	assets := snap.Assets()
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
	byName := make(map[domain.Asset]int, len(assets))
	for i, a := range assets {
		byName[a] = i
	}
	return vertexIndex{assets: assets, byName: byName}
}

// predEdge records the edge used to relax a vertex during Bellman-Ford: it
// was reached from vertex `from` via `edge`.
type predEdge struct {
	from int
	edge domain.Edge
	set  bool
}

// bellmanFordResult is the relaxation state after running |V| iterations.
type bellmanFordResult struct {
	vi             vertexIndex
	pred           []predEdge
	relaxedOnFinal []int // vertices relaxed during the |V|-th (mandatory) pass
}

// runBellmanFord runs the log-space relaxation for exactly |V| iterations
// (not |V|-1), per spec section 4.3 step 2: the final pass is mandatory and
// any edge relaxed on it flags a negative-weight cycle, i.e. an arbitrage
// opportunity at this size.
func runBellmanFord(snap *graph.Snapshot, vi vertexIndex, start domain.Asset, size domain.Quantity, useMarginal bool) *bellmanFordResult {
	n := len(vi.assets)
	startIdx, ok := vi.byName[start]
	if !ok {
		return &bellmanFordResult{vi: vi}
	}

	dist := make([]float64, n)
	reached := make([]bool, n)
	pred := make([]predEdge, n)
	for i := range dist {
		dist[i] = math.MaxFloat64
	}
	dist[startIdx] = 0
	reached[startIdx] = true

	var relaxedOnFinal []int

	for iter := 0; iter < n; iter++ {
		final := iter == n-1
		for vIdx, asset := range vi.assets {
			if !reached[vIdx] {
				continue
			}
			for _, e := range snap.Neighbors(asset) {
				w, werr := edgeWeight(e, size, useMarginal)
				if werr != nil {
					continue // illiquid or invalid edge at this size: skip, non-fatal
				}
				targetIdx, ok := vi.byName[e.Pair.AssetY]
				if !ok {
					continue
				}
				nd := dist[vIdx] + w
				if nd < dist[targetIdx] {
					dist[targetIdx] = nd
					pred[targetIdx] = predEdge{from: vIdx, edge: e, set: true}
					reached[targetIdx] = true
					if final {
						relaxedOnFinal = append(relaxedOnFinal, targetIdx)
					}
				}
			}
		}
	}

	return &bellmanFordResult{vi: vi, pred: pred, relaxedOnFinal: relaxedOnFinal}
}

// reconstructAllCycles reconstructs every distinct negative cycle flagged on
// the |V|-th relaxation pass (spec 4.3 step 3): walk predecessors |V| steps
// from a flagged vertex to guarantee landing inside the cycle, then collect
// edges walking backward until the start vertex repeats. Returned edge
// slices are in forward traversal order
// (edges[i].Pair.AssetY == edges[i+1].Pair.AssetX).
func reconstructAllCycles(res *bellmanFordResult) [][]domain.Edge {
	n := len(res.vi.assets)
	var out [][]domain.Edge
	for _, flagged := range res.relaxedOnFinal {
		v := flagged
		landed := true
		for i := 0; i < n; i++ {
			if !res.pred[v].set {
				landed = false
				break
			}
			v = res.pred[v].from
		}
		if !landed {
			continue
		}

		start := v
		var edges []domain.Edge
		cur := v
		for i := 0; i <= n; i++ {
			pe := res.pred[cur]
			if !pe.set {
				edges = nil
				break
			}
			edges = append(edges, pe.edge)
			cur = pe.from
			if cur == start {
				break
			}
		}
		if len(edges) == 0 {
			continue
		}
		for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
			edges[i], edges[j] = edges[j], edges[i]
		}
		out = append(out, edges)
	}
	return out
}
