package cycle

import (
	"context"

	"github.com/aptosarb/arbcore/internal/domain"
	"github.com/aptosarb/arbcore/internal/graph"
)

// Strategy is the Cycle Engine's plug-in capability (spec section 9
// "Strategy plug-ins"): a name, a hint about what graph view it needs, and a
// detection function. Adapted from the teacher's strategy.Registry — a flat
// map keyed by name, not a type hierarchy.
type Strategy interface {
	Name() string
	RequiredView() string
	Detect(ctx context.Context, snap *graph.Snapshot) ([]domain.PathQuote, error)
}

// Registry maps a strategy name to its implementation.
type Registry map[string]Strategy

// NewRegistry builds an empty registry.
func NewRegistry() Registry {
	return make(Registry)
}

// Register adds a strategy, keyed by its own name.
func (r Registry) Register(s Strategy) {
	r[s.Name()] = s
}

// Get looks up a strategy by name.
func (r Registry) Get(name string) (Strategy, bool) {
	s, ok := r[name]
	return s, ok
}

// DetectAll runs every registered strategy against snap, tagging each
// resulting PathQuote's originating strategy is the caller's responsibility
// (spec 7 "StrategyFailed(name)" — one strategy erroring never stops the
// others).
func (r Registry) DetectAll(ctx context.Context, snap *graph.Snapshot) (map[string][]domain.PathQuote, map[string]error) {
	results := make(map[string][]domain.PathQuote, len(r))
	errs := make(map[string]error)
	for name, s := range r {
		pqs, err := s.Detect(ctx, snap)
		if err != nil {
			errs[name] = &domain.StrategyError{Name: name, Err: err}
			continue
		}
		results[name] = pqs
	}
	return results, errs
}
