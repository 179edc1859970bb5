package domain

import "errors"

// Quote-local errors: non-fatal, the caller drops the candidate.
var (
	ErrWrongDirection        = errors.New("quote: wrong direction for this edge")
	ErrInsufficientLiquidity = errors.New("quote: insufficient liquidity")
	ErrOverflow              = errors.New("quote: arithmetic overflow")
)

// Graph errors.
var (
	// ErrGraphInvalidModel is returned by upsert_pool when the pool model is
	// internally inconsistent (zero reserves, empty/unsorted ticks, etc).
	ErrGraphInvalidModel = errors.New("graph: invalid pool model")

	// ErrGraphCorruption signals an invariant violation detected at runtime.
	// No code path in this module returns it, and the scheduler has no step
	// that drops or rebuilds the graph state.
	ErrGraphCorruption = errors.New("graph: invariant violation")
)

// Evaluator errors: per-candidate, the caller drops the candidate.
var (
	ErrSimulationFailed  = errors.New("evaluator: simulation failed")
	ErrSimulationTimeout = errors.New("evaluator: simulation timed out")
	ErrGasPriceStale     = errors.New("evaluator: gas unit price is stale")
)

// ErrChannelClosed signals the upstream Ingestor ended; the scheduler drains
// and exits cleanly. This is the only error surfaced to the process owner.
var ErrChannelClosed = errors.New("scheduler: upstream channel closed")

// StrategyError wraps a failure from a single named strategy/run so that one
// bad strategy never takes down the others.
type StrategyError struct {
	Name string
	Err  error
}

func (e *StrategyError) Error() string {
	return "strategy " + e.Name + " failed: " + e.Err.Error()
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}
