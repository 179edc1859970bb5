// Package ports holds the small capability interfaces the core depends on
// but never implements itself — adapters live under internal/adapters and
// cmd/detector wires a concrete implementation into each one (spec section
// 6 "Capabilities consumed"). Adapted from the teacher's ports package: same
// one-interface-per-file shape, new capabilities for this domain.
package ports

import (
	"context"

	"github.com/aptosarb/arbcore/internal/domain"
)

// Notifier presents detected opportunities to an operator or downstream
// system.
type Notifier interface {
	// Notify is called with each batch of emitted opportunities, in the
	// order the scheduler published them (cmd/detector flushes a batch on a
	// 200 ms ticker, so one batch may span several blocks or part of one).
	Notify(ctx context.Context, opportunities []domain.Opportunity) error
}
