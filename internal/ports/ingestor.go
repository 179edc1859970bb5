package ports

import (
	"context"

	"github.com/aptosarb/arbcore/internal/scheduler"
)

// Ingestor is the chain-facing capability that turns raw block/mempool
// activity into the scheduler's DetectorMessage stream (spec section 3
// "Ingestor", section 6). Implementations live under internal/adapters;
// the core never depends on a specific chain SDK.
type Ingestor interface {
	// Run feeds DetectorMessages into out until ctx is cancelled or a fatal
	// ingestion error occurs. The caller owns out and must not close it
	// concurrently with a send.
	Run(ctx context.Context, out chan<- scheduler.DetectorMessage) error
}
