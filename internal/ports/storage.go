package ports

import (
	"context"
	"time"

	"github.com/aptosarb/arbcore/internal/domain"
)

// Storage persists the opportunities emitted by each detection cycle so
// they can be replayed or audited later (spec section 9 "Opportunity
// history", a supplemented feature not named by the distilled spec).
type Storage interface {
	// SaveOpportunities persists one batch of emitted opportunities.
	SaveOpportunities(ctx context.Context, opportunities []domain.Opportunity) error

	// GetHistory returns opportunities detected within [from, to], both ends
	// inclusive.
	GetHistory(ctx context.Context, from, to time.Time) ([]domain.Opportunity, error)

	// Close releases the underlying connection cleanly.
	Close() error
}
