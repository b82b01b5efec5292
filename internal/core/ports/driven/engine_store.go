package driven

import (
	"context"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

// EngineStore persists arbitrage engine state.
type EngineStore interface {
	// Get retrieves the state of the engine at address.
	// Returns domain.ErrNotFound if no state was saved.
	Get(ctx context.Context, address domain.Address) (*domain.ArbitrageState, error)

	// Save stores or replaces the state.
	Save(ctx context.Context, state *domain.ArbitrageState) error
}
