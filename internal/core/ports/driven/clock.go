package driven

import "github.com/custodia-labs/arbiter/internal/core/domain"

// Clock exposes the current step of the external discrete clock.
// The core never advances it.
type Clock interface {
	// Current returns the step being processed.
	Current() domain.Step
}
