package driven

import (
	"context"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

// EventSink receives scheduler and engine notifications.
// Publish must not call back into the core.
type EventSink interface {
	Publish(ctx context.Context, event domain.Event)
}
