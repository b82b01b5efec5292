package events

import (
	"context"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
)

// Multi publishes each event to every sink in order.
type Multi []driven.EventSink

// Ensure Multi implements the interface.
var _ driven.EventSink = Multi(nil)

// Publish forwards event to all non-nil sinks.
func (m Multi) Publish(ctx context.Context, event domain.Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(ctx, event)
		}
	}
}
