package events

import (
	"context"
	"sync"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.EventSink = (*Recorder)(nil)

// Recorder stores every published event in order.
type Recorder struct {
	mu     sync.RWMutex
	events []domain.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish appends event.
func (r *Recorder) Publish(_ context.Context, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []domain.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns recorded events of the given kinds, in order.
func (r *Recorder) Kinds(kinds ...domain.EventKind) []domain.Event {
	want := make(map[domain.EventKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Event
	for _, e := range r.events {
		if want[e.Kind] {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind domain.EventKind) int {
	return len(r.Kinds(kind))
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
