package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
	"github.com/custodia-labs/arbiter/internal/core/ports/driving"
)

// Snapshot is the dashboard's view of the engine after one step.
type Snapshot struct {
	Step    domain.Step
	State   *domain.ArbitrageState
	Pending []domain.Task
}

// Messages delivered to the Dashboard.
type (
	snapshotMsg Snapshot
	eventMsg    domain.Event
	doneMsg     struct{ err error }
)

// feedBuffer bounds how far the run may get ahead of rendering.
const feedBuffer = 256

// Feed carries events and snapshots from a running stack to the dashboard.
// Sends block until the dashboard receives them or ctx is done.
type Feed struct {
	ch chan tea.Msg
}

var _ driven.EventSink = (*Feed)(nil)

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{ch: make(chan tea.Msg, feedBuffer)}
}

// Publish implements driven.EventSink.
func (f *Feed) Publish(ctx context.Context, event domain.Event) {
	f.send(ctx, eventMsg(event))
}

// Snapshot delivers the state after a step.
func (f *Feed) Snapshot(ctx context.Context, snap Snapshot) {
	f.send(ctx, snapshotMsg(snap))
}

// Done reports that the run has finished, with its error if any.
func (f *Feed) Done(ctx context.Context, err error) {
	f.send(ctx, doneMsg{err: err})
}

func (f *Feed) send(ctx context.Context, msg tea.Msg) {
	select {
	case f.ch <- msg:
	case <-ctx.Done():
	}
}

// next waits for the following message.
func (f *Feed) next() tea.Cmd {
	return func() tea.Msg {
		return <-f.ch
	}
}

// StateReader loads what a snapshot shows.
type StateReader interface {
	State(ctx context.Context) (*domain.ArbitrageState, error)
}

// PendingLister lists scheduled tasks.
type PendingLister interface {
	Pending(ctx context.Context) ([]domain.Task, error)
}

// Snapshotter is a step listener that publishes a Snapshot on every step.
// Subscribe it after the scheduler so each snapshot reflects the firings of its step.
type Snapshotter struct {
	feed    *Feed
	engine  StateReader
	pending PendingLister
}

var _ driving.StepListener = (*Snapshotter)(nil)

// NewSnapshotter creates a listener reading engine and pending from the running stack.
func NewSnapshotter(feed *Feed, engine StateReader, pending PendingLister) *Snapshotter {
	return &Snapshotter{feed: feed, engine: engine, pending: pending}
}

// OnStepAdvance implements driving.StepListener.
func (s *Snapshotter) OnStepAdvance(ctx context.Context, step domain.Step) error {
	state, err := s.engine.State(ctx)
	if err != nil {
		return err
	}
	pending, err := s.pending.Pending(ctx)
	if err != nil {
		return err
	}
	s.feed.Snapshot(ctx, Snapshot{Step: step, State: state, Pending: pending})
	return nil
}
