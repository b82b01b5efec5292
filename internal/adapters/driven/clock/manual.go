package clock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
	"github.com/custodia-labs/arbiter/internal/core/ports/driving"
)

// Ensure Manual implements the interface.
var _ driven.Clock = (*Manual)(nil)

// Manual is a clock advanced explicitly by its owner.
// Listeners are notified in subscription order after each step.
type Manual struct {
	mu        sync.Mutex
	step      domain.Step
	listeners []driving.StepListener

	// advancing serialises Advance calls without holding mu during
	// notification, since listeners read Current.
	advancing sync.Mutex
}

// NewManual creates a clock positioned at start.
func NewManual(start domain.Step) *Manual {
	return &Manual{step: start}
}

// Current returns the step being processed.
func (c *Manual) Current() domain.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Subscribe registers a listener for future steps.
func (c *Manual) Subscribe(listener driving.StepListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// Advance moves the clock forward one step and notifies every listener.
// Listener errors are collected; all listeners run regardless.
func (c *Manual) Advance(ctx context.Context) (domain.Step, error) {
	c.advancing.Lock()
	defer c.advancing.Unlock()

	c.mu.Lock()
	c.step++
	step := c.step
	listeners := make([]driving.StepListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	var errs []error
	for _, l := range listeners {
		if err := l.OnStepAdvance(ctx, step); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", step, err))
		}
	}
	return step, errors.Join(errs...)
}

// AdvanceBy advances n steps, stopping at the first step whose listeners fail
// or when ctx is cancelled.
func (c *Manual) AdvanceBy(ctx context.Context, n uint64) (domain.Step, error) {
	step := c.Current()
	for i := uint64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return step, err
		}
		var err error
		step, err = c.Advance(ctx)
		if err != nil {
			return step, err
		}
	}
	return step, nil
}
