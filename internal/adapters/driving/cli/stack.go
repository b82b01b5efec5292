package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/arbiter/internal/adapters/driven/clock"
	"github.com/custodia-labs/arbiter/internal/adapters/driven/events"
	"github.com/custodia-labs/arbiter/internal/adapters/driven/market"
	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
	"github.com/custodia-labs/arbiter/internal/core/ports/driving"
	"github.com/custodia-labs/arbiter/internal/core/services"
)

// stack is one assembled scheduler, engine and simulated market.
type stack struct {
	settings  *domain.AppSettings
	clock     *clock.Manual
	oracle    *market.Oracle
	pool      *market.Pool
	scheduler *services.TaskScheduler
	engine    *services.ArbitrageEngine
	recorder  *events.Recorder
}

// stackOptions selects storage and observers for newStack.
type stackOptions struct {
	tasks   driven.TaskStore
	engines driven.EngineStore
	start   domain.Step
	feeBps  uint32
	sinks   []driven.EventSink

	// before runs ahead of the scheduler on every step.
	before driving.StepListener
}

func newStack(ctx context.Context, settings *domain.AppSettings, opts stackOptions) (*stack, error) {
	recorder := events.NewRecorder()
	sink := events.Multi(append([]driven.EventSink{recorder}, opts.sinks...))

	clk := clock.NewManual(opts.start)
	oracle := market.NewOracle()
	pool, err := market.NewPool(opts.feeBps)
	if err != nil {
		return nil, err
	}

	scheduler := services.NewTaskScheduler(settings.Scheduler, clk, opts.tasks, sink)
	engine, err := services.NewArbitrageEngine(ctx, settings.Engine, scheduler, oracle, pool, opts.engines, sink)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	// Tasks loaded from durable storage need the engine capability bound.
	scheduler.Bind(engine)

	if opts.before != nil {
		clk.Subscribe(opts.before)
	}
	clk.Subscribe(scheduler)

	return &stack{
		settings:  settings,
		clock:     clk,
		oracle:    oracle,
		pool:      pool,
		scheduler: scheduler,
		engine:    engine,
		recorder:  recorder,
	}, nil
}

// resumeStep returns the step a durable run continues from.
func resumeStep(ctx context.Context, tasks driven.TaskStore, engines driven.EngineStore, address domain.Address) (domain.Step, error) {
	var step domain.Step

	pending, err := tasks.ListTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing tasks: %w", err)
	}
	for _, t := range pending {
		if t.CreatedStep > step {
			step = t.CreatedStep
		}
	}

	state, err := engines.Get(ctx, address)
	switch {
	case err == nil:
		if state.LastTriggerStep > step {
			step = state.LastTriggerStep
		}
	case !isNotFound(err):
		return 0, fmt.Errorf("loading engine state: %w", err)
	}
	return step, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
