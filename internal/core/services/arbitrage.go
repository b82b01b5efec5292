package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
	"github.com/custodia-labs/arbiter/internal/core/ports/driving"
	"github.com/custodia-labs/arbiter/internal/logger"
)

// Ensure ArbitrageEngine implements the interface.
var _ driving.ArbitrageEngine = (*ArbitrageEngine)(nil)

// ArbitrageEngine compares two oracle prices each time it fires, swaps a
// bounded share of the overvalued token through a constant-product pool,
// and re-enrols itself with the scheduler.
//
// The engine is both owner and target of its task, so the scheduler
// dispatches its trigger as a self-call.
type ArbitrageEngine struct {
	settings  domain.EngineSettings
	scheduler driving.TaskScheduler
	prices    driven.PriceFeed
	pool      driven.LiquidityPool
	store     driven.EngineStore
	events    driven.EventSink
}

// NewArbitrageEngine creates an engine, initialising idle state on first use.
// events may be nil.
func NewArbitrageEngine(
	ctx context.Context,
	settings domain.EngineSettings,
	scheduler driving.TaskScheduler,
	prices driven.PriceFeed,
	pool driven.LiquidityPool,
	store driven.EngineStore,
	events driven.EventSink,
) (*ArbitrageEngine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if settings.MinAmountOut == nil {
		settings.MinAmountOut = new(big.Int)
	}
	if events == nil {
		events = nopSink{}
	}

	e := &ArbitrageEngine{
		settings:  settings,
		scheduler: scheduler,
		prices:    prices,
		pool:      pool,
		store:     store,
		events:    events,
	}

	state, err := store.Get(ctx, settings.Address)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		state = domain.NewArbitrageState(settings.Address, settings.Owner, settings.TokenA, settings.TokenB)
		if err := store.Save(ctx, state); err != nil {
			return nil, fmt.Errorf("saving engine state: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("loading engine state: %w", err)
	case state.TokenA != settings.TokenA || state.TokenB != settings.TokenB:
		return nil, fmt.Errorf("%w: stored engine trades %s/%s, configured %s/%s",
			domain.ErrInvalidInput, state.TokenA, state.TokenB, settings.TokenA, settings.TokenB)
	}

	return e, nil
}

// Address returns the engine's own identity.
func (e *ArbitrageEngine) Address() domain.Address {
	return e.settings.Address
}

// Invoke is the scheduler entry point.
func (e *ArbitrageEngine) Invoke(ctx context.Context, call domain.Call) error {
	return e.Trigger(ctx, call)
}

// State returns a snapshot of the engine state.
func (e *ArbitrageEngine) State(ctx context.Context) (*domain.ArbitrageState, error) {
	return e.load(ctx)
}

// Arm registers the recurring trigger, or moves it if already armed.
func (e *ArbitrageEngine) Arm(ctx context.Context, caller domain.Address, period domain.Step) error {
	if caller != e.settings.Owner && caller != e.settings.Address {
		return fmt.Errorf("%w: %s may not arm %s", domain.ErrUnauthorized, caller, e.settings.Address)
	}
	if period == 0 {
		return fmt.Errorf("%w: period must be at least one step", domain.ErrInvalidPeriod)
	}

	state, err := e.load(ctx)
	if err != nil {
		return err
	}
	prev := state.TaskID
	if err := e.arm(ctx, state, period); err != nil {
		return err
	}
	return e.commit(ctx, state, prev)
}

// Disarm cancels the recurring trigger and returns to idle.
func (e *ArbitrageEngine) Disarm(ctx context.Context, caller domain.Address) error {
	if caller != e.settings.Owner {
		return fmt.Errorf("%w: %s may not disarm %s", domain.ErrUnauthorized, caller, e.settings.Address)
	}

	state, err := e.load(ctx)
	if err != nil {
		return err
	}
	if !state.Armed() {
		return domain.ErrNothingScheduled
	}
	if err := e.scheduler.Cancel(ctx, e.settings.Address, state.TaskID); err != nil {
		return fmt.Errorf("cancelling trigger: %w", err)
	}

	id := state.TaskID
	state.TaskID = domain.TaskID{}
	state.Period = 0
	if err := e.save(ctx, state); err != nil {
		return err
	}

	logger.Info("engine %s: disarmed", e.settings.Address)
	e.events.Publish(ctx, domain.Event{
		Kind:    domain.EventDisarmed,
		Step:    e.scheduler.Now(),
		TaskID:  id.String(),
		Address: e.settings.Address,
	})
	return nil
}

// Trigger runs one decision round: read prices, decide, swap, re-arm.
// Only the scheduler's dispatch of the engine's own task may trigger it.
func (e *ArbitrageEngine) Trigger(ctx context.Context, call domain.Call) error {
	firing, dispatched := dispatchedTask(ctx)
	if !dispatched || firing != call.TaskID || call.Caller != e.settings.Address {
		return fmt.Errorf("%w: trigger called by %s outside a scheduled dispatch", domain.ErrUnauthorized, call.Caller)
	}

	state, err := e.load(ctx)
	if err != nil {
		return err
	}

	// Only the task the state records runs a round. Anything else is a
	// leftover of an arm whose state was never saved.
	if state.TaskID != call.TaskID {
		logger.Warn("engine %s: step %d ignoring stale task %s", e.settings.Address, call.Step, call.TaskID)
		return nil
	}

	// The firing task was removed by the scheduler before dispatch.
	state.TaskID = domain.TaskID{}
	state.LastTriggerStep = call.Step
	state.Triggers++

	working := state.Clone()
	swapErr := e.rebalance(ctx, working, call.Step)
	if swapErr == nil {
		state = working
	}

	if swapErr != nil && e.settings.RearmPolicy == domain.RearmOnSuccess {
		return errors.Join(swapErr, e.halt(ctx, state, call.Step, swapErr))
	}

	var rearmErr error
	if state.Period > 0 {
		if err := e.arm(ctx, state, state.Period); err != nil {
			rearmErr = fmt.Errorf("re-arming: %w", err)
		}
	}
	if err := e.commit(ctx, state, domain.TaskID{}); err != nil {
		return errors.Join(swapErr, rearmErr, err)
	}
	return errors.Join(swapErr, rearmErr)
}

// Deposit credits the engine with swap capital.
func (e *ArbitrageEngine) Deposit(ctx context.Context, from domain.Address, token domain.Token, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: deposit amount must be positive", domain.ErrInvalidInput)
	}
	state, err := e.load(ctx)
	if err != nil {
		return err
	}
	if !state.Holds(token) {
		return fmt.Errorf("%w: engine does not trade %s", domain.ErrInvalidInput, token)
	}
	state.Credit(token, amount)
	logger.Debug("engine %s: deposit of %s %s from %s", e.settings.Address, amount, token, from)
	return e.save(ctx, state)
}

// Withdraw debits the engine's capital on behalf of the owner.
func (e *ArbitrageEngine) Withdraw(ctx context.Context, caller domain.Address, token domain.Token, amount *big.Int) error {
	if caller != e.settings.Owner {
		return fmt.Errorf("%w: %s may not withdraw", domain.ErrUnauthorized, caller)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: withdrawal amount must be positive", domain.ErrInvalidInput)
	}
	state, err := e.load(ctx)
	if err != nil {
		return err
	}
	if !state.Holds(token) {
		return fmt.Errorf("%w: engine does not trade %s", domain.ErrInvalidInput, token)
	}
	if err := state.Debit(token, amount); err != nil {
		return err
	}
	return e.save(ctx, state)
}

// arm schedules a fresh task when idle and reschedules the current one otherwise.
func (e *ArbitrageEngine) arm(ctx context.Context, state *domain.ArbitrageState, period domain.Step) error {
	if state.Armed() {
		err := e.scheduler.Reschedule(ctx, e.settings.Address, state.TaskID, period)
		if err == nil {
			state.Period = period
			e.publishArmed(ctx, state)
			return nil
		}
		if !isUnknownTask(err) {
			return fmt.Errorf("rescheduling trigger: %w", err)
		}
		logger.Warn("engine %s: task %s no longer pending, scheduling a new one", e.settings.Address, state.TaskID)
	}

	id, err := e.scheduler.Schedule(ctx, e.settings.Address, e, period)
	if err != nil {
		return fmt.Errorf("scheduling trigger: %w", err)
	}
	state.TaskID = id
	state.Period = period
	e.publishArmed(ctx, state)
	return nil
}

// commit saves state after arm. When the save fails, a task arm scheduled
// in place of prev is cancelled so no trigger outlives its state.
func (e *ArbitrageEngine) commit(ctx context.Context, state *domain.ArbitrageState, prev domain.TaskID) error {
	err := e.save(ctx, state)
	if err == nil || state.TaskID == prev || state.TaskID.IsZero() {
		return err
	}
	if cancelErr := e.scheduler.Cancel(ctx, e.settings.Address, state.TaskID); cancelErr != nil && !isUnknownTask(cancelErr) {
		return errors.Join(err, fmt.Errorf("cancelling unsaved trigger: %w", cancelErr))
	}
	return err
}

func (e *ArbitrageEngine) publishArmed(ctx context.Context, state *domain.ArbitrageState) {
	logger.Info("engine %s: armed every %d steps as %s", e.settings.Address, state.Period, state.TaskID)
	e.events.Publish(ctx, domain.Event{
		Kind:    domain.EventArmed,
		Step:    e.scheduler.Now(),
		TaskID:  state.TaskID.String(),
		Address: e.settings.Address,
		Detail:  fmt.Sprintf("period %d", state.Period),
	})
}

// halt drops the recurrence after a failed round under RearmOnSuccess.
// The firing task is already gone, so there is nothing to cancel.
func (e *ArbitrageEngine) halt(ctx context.Context, state *domain.ArbitrageState, step domain.Step, cause error) error {
	state.TaskID = domain.TaskID{}
	state.Period = 0

	logger.Warn("engine %s: recurrence halted at step %d: %v", e.settings.Address, step, cause)
	e.events.Publish(ctx, domain.Event{
		Kind:    domain.EventHalted,
		Step:    step,
		Address: e.settings.Address,
		Detail:  cause.Error(),
	})

	return e.save(ctx, state)
}

// rebalance performs steps one to five of a round against state.
// On error state must be discarded by the caller.
func (e *ArbitrageEngine) rebalance(ctx context.Context, state *domain.ArbitrageState, step domain.Step) error {
	priceA, err := e.price(ctx, state.TokenA)
	if err != nil {
		return err
	}
	priceB, err := e.price(ctx, state.TokenB)
	if err != nil {
		return err
	}

	ratio, err := domain.FixedDiv(priceA, priceB)
	if err != nil {
		return err
	}

	var sell, buy domain.Token
	switch domain.Decide(ratio) {
	case domain.DirectionBuyA:
		sell, buy = state.TokenB, state.TokenA
	case domain.DirectionBuyB:
		sell, buy = state.TokenA, state.TokenB
	default:
		e.skip(ctx, step, "prices equal")
		return nil
	}

	amountIn := domain.ApplyBps(state.Balance(sell), e.settings.SwapFractionBps)
	if amountIn.Sign() == 0 {
		e.skip(ctx, step, fmt.Sprintf("no %s to sell", sell))
		return nil
	}

	quote, err := e.pool.Reserves(ctx, sell, buy)
	if err != nil {
		return fmt.Errorf("reading reserves %s/%s: %w", sell, buy, err)
	}
	expected, err := domain.ConstantProductOut(amountIn, quote.ReserveIn, quote.ReserveOut)
	if err != nil {
		return fmt.Errorf("quoting %s for %s: %w", sell, buy, err)
	}
	if expected.Cmp(e.settings.MinAmountOut) < 0 {
		return fmt.Errorf("%w: %s %s quotes %s %s, minimum %s",
			domain.ErrSlippageExceeded, amountIn, sell, expected, buy, e.settings.MinAmountOut)
	}

	result, err := e.pool.Swap(ctx, e.settings.Address, sell, buy, amountIn, e.settings.MinAmountOut)
	if err != nil {
		return fmt.Errorf("swapping %s for %s: %w", sell, buy, err)
	}
	if err := state.Debit(sell, result.AmountIn); err != nil {
		return err
	}
	state.Credit(buy, result.AmountOut)

	logger.Info("engine %s: step %d sold %s %s for %s %s (ratio %s)",
		e.settings.Address, step, result.AmountIn, sell, result.AmountOut, buy, domain.FormatFixed(ratio))
	e.events.Publish(ctx, domain.Event{
		Kind:    domain.EventSwapped,
		Step:    step,
		Address: e.settings.Address,
		Detail:  fmt.Sprintf("sold %s %s for %s %s", result.AmountIn, sell, result.AmountOut, buy),
	})
	return nil
}

func (e *ArbitrageEngine) skip(ctx context.Context, step domain.Step, reason string) {
	logger.Debug("engine %s: step %d no swap: %s", e.settings.Address, step, reason)
	e.events.Publish(ctx, domain.Event{
		Kind:    domain.EventSkipped,
		Step:    step,
		Address: e.settings.Address,
		Detail:  reason,
	})
}

func (e *ArbitrageEngine) price(ctx context.Context, token domain.Token) (*big.Int, error) {
	p, err := e.prices.Price(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("reading price of %s: %w", token, err)
	}
	if p == nil || p.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingPrice, token)
	}
	return p, nil
}

func (e *ArbitrageEngine) load(ctx context.Context) (*domain.ArbitrageState, error) {
	state, err := e.store.Get(ctx, e.settings.Address)
	if err != nil {
		return nil, fmt.Errorf("loading engine state: %w", err)
	}
	return state, nil
}

func (e *ArbitrageEngine) save(ctx context.Context, state *domain.ArbitrageState) error {
	if err := e.store.Save(ctx, state); err != nil {
		return fmt.Errorf("saving engine state: %w", err)
	}
	return nil
}
