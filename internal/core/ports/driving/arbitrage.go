package driving

import (
	"context"
	"math/big"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

// ArbitrageEngine is the recurring, price-triggered swap body.
// It is also a Target so the scheduler can fire it.
type ArbitrageEngine interface {
	Target

	// Arm registers or moves the recurring trigger to fire every period steps.
	// Only the owner or the engine itself may arm.
	Arm(ctx context.Context, caller domain.Address, period domain.Step) error

	// Disarm cancels the recurring trigger. Only the owner may disarm.
	// Returns domain.ErrNothingScheduled when idle.
	Disarm(ctx context.Context, caller domain.Address) error

	// Trigger runs one decision round. Accepts only the scheduler's
	// dispatch of the engine's current task; stale tasks are ignored.
	Trigger(ctx context.Context, call domain.Call) error

	// Deposit credits the engine with swap capital.
	Deposit(ctx context.Context, from domain.Address, token domain.Token, amount *big.Int) error

	// Withdraw returns capital to the owner.
	Withdraw(ctx context.Context, caller domain.Address, token domain.Token, amount *big.Int) error

	// State returns a snapshot of the engine state.
	State(ctx context.Context) (*domain.ArbitrageState, error)
}
