package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Scheduler Errors.

	// ErrInvalidDelay indicates a delay of zero steps or one beyond the scheduler maximum.
	ErrInvalidDelay = errors.New("invalid delay")

	// ErrUnknownTask indicates the task id is not pending.
	// Cancelling an already cancelled or fired task reports this error.
	ErrUnknownTask = errors.New("unknown task")

	// ErrNotOwner indicates the caller is neither the task owner nor its target.
	ErrNotOwner = errors.New("not task owner")

	// ErrUnboundTarget indicates a due task whose target capability is not bound
	// to the scheduler, typically after tasks were reloaded from durable storage.
	ErrUnboundTarget = errors.New("target not bound")

	// Engine Errors.

	// ErrInvalidPeriod indicates an arm request with a zero period.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrUnauthorized indicates the caller may not invoke the operation.
	// Trigger accepts only self-calls; arm and disarm accept only the owner.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNothingScheduled indicates disarm was called while the engine is idle.
	ErrNothingScheduled = errors.New("nothing scheduled")

	// ErrMissingPrice indicates the price feed has no value for a token.
	// Retry once the feed is populated.
	ErrMissingPrice = errors.New("missing price")

	// ErrSlippageExceeded indicates the quoted output is below the configured minimum.
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrInsufficientBalance indicates a withdrawal larger than the held balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// Pool Errors.

	// ErrUnknownPool indicates no liquidity pool exists for the token pair.
	ErrUnknownPool = errors.New("unknown pool")

	// ErrInsufficientLiquidity indicates a pool with an empty reserve.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)
