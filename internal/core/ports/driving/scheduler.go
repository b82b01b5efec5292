package driving

import (
	"context"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

// Target is a capability the scheduler can invoke when a task is due.
type Target interface {
	// Address identifies the capability.
	Address() domain.Address

	// Invoke runs the capability once.
	Invoke(ctx context.Context, call domain.Call) error
}

// StepListener is notified by the clock each time a step is reached.
type StepListener interface {
	// OnStepAdvance processes everything due at or before step.
	OnStepAdvance(ctx context.Context, step domain.Step) error
}

// TaskScheduler registers delayed invocations keyed by opaque task ids.
type TaskScheduler interface {
	StepListener

	// Now returns the step the scheduler is processing.
	Now() domain.Step

	// Schedule registers target to be invoked delay steps from now.
	// The caller becomes the task owner.
	// Returns domain.ErrInvalidDelay for a zero or too large delay.
	Schedule(ctx context.Context, caller domain.Address, target Target, delay domain.Step) (domain.TaskID, error)

	// Reschedule moves a pending task to delay steps from now, keeping its id.
	// Returns domain.ErrUnknownTask, domain.ErrNotOwner or domain.ErrInvalidDelay.
	Reschedule(ctx context.Context, caller domain.Address, id domain.TaskID, delay domain.Step) error

	// Cancel removes a pending task.
	// Returns domain.ErrUnknownTask if it is not pending, including a second cancel.
	Cancel(ctx context.Context, caller domain.Address, id domain.TaskID) error

	// Get returns a pending task, or domain.ErrUnknownTask.
	Get(ctx context.Context, id domain.TaskID) (*domain.Task, error)

	// Pending lists pending tasks in firing order.
	Pending(ctx context.Context) ([]domain.Task, error)

	// History returns recent firings of target, most recent first.
	History(ctx context.Context, target domain.Address, limit int) ([]domain.TaskResult, error)
}
