package driven

import (
	"context"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

// TaskStore persists the pending task registry for the scheduler.
// It stores task records, the id nonce and firing history.
type TaskStore interface {
	// GetTask retrieves a pending task by ID.
	// Returns nil and no error if the task does not exist.
	GetTask(ctx context.Context, id domain.TaskID) (*domain.Task, error)

	// ListTasks returns all pending tasks ordered by due step, then id.
	ListTasks(ctx context.Context) ([]domain.Task, error)

	// ListDue returns pending tasks with a due step at or before step,
	// ordered by due step, then id.
	ListDue(ctx context.Context, step domain.Step) ([]domain.Task, error)

	// SaveTask persists a task.
	// Creates or updates the task based on ID.
	SaveTask(ctx context.Context, task *domain.Task) error

	// DeleteTask removes a task. Deleting a missing task is not an error.
	DeleteTask(ctx context.Context, id domain.TaskID) error

	// DeleteTasks removes every listed task, or none of them on error.
	// Missing ids are ignored.
	DeleteTasks(ctx context.Context, ids []domain.TaskID) error

	// NextNonce returns a value never returned before by this store.
	NextNonce(ctx context.Context) (uint64, error)

	// RecordResult logs a task firing.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns recent results for a target.
	// Results are ordered most recent first.
	GetTaskHistory(ctx context.Context, target domain.Address, limit int) ([]domain.TaskResult, error)

	// PruneHistory keeps the most recent 'keep' results per target.
	PruneHistory(ctx context.Context, keep int) error
}
