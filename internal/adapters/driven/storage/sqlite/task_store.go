package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
)

// taskStore implements driven.TaskStore.
type taskStore struct {
	store *Store
}

var _ driven.TaskStore = (*taskStore)(nil)

const taskColumns = `id, owner, target, due_step, created_step`

// GetTask retrieves a pending task by ID.
// Returns nil and no error if the task does not exist.
func (s *taskStore) GetTask(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, id[:])

	task, err := scanTask(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil // Per interface: return nil and no error if not found
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns all pending tasks in firing order.
func (s *taskStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.query(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY due_step, id`)
}

// ListDue returns pending tasks due at or before step in firing order.
func (s *taskStore) ListDue(ctx context.Context, step domain.Step) ([]domain.Task, error) {
	return s.query(ctx,
		`SELECT `+taskColumns+` FROM scheduled_tasks WHERE due_step <= ? ORDER BY due_step, id`,
		int64(step))
}

func (s *taskStore) query(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scheduled tasks: %w", err)
	}

	return tasks, nil
}

// SaveTask persists a task.
// Creates or updates the task based on ID.
func (s *taskStore) SaveTask(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID.IsZero() {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (id, owner, target, due_step, created_step)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			target = excluded.target,
			due_step = excluded.due_step,
			created_step = excluded.created_step
	`, task.ID[:], string(task.Owner), string(task.Target),
		int64(task.DueStep), int64(task.CreatedStep))

	if err != nil {
		return fmt.Errorf("saving scheduled task: %w", err)
	}
	return nil
}

// DeleteTask removes a task from storage.
func (s *taskStore) DeleteTask(ctx context.Context, id domain.TaskID) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM scheduled_tasks WHERE id = ?", id[:])
	if err != nil {
		return fmt.Errorf("deleting scheduled task: %w", err)
	}
	return nil
}

// DeleteTasks removes several tasks in one transaction.
func (s *taskStore) DeleteTasks(ctx context.Context, ids []domain.TaskID) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM scheduled_tasks WHERE id = ?", id[:]); err != nil {
			return fmt.Errorf("deleting scheduled task %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing task deletion: %w", err)
	}
	return nil
}

// NextNonce increments and returns the persisted task nonce.
func (s *taskStore) NextNonce(ctx context.Context) (uint64, error) {
	var nonce int64
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO scheduler_meta (key, value) VALUES ('nonce', 1)
		ON CONFLICT(key) DO UPDATE SET value = value + 1
		RETURNING value
	`).Scan(&nonce)
	if err != nil {
		return 0, fmt.Errorf("allocating nonce: %w", err)
	}
	return uint64(nonce), nil
}

// RecordResult logs a task firing.
func (s *taskStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO task_results (run_id, task_id, target, step, success, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, result.RunID,
		result.TaskID[:],
		string(result.Target),
		int64(result.Step),
		boolToInt(result.Success),
		nullString(result.Error))

	if err != nil {
		return fmt.Errorf("recording task result: %w", err)
	}
	return nil
}

// GetTaskHistory returns recent results for a target, most recent first.
func (s *taskStore) GetTaskHistory(ctx context.Context, target domain.Address, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT run_id, task_id, target, step, success, error
		FROM task_results
		WHERE target = ?
		ORDER BY id DESC
		LIMIT ?
	`, string(target), limit)
	if err != nil {
		return nil, fmt.Errorf("querying task history: %w", err)
	}
	defer rows.Close()

	var results []domain.TaskResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		result, err := scanTaskResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task history: %w", err)
	}

	return results, nil
}

// PruneHistory removes old task results beyond the retention limit.
// Keeps the most recent 'keep' results per target.
func (s *taskStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM task_results
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY target ORDER BY id DESC) as rn
				FROM task_results
			) WHERE rn <= ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning task history: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask scans a single scheduled task row.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var id []byte
	var owner, target string
	var due, created int64

	if err := row.Scan(&id, &owner, &target, &due, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning scheduled task: %w", err)
	}

	taskID, err := domain.TaskIDFromBytes(id)
	if err != nil {
		return nil, fmt.Errorf("scanning scheduled task: %w", err)
	}
	task.ID = taskID
	task.Owner = domain.Address(owner)
	task.Target = domain.Address(target)
	task.DueStep = domain.Step(due)
	task.CreatedStep = domain.Step(created)

	return &task, nil
}

// scanTaskResult scans a task result from *sql.Rows.
func scanTaskResult(rows rowScanner) (*domain.TaskResult, error) {
	var result domain.TaskResult
	var id []byte
	var target string
	var step int64
	var success int
	var errMsg sql.NullString

	if err := rows.Scan(&result.RunID, &id, &target, &step, &success, &errMsg); err != nil {
		return nil, fmt.Errorf("scanning task result: %w", err)
	}

	taskID, err := domain.TaskIDFromBytes(id)
	if err != nil {
		return nil, fmt.Errorf("scanning task result: %w", err)
	}
	result.TaskID = taskID
	result.Target = domain.Address(target)
	result.Step = domain.Step(step)
	result.Success = success == 1
	if errMsg.Valid {
		result.Error = errMsg.String
	}

	return &result, nil
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
