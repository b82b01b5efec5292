package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
)

// Ensure TaskStore implements the interface.
var _ driven.TaskStore = (*TaskStore)(nil)

// TaskStore is an in-memory implementation of driven.TaskStore.
type TaskStore struct {
	mu      sync.RWMutex
	tasks   map[domain.TaskID]domain.Task
	nonce   uint64
	results []domain.TaskResult
}

// NewTaskStore creates a new in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[domain.TaskID]domain.Task),
	}
}

// GetTask retrieves a pending task by ID.
func (s *TaskStore) GetTask(_ context.Context, id domain.TaskID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

// ListTasks returns all pending tasks in firing order.
func (s *TaskStore) ListTasks(_ context.Context) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(domain.Task) bool { return true }), nil
}

// ListDue returns pending tasks due at or before step in firing order.
func (s *TaskStore) ListDue(_ context.Context, step domain.Step) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(t domain.Task) bool { return t.DueStep <= step }), nil
}

// sorted filters and orders tasks (caller must hold lock).
func (s *TaskStore) sorted(keep func(domain.Task) bool) []domain.Task {
	tasks := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if keep(t) {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Less(&tasks[j])
	})
	return tasks
}

// SaveTask stores or updates a task.
func (s *TaskStore) SaveTask(_ context.Context, task *domain.Task) error {
	if task == nil || task.ID.IsZero() {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

// DeleteTask removes a task.
func (s *TaskStore) DeleteTask(_ context.Context, id domain.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

// DeleteTasks removes several tasks at once.
func (s *TaskStore) DeleteTasks(_ context.Context, ids []domain.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.tasks, id)
	}
	return nil
}

// NextNonce returns the next value of a monotonic counter.
func (s *TaskStore) NextNonce(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce++
	return s.nonce, nil
}

// RecordResult appends a task firing to the history.
func (s *TaskStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, *result)
	return nil
}

// GetTaskHistory returns recent results for a target, most recent first.
func (s *TaskStore) GetTaskHistory(_ context.Context, target domain.Address, limit int) ([]domain.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var history []domain.TaskResult
	for i := len(s.results) - 1; i >= 0; i-- {
		if limit > 0 && len(history) >= limit {
			break
		}
		if s.results[i].Target == target {
			history = append(history, s.results[i])
		}
	}
	return history, nil
}

// PruneHistory keeps the most recent 'keep' results per target.
func (s *TaskStore) PruneHistory(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.Address]int)
	kept := make([]domain.TaskResult, 0, len(s.results))
	for i := len(s.results) - 1; i >= 0; i-- {
		r := s.results[i]
		if counts[r.Target] < keep {
			counts[r.Target]++
			kept = append(kept, r)
		}
	}
	// kept is newest first; restore insertion order
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	s.results = kept
	return nil
}
