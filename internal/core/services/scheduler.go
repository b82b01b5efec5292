package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
	"github.com/custodia-labs/arbiter/internal/core/ports/driving"
	"github.com/custodia-labs/arbiter/internal/logger"
)

// Ensure TaskScheduler implements the interface.
var _ driving.TaskScheduler = (*TaskScheduler)(nil)

// TaskScheduler is the registry of delayed invocations driven by the external clock.
// Tasks are owned by id in the store; target capabilities are held by address,
// so a target may replace its own task while it is being fired.
type TaskScheduler struct {
	settings domain.SchedulerSettings
	clock    driven.Clock
	store    driven.TaskStore
	events   driven.EventSink

	// mu is never held while a target runs: targets call back into
	// Schedule from inside OnStepAdvance.
	mu      sync.Mutex
	targets map[domain.Address]driving.Target
}

// NewTaskScheduler creates a scheduler with configuration.
// events may be nil.
func NewTaskScheduler(
	settings domain.SchedulerSettings,
	clock driven.Clock,
	store driven.TaskStore,
	events driven.EventSink,
) *TaskScheduler {
	if events == nil {
		events = nopSink{}
	}
	return &TaskScheduler{
		settings: settings,
		clock:    clock,
		store:    store,
		events:   events,
		targets:  make(map[domain.Address]driving.Target),
	}
}

// Bind makes target invocable for tasks loaded from durable storage.
func (s *TaskScheduler) Bind(target driving.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[target.Address()] = target
}

// Schedule registers target to be invoked delay steps from now.
func (s *TaskScheduler) Schedule(
	ctx context.Context,
	caller domain.Address,
	target driving.Target,
	delay domain.Step,
) (domain.TaskID, error) {
	if target == nil || caller.IsZero() {
		return domain.TaskID{}, domain.ErrInvalidInput
	}
	if err := s.checkDelay(delay); err != nil {
		return domain.TaskID{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Current()
	id, err := s.newTaskID(ctx, caller, now)
	if err != nil {
		return domain.TaskID{}, err
	}

	task := &domain.Task{
		ID:          id,
		Owner:       caller,
		Target:      target.Address(),
		DueStep:     now + delay,
		CreatedStep: now,
	}
	if err := s.store.SaveTask(ctx, task); err != nil {
		return domain.TaskID{}, fmt.Errorf("saving task: %w", err)
	}
	s.targets[task.Target] = target

	logger.Debug("scheduler: scheduled %s for %s at step %d", id, task.Target, task.DueStep)
	s.events.Publish(ctx, domain.Event{
		Kind:    domain.EventScheduled,
		Step:    now,
		TaskID:  id.String(),
		Address: task.Target,
		Detail:  fmt.Sprintf("due at step %d", task.DueStep),
	})
	return id, nil
}

// Reschedule moves a pending task to delay steps from now.
func (s *TaskScheduler) Reschedule(
	ctx context.Context,
	caller domain.Address,
	id domain.TaskID,
	delay domain.Step,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.managed(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.checkDelay(delay); err != nil {
		return err
	}

	now := s.clock.Current()
	task.DueStep = now + delay
	if err := s.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("saving task: %w", err)
	}

	logger.Debug("scheduler: rescheduled %s to step %d", id, task.DueStep)
	s.events.Publish(ctx, domain.Event{
		Kind:    domain.EventRescheduled,
		Step:    now,
		TaskID:  id.String(),
		Address: task.Target,
		Detail:  fmt.Sprintf("due at step %d", task.DueStep),
	})
	return nil
}

// Cancel removes a pending task.
func (s *TaskScheduler) Cancel(ctx context.Context, caller domain.Address, id domain.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.managed(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	logger.Debug("scheduler: cancelled %s", id)
	s.events.Publish(ctx, domain.Event{
		Kind:    domain.EventCancelled,
		Step:    s.clock.Current(),
		TaskID:  id.String(),
		Address: task.Target,
	})
	return nil
}

// Now returns the current clock step.
func (s *TaskScheduler) Now() domain.Step {
	return s.clock.Current()
}

// Get returns a pending task.
func (s *TaskScheduler) Get(ctx context.Context, id domain.TaskID) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTask, id)
	}
	return task, nil
}

// Pending lists pending tasks in firing order.
func (s *TaskScheduler) Pending(ctx context.Context) ([]domain.Task, error) {
	return s.store.ListTasks(ctx)
}

// History returns recent firings of target.
func (s *TaskScheduler) History(ctx context.Context, target domain.Address, limit int) ([]domain.TaskResult, error) {
	return s.store.GetTaskHistory(ctx, target, limit)
}

// OnStepAdvance fires every task due at or before step.
// Due tasks are removed before any target runs; each target is then invoked
// once, in (due step, id) order. A failing target does not stop the batch.
func (s *TaskScheduler) OnStepAdvance(ctx context.Context, step domain.Step) error {
	batch, err := s.collectDue(ctx, step)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	logger.Section(fmt.Sprintf("step %d", step))
	for _, d := range batch {
		s.fire(ctx, step, d)
	}

	if s.settings.HistoryKeep > 0 {
		if err := s.store.PruneHistory(ctx, s.settings.HistoryKeep); err != nil {
			logger.Warn("scheduler: failed to prune history: %v", err)
		}
	}
	return nil
}

// dispatch pairs a removed task with the capability to invoke.
type dispatch struct {
	task   domain.Task
	target driving.Target
}

// collectDue removes every due task from the store and resolves its target.
func (s *TaskScheduler) collectDue(ctx context.Context, step domain.Step) ([]dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due, err := s.store.ListDue(ctx, step)
	if err != nil {
		return nil, fmt.Errorf("listing due tasks: %w", err)
	}

	if len(due) == 0 {
		return nil, nil
	}

	// Removed as one unit: a failure leaves every due task pending for the next step.
	ids := make([]domain.TaskID, 0, len(due))
	for _, task := range due {
		ids = append(ids, task.ID)
	}
	if err := s.store.DeleteTasks(ctx, ids); err != nil {
		return nil, fmt.Errorf("removing due tasks: %w", err)
	}

	batch := make([]dispatch, 0, len(due))
	for _, task := range due {
		batch = append(batch, dispatch{task: task, target: s.targets[task.Target]})
	}
	return batch, nil
}

// fire invokes one target, isolating errors and panics.
func (s *TaskScheduler) fire(ctx context.Context, step domain.Step, d dispatch) {
	result := &domain.TaskResult{
		RunID:  uuid.NewString(),
		TaskID: d.task.ID,
		Target: d.task.Target,
		Step:   step,
	}

	err := invoke(ctx, d, step)
	event := domain.Event{
		Kind:    domain.EventFired,
		Step:    step,
		TaskID:  d.task.ID.String(),
		Address: d.task.Target,
	}
	if err != nil {
		result.Error = err.Error()
		event.Kind = domain.EventFailed
		event.Detail = err.Error()
		logger.Error("scheduler: task %s for %s failed: %v", d.task.ID, d.task.Target, err)
	} else {
		result.Success = true
		logger.Debug("scheduler: fired %s for %s", d.task.ID, d.task.Target)
	}
	s.events.Publish(ctx, event)

	if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", d.task.ID, recordErr)
	}
}

// dispatchKey marks a context passed to a target by the scheduler.
type dispatchKey struct{}

// dispatchedTask returns the task being fired, if ctx came from a scheduler dispatch.
func dispatchedTask(ctx context.Context) (domain.TaskID, bool) {
	id, ok := ctx.Value(dispatchKey{}).(domain.TaskID)
	return id, ok
}

// invoke calls the target, converting a panic into an error.
func invoke(ctx context.Context, d dispatch, step domain.Step) (err error) {
	if d.target == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnboundTarget, d.task.Target)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("target %s panicked: %v", d.task.Target, r)
		}
	}()
	return d.target.Invoke(context.WithValue(ctx, dispatchKey{}, d.task.ID), domain.Call{
		Caller: d.task.Owner,
		TaskID: d.task.ID,
		Step:   step,
	})
}

// managed loads a pending task and checks that caller may change it.
// Caller must hold s.mu.
func (s *TaskScheduler) managed(ctx context.Context, caller domain.Address, id domain.TaskID) (*domain.Task, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("%w: empty id", domain.ErrUnknownTask)
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTask, id)
	}
	if !task.CanManage(caller) {
		return nil, fmt.Errorf("%w: %s may not manage %s", domain.ErrNotOwner, caller, id)
	}
	return task, nil
}

func (s *TaskScheduler) checkDelay(delay domain.Step) error {
	if delay == 0 {
		return fmt.Errorf("%w: delay must be at least one step", domain.ErrInvalidDelay)
	}
	if s.settings.MaxDelay > 0 && delay > s.settings.MaxDelay {
		return fmt.Errorf("%w: delay %d exceeds maximum %d", domain.ErrInvalidDelay, delay, s.settings.MaxDelay)
	}
	return nil
}

// newTaskID hashes (owner, nonce, step) with Keccak-256.
// The nonce comes from the store and never repeats; an id already pending
// is skipped anyway. Caller must hold s.mu.
func (s *TaskScheduler) newTaskID(ctx context.Context, owner domain.Address, step domain.Step) (domain.TaskID, error) {
	for {
		nonce, err := s.store.NextNonce(ctx)
		if err != nil {
			return domain.TaskID{}, fmt.Errorf("allocating task nonce: %w", err)
		}
		id := hashTaskID(owner, nonce, step)
		existing, err := s.store.GetTask(ctx, id)
		if err != nil {
			return domain.TaskID{}, fmt.Errorf("loading task: %w", err)
		}
		if existing == nil {
			return id, nil
		}
	}
}

func hashTaskID(owner domain.Address, nonce uint64, step domain.Step) domain.TaskID {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], nonce)
	binary.BigEndian.PutUint64(buf[8:], uint64(step))

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(owner))
	h.Write([]byte{0})
	h.Write(buf[:])

	var id domain.TaskID
	copy(id[:], h.Sum(nil))
	return id
}

// nopSink discards events.
type nopSink struct{}

func (nopSink) Publish(context.Context, domain.Event) {}

// isUnknownTask reports whether err means the task is no longer pending.
func isUnknownTask(err error) bool {
	return errors.Is(err, domain.ErrUnknownTask)
}
