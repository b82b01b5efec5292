package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/arbiter/internal/adapters/driven/clock"
	"github.com/custodia-labs/arbiter/internal/adapters/driven/events"
	"github.com/custodia-labs/arbiter/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driving"
)

// --- Test doubles ---

// firingLog records the order in which targets are invoked.
type firingLog struct {
	mu    sync.Mutex
	calls []firedCall
}

type firedCall struct {
	target domain.Address
	call   domain.Call
}

func (l *firingLog) add(target domain.Address, call domain.Call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, firedCall{target: target, call: call})
}

func (l *firingLog) targets() []domain.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Address, 0, len(l.calls))
	for _, c := range l.calls {
		out = append(out, c.target)
	}
	return out
}

// stubTarget implements driving.Target for testing.
type stubTarget struct {
	addr   domain.Address
	log    *firingLog
	invoke func(ctx context.Context, call domain.Call) error
}

var _ driving.Target = (*stubTarget)(nil)

func (t *stubTarget) Address() domain.Address { return t.addr }

func (t *stubTarget) Invoke(ctx context.Context, call domain.Call) error {
	if t.log != nil {
		t.log.add(t.addr, call)
	}
	if t.invoke != nil {
		return t.invoke(ctx, call)
	}
	return nil
}

// failingTaskStore wraps the memory store with injectable errors.
type failingTaskStore struct {
	*memory.TaskStore
	listDueErr error
	saveErr    error
	deleteErr  error
}

func (s *failingTaskStore) ListDue(ctx context.Context, step domain.Step) ([]domain.Task, error) {
	if s.listDueErr != nil {
		return nil, s.listDueErr
	}
	return s.TaskStore.ListDue(ctx, step)
}

func (s *failingTaskStore) SaveTask(ctx context.Context, task *domain.Task) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.TaskStore.SaveTask(ctx, task)
}

func (s *failingTaskStore) DeleteTasks(ctx context.Context, ids []domain.TaskID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.TaskStore.DeleteTasks(ctx, ids)
}

type schedulerFixture struct {
	clock     *clock.Manual
	store     *memory.TaskStore
	events    *events.Recorder
	scheduler *TaskScheduler
	log       *firingLog
}

func newSchedulerFixture(t *testing.T, settings domain.SchedulerSettings) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		clock:  clock.NewManual(0),
		store:  memory.NewTaskStore(),
		events: events.NewRecorder(),
		log:    &firingLog{},
	}
	f.scheduler = NewTaskScheduler(settings, f.clock, f.store, f.events)
	f.clock.Subscribe(f.scheduler)
	return f
}

func (f *schedulerFixture) target(addr domain.Address) *stubTarget {
	return &stubTarget{addr: addr, log: f.log}
}

func (f *schedulerFixture) advanceTo(t *testing.T, step domain.Step) {
	t.Helper()
	for f.clock.Current() < step {
		_, err := f.clock.Advance(context.Background())
		require.NoError(t, err)
	}
}

// --- Schedule ---

func TestScheduler_Schedule_RecordsTask(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()
	f.advanceTo(t, 3)

	id, err := f.scheduler.Schedule(ctx, "alice", f.target("bob"), 7)
	require.NoError(t, err)
	assert.False(t, id.IsZero())

	task, err := f.scheduler.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.Address("alice"), task.Owner)
	assert.Equal(t, domain.Address("bob"), task.Target)
	assert.Equal(t, domain.Step(10), task.DueStep)
	assert.Equal(t, domain.Step(3), task.CreatedStep)
	assert.Equal(t, 1, f.events.Count(domain.EventScheduled))
}

func TestScheduler_Schedule_UniqueIDs(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	seen := make(map[domain.TaskID]bool)
	for i := 0; i < 50; i++ {
		// Same owner, target, step and delay every time
		id, err := f.scheduler.Schedule(ctx, "alice", f.target("bob"), 5)
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	pending, err := f.scheduler.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 50)
}

func TestScheduler_Schedule_InvalidInput(t *testing.T) {
	f := newSchedulerFixture(t, domain.SchedulerSettings{MaxDelay: 100})
	ctx := context.Background()

	_, err := f.scheduler.Schedule(ctx, "alice", f.target("bob"), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidDelay)

	_, err = f.scheduler.Schedule(ctx, "alice", f.target("bob"), 101)
	assert.ErrorIs(t, err, domain.ErrInvalidDelay)

	_, err = f.scheduler.Schedule(ctx, "alice", nil, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.scheduler.Schedule(ctx, "", f.target("bob"), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	pending, err := f.scheduler.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestScheduler_Schedule_StoreError(t *testing.T) {
	store := &failingTaskStore{TaskStore: memory.NewTaskStore(), saveErr: errors.New("disk full")}
	s := NewTaskScheduler(domain.DefaultSchedulerSettings(), clock.NewManual(0), store, nil)

	_, err := s.Schedule(context.Background(), "alice", &stubTarget{addr: "bob"}, 1)
	assert.ErrorContains(t, err, "disk full")
}

// --- Firing ---

func TestScheduler_FiresOnceWhenDue(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	id, err := f.scheduler.Schedule(ctx, "alice", f.target("bob"), 5)
	require.NoError(t, err)

	f.advanceTo(t, 4)
	assert.Empty(t, f.log.targets())

	f.advanceTo(t, 10)
	require.Len(t, f.log.calls, 1)
	call := f.log.calls[0].call
	assert.Equal(t, domain.Address("alice"), call.Caller)
	assert.Equal(t, id, call.TaskID)
	assert.Equal(t, domain.Step(5), call.Step)

	_, err = f.scheduler.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrUnknownTask)
}

func TestScheduler_FiringOrder(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	idA, err := f.scheduler.Schedule(ctx, "o", f.target("a"), 5)
	require.NoError(t, err)
	idB, err := f.scheduler.Schedule(ctx, "o", f.target("b"), 5)
	require.NoError(t, err)
	_, err = f.scheduler.Schedule(ctx, "o", f.target("c"), 3)
	require.NoError(t, err)

	f.advanceTo(t, 5)

	// Earlier due step first, then ascending id among equal due steps
	want := []domain.Address{"c", "a", "b"}
	if idB.Compare(idA) < 0 {
		want = []domain.Address{"c", "b", "a"}
	}
	assert.Equal(t, want, f.log.targets())
}

func TestScheduler_LateStepFiresEverythingDue(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	_, err := f.scheduler.Schedule(ctx, "o", f.target("a"), 2)
	require.NoError(t, err)
	_, err = f.scheduler.Schedule(ctx, "o", f.target("b"), 8)
	require.NoError(t, err)
	_, err = f.scheduler.Schedule(ctx, "o", f.target("late"), 20)
	require.NoError(t, err)

	require.NoError(t, f.scheduler.OnStepAdvance(ctx, 10))
	assert.Equal(t, []domain.Address{"a", "b"}, f.log.targets())

	pending, err := f.scheduler.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.Address("late"), pending[0].Target)
}

func TestScheduler_TaskRemovedBeforeInvoke(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	var lookupErr error
	target := &stubTarget{addr: "bob", invoke: func(ctx context.Context, call domain.Call) error {
		_, lookupErr = f.scheduler.Get(ctx, call.TaskID)
		return nil
	}}
	_, err := f.scheduler.Schedule(ctx, "alice", target, 1)
	require.NoError(t, err)

	f.advanceTo(t, 1)
	assert.ErrorIs(t, lookupErr, domain.ErrUnknownTask)
}

func TestScheduler_FailureIsolation(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	failing := &stubTarget{addr: "failing", log: f.log, invoke: func(context.Context, domain.Call) error {
		return errors.New("boom")
	}}
	panicking := &stubTarget{addr: "panicking", log: f.log, invoke: func(context.Context, domain.Call) error {
		panic("bad target")
	}}
	for _, target := range []driving.Target{failing, panicking, f.target("healthy")} {
		_, err := f.scheduler.Schedule(ctx, "o", target, 4)
		require.NoError(t, err)
	}

	f.advanceTo(t, 4)

	assert.ElementsMatch(t, []domain.Address{"failing", "panicking", "healthy"}, f.log.targets())
	assert.Equal(t, 2, f.events.Count(domain.EventFailed))
	assert.Equal(t, 1, f.events.Count(domain.EventFired))

	history, err := f.scheduler.History(ctx, "panicking", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Contains(t, history[0].Error, "panicked")
	assert.NotEmpty(t, history[0].RunID)

	history, err = f.scheduler.History(ctx, "healthy", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
}

func TestScheduler_SelfRescheduleDuringFire(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	var next domain.TaskID
	var target *stubTarget
	target = &stubTarget{addr: "self", log: f.log, invoke: func(ctx context.Context, call domain.Call) error {
		id, err := f.scheduler.Schedule(ctx, "self", target, 3)
		next = id
		return err
	}}
	_, err := f.scheduler.Schedule(ctx, "self", target, 3)
	require.NoError(t, err)

	f.advanceTo(t, 3)
	require.False(t, next.IsZero())

	task, err := f.scheduler.Get(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, domain.Step(6), task.DueStep)

	// The replacement does not fire in the step that created it
	assert.Len(t, f.log.calls, 1)

	f.advanceTo(t, 9)
	assert.Len(t, f.log.calls, 3)
}

func TestScheduler_UnboundTarget(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	// A task restored from storage with no capability bound
	orphan := &domain.Task{ID: hashTaskID("o", 99, 0), Owner: "o", Target: "ghost", DueStep: 1}
	require.NoError(t, f.store.SaveTask(ctx, orphan))

	f.advanceTo(t, 1)

	history, err := f.scheduler.History(ctx, "ghost", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Contains(t, history[0].Error, domain.ErrUnboundTarget.Error())

	// Binding makes later tasks for the address invocable
	orphan.ID = hashTaskID("o", 100, 1)
	orphan.DueStep = 2
	require.NoError(t, f.store.SaveTask(ctx, orphan))
	f.scheduler.Bind(f.target("ghost"))

	f.advanceTo(t, 2)
	assert.Equal(t, []domain.Address{"ghost"}, f.log.targets())
}

func TestScheduler_OnStepAdvance_StoreError(t *testing.T) {
	store := &failingTaskStore{TaskStore: memory.NewTaskStore(), listDueErr: errors.New("locked")}
	s := NewTaskScheduler(domain.DefaultSchedulerSettings(), clock.NewManual(0), store, nil)

	err := s.OnStepAdvance(context.Background(), 1)
	assert.ErrorContains(t, err, "locked")
}

func TestScheduler_OnStepAdvance_RemovalErrorKeepsAllDue(t *testing.T) {
	store := &failingTaskStore{TaskStore: memory.NewTaskStore()}
	log := &firingLog{}
	s := NewTaskScheduler(domain.DefaultSchedulerSettings(), clock.NewManual(0), store, nil)
	ctx := context.Background()

	_, err := s.Schedule(ctx, "o", &stubTarget{addr: "a", log: log}, 1)
	require.NoError(t, err)
	_, err = s.Schedule(ctx, "o", &stubTarget{addr: "b", log: log}, 1)
	require.NoError(t, err)

	store.deleteErr = errors.New("locked")
	err = s.OnStepAdvance(ctx, 1)
	assert.ErrorContains(t, err, "locked")
	assert.Empty(t, log.targets())

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	store.deleteErr = nil
	require.NoError(t, s.OnStepAdvance(ctx, 2))
	assert.ElementsMatch(t, []domain.Address{"a", "b"}, log.targets())

	pending, err = s.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestScheduler_PrunesHistory(t *testing.T) {
	f := newSchedulerFixture(t, domain.SchedulerSettings{MaxDelay: 10, HistoryKeep: 2})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.scheduler.Schedule(ctx, "o", f.target("t"), 1)
		require.NoError(t, err)
		f.advanceTo(t, f.clock.Current()+1)
	}

	history, err := f.scheduler.History(ctx, "t", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, domain.Step(4), history[0].Step)
}

// --- Cancel and Reschedule ---

func TestScheduler_Cancel(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	id, err := f.scheduler.Schedule(ctx, "alice", f.target("bob"), 2)
	require.NoError(t, err)

	require.NoError(t, f.scheduler.Cancel(ctx, "alice", id))
	assert.ErrorIs(t, f.scheduler.Cancel(ctx, "alice", id), domain.ErrUnknownTask)

	f.advanceTo(t, 5)
	assert.Empty(t, f.log.targets())
	assert.Equal(t, 1, f.events.Count(domain.EventCancelled))
}

func TestScheduler_Cancel_ZeroID(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	assert.ErrorIs(t, f.scheduler.Cancel(context.Background(), "alice", domain.TaskID{}), domain.ErrUnknownTask)
}

func TestScheduler_OnlyOwnerManages(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	id, err := f.scheduler.Schedule(ctx, "alice", f.target("bob"), 2)
	require.NoError(t, err)

	assert.ErrorIs(t, f.scheduler.Cancel(ctx, "mallory", id), domain.ErrNotOwner)
	assert.ErrorIs(t, f.scheduler.Reschedule(ctx, "mallory", id, 9), domain.ErrNotOwner)

	task, err := f.scheduler.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.Step(2), task.DueStep)
}

func TestScheduler_Reschedule(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	id, err := f.scheduler.Schedule(ctx, "alice", f.target("bob"), 2)
	require.NoError(t, err)

	f.advanceTo(t, 1)
	require.NoError(t, f.scheduler.Reschedule(ctx, "alice", id, 5))

	task, err := f.scheduler.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.Step(6), task.DueStep)

	f.advanceTo(t, 5)
	assert.Empty(t, f.log.targets())
	f.advanceTo(t, 6)
	require.Len(t, f.log.calls, 1)
	assert.Equal(t, id, f.log.calls[0].call.TaskID)
}

func TestScheduler_Reschedule_Errors(t *testing.T) {
	f := newSchedulerFixture(t, domain.DefaultSchedulerSettings())
	ctx := context.Background()

	assert.ErrorIs(t, f.scheduler.Reschedule(ctx, "alice", hashTaskID("x", 1, 1), 3), domain.ErrUnknownTask)

	id, err := f.scheduler.Schedule(ctx, "alice", f.target("bob"), 2)
	require.NoError(t, err)
	assert.ErrorIs(t, f.scheduler.Reschedule(ctx, "alice", id, 0), domain.ErrInvalidDelay)
}

// --- Ids ---

func TestHashTaskID(t *testing.T) {
	base := hashTaskID("alice", 1, 10)
	assert.Equal(t, base, hashTaskID("alice", 1, 10))
	assert.NotEqual(t, base, hashTaskID("alice", 2, 10))
	assert.NotEqual(t, base, hashTaskID("alice", 1, 11))
	assert.NotEqual(t, base, hashTaskID("bob", 1, 10))
	assert.False(t, base.IsZero())
}
