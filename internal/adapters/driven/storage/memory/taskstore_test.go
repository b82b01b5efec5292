package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

func taskID(b byte) domain.TaskID {
	var id domain.TaskID
	id[0] = b
	return id
}

func TestTaskStore_SaveAndGet(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	task := &domain.Task{ID: taskID(1), Owner: "owner", Target: "engine", DueStep: 5}
	require.NoError(t, store.SaveTask(ctx, task))

	got, err := store.GetTask(ctx, taskID(1))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *task, *got)

	got.DueStep = 99
	again, err := store.GetTask(ctx, taskID(1))
	require.NoError(t, err)
	assert.Equal(t, domain.Step(5), again.DueStep, "returned task must be a copy")
}

func TestTaskStore_GetMissing(t *testing.T) {
	store := NewTaskStore()

	got, err := store.GetTask(context.Background(), taskID(9))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTaskStore_SaveInvalid(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.SaveTask(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.SaveTask(ctx, &domain.Task{}), domain.ErrInvalidInput)
}

func TestTaskStore_ListDue_Ordering(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, &domain.Task{ID: taskID(0xB), DueStep: 5}))
	require.NoError(t, store.SaveTask(ctx, &domain.Task{ID: taskID(0xA), DueStep: 5}))
	require.NoError(t, store.SaveTask(ctx, &domain.Task{ID: taskID(0xC), DueStep: 3}))
	require.NoError(t, store.SaveTask(ctx, &domain.Task{ID: taskID(0xD), DueStep: 8}))

	due, err := store.ListDue(ctx, 5)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, taskID(0xC), due[0].ID)
	assert.Equal(t, taskID(0xA), due[1].ID)
	assert.Equal(t, taskID(0xB), due[2].ID)

	all, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, taskID(0xD), all[3].ID)
}

func TestTaskStore_Delete(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, &domain.Task{ID: taskID(1), DueStep: 1}))
	require.NoError(t, store.DeleteTask(ctx, taskID(1)))
	require.NoError(t, store.DeleteTask(ctx, taskID(1)))

	got, err := store.GetTask(ctx, taskID(1))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTaskStore_DeleteTasks(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	for i := byte(1); i <= 3; i++ {
		require.NoError(t, store.SaveTask(ctx, &domain.Task{ID: taskID(i), DueStep: 1}))
	}
	require.NoError(t, store.DeleteTasks(ctx, []domain.TaskID{taskID(1), taskID(3), taskID(9)}))

	all, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, taskID(2), all[0].ID)
}

func TestTaskStore_NextNonce_Monotonic(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	prev := uint64(0)
	for i := 0; i < 10; i++ {
		n, err := store.NextNonce(ctx)
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
	}
}

func TestTaskStore_History(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()

	for step := domain.Step(1); step <= 5; step++ {
		require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{Target: "engine", Step: step, Success: true}))
	}
	require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{Target: "other", Step: 6}))
	assert.ErrorIs(t, store.RecordResult(ctx, nil), domain.ErrInvalidInput)

	history, err := store.GetTaskHistory(ctx, "engine", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.Step(5), history[0].Step)
	assert.Equal(t, domain.Step(3), history[2].Step)

	require.NoError(t, store.PruneHistory(ctx, 2))

	history, err = store.GetTaskHistory(ctx, "engine", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.Step(5), history[0].Step)
	assert.Equal(t, domain.Step(4), history[1].Step)

	other, err := store.GetTaskHistory(ctx, "other", 10)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
