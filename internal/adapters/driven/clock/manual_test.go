package clock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

// recordingListener records the steps it sees and the clock reading at that time.
type recordingListener struct {
	mu    sync.Mutex
	clock *Manual
	steps []domain.Step
	seen  []domain.Step
	err   error
}

func (l *recordingListener) OnStepAdvance(_ context.Context, step domain.Step) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, step)
	if l.clock != nil {
		l.seen = append(l.seen, l.clock.Current())
	}
	return l.err
}

func TestManual_Current(t *testing.T) {
	c := NewManual(10)
	assert.Equal(t, domain.Step(10), c.Current())
}

func TestManual_Advance_NotifiesListeners(t *testing.T) {
	c := NewManual(0)
	first := &recordingListener{clock: c}
	second := &recordingListener{}
	c.Subscribe(first)
	c.Subscribe(second)

	step, err := c.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Step(1), step)

	// Listeners may read the clock without deadlocking
	assert.Equal(t, []domain.Step{1}, first.steps)
	assert.Equal(t, []domain.Step{1}, first.seen)
	assert.Equal(t, []domain.Step{1}, second.steps)
}

func TestManual_Advance_CollectsErrors(t *testing.T) {
	c := NewManual(0)
	boom := errors.New("boom")
	failing := &recordingListener{err: boom}
	after := &recordingListener{}
	c.Subscribe(failing)
	c.Subscribe(after)

	_, err := c.Advance(context.Background())
	assert.ErrorIs(t, err, boom)

	// The second listener still ran
	assert.Equal(t, []domain.Step{1}, after.steps)
}

func TestManual_AdvanceBy(t *testing.T) {
	c := NewManual(5)
	l := &recordingListener{}
	c.Subscribe(l)

	step, err := c.AdvanceBy(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.Step(8), step)
	assert.Equal(t, []domain.Step{6, 7, 8}, l.steps)
}

func TestManual_AdvanceBy_StopsOnError(t *testing.T) {
	c := NewManual(0)
	l := &recordingListener{err: errors.New("store down")}
	c.Subscribe(l)

	step, err := c.AdvanceBy(context.Background(), 5)
	assert.Error(t, err)
	assert.Equal(t, domain.Step(1), step)
}

func TestManual_AdvanceBy_Cancelled(t *testing.T) {
	c := NewManual(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step, err := c.AdvanceBy(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.Step(0), step)
}

func TestManual_ConcurrentAdvance(t *testing.T) {
	c := NewManual(0)
	l := &recordingListener{}
	c.Subscribe(l)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Advance(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, domain.Step(10), c.Current())
	assert.Len(t, l.steps, 10)
	// Steps are delivered in order
	for i, s := range l.steps {
		assert.Equal(t, domain.Step(i+1), s)
	}
}
