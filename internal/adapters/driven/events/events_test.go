package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"github.com/custodia-labs/arbiter/internal/core/domain"
)

func TestRecorder_PublishAndFilter(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	r.Publish(ctx, domain.Event{Kind: domain.EventScheduled, Step: 1})
	r.Publish(ctx, domain.Event{Kind: domain.EventFired, Step: 2})
	r.Publish(ctx, domain.Event{Kind: domain.EventScheduled, Step: 2})

	assert.Len(t, r.Events(), 3)
	assert.Equal(t, 2, r.Count(domain.EventScheduled))

	fired := r.Kinds(domain.EventFired, domain.EventFailed)
	require.Len(t, fired, 1)
	assert.Equal(t, domain.Step(2), fired[0].Step)

	r.Reset()
	assert.Empty(t, r.Events())
}

func TestMulti_FansOut(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi{a, nil, b}

	m.Publish(context.Background(), domain.Event{Kind: domain.EventArmed})

	assert.Equal(t, 1, a.Count(domain.EventArmed))
	assert.Equal(t, 1, b.Count(domain.EventArmed))
}

func TestNewWriter_Format(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, "yaml")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	w, err := NewWriter(&bytes.Buffer{}, "")
	require.NoError(t, err)
	assert.Equal(t, FormatText, w.format)
}

func TestWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatText)
	require.NoError(t, err)

	w.Publish(context.Background(), domain.Event{
		Kind:    domain.EventSwapped,
		Step:    12,
		TaskID:  strings.Repeat("ab", 32),
		Address: "arbiter",
		Detail:  "sold 10 AUSD",
	})

	assert.Equal(t, "[step 12] swapped     arbiter task=abababababab sold 10 AUSD\n", buf.String())
}

func TestWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "JSON")
	require.NoError(t, err)

	ctx := context.Background()
	w.Publish(ctx, domain.Event{Kind: domain.EventArmed, Step: 3, Address: "arbiter"})
	w.Publish(ctx, domain.Event{Kind: domain.EventSkipped, Step: 4, Detail: "balanced"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first domain.Event
	require.NoError(t, sonnet.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, domain.EventArmed, first.Kind)
	assert.Equal(t, domain.Step(3), first.Step)
	assert.Equal(t, domain.Address("arbiter"), first.Address)
	assert.NotContains(t, lines[0], "task_id")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriter_WriteErrorIsSwallowed(t *testing.T) {
	w, err := NewWriter(failingWriter{}, FormatText)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		w.Publish(context.Background(), domain.Event{Kind: domain.EventFired})
	})
}
