package events

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sugawarayuuta/sonnet"

	"github.com/custodia-labs/arbiter/internal/core/domain"
	"github.com/custodia-labs/arbiter/internal/core/ports/driven"
	"github.com/custodia-labs/arbiter/internal/logger"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Ensure Writer implements the interface.
var _ driven.EventSink = (*Writer)(nil)

// Writer prints events to an io.Writer, one per line.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	format string
}

// NewWriter creates a writer. Unknown formats are rejected.
func NewWriter(out io.Writer, format string) (*Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		format = FormatText
	case FormatJSON:
		format = FormatJSON
	default:
		return nil, fmt.Errorf("%w: output format %q", domain.ErrInvalidInput, format)
	}
	return &Writer{out: out, format: format}, nil
}

// Publish writes event. Write failures are logged, not returned.
func (w *Writer) Publish(_ context.Context, event domain.Event) {
	line, err := w.render(event)
	if err != nil {
		logger.Warn("events: failed to encode %s event: %v", event.Kind, err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(line); err != nil {
		logger.Warn("events: failed to write %s event: %v", event.Kind, err)
	}
}

func (w *Writer) render(event domain.Event) ([]byte, error) {
	if w.format == FormatJSON {
		data, err := sonnet.Marshal(event)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return []byte(FormatEvent(event) + "\n"), nil
}

// FormatEvent renders event as a single human readable line.
func FormatEvent(event domain.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[step %d] %-11s", event.Step, event.Kind)
	if event.Address != "" {
		fmt.Fprintf(&b, " %s", event.Address)
	}
	if event.TaskID != "" {
		fmt.Fprintf(&b, " task=%s", shortID(event.TaskID))
	}
	if event.Detail != "" {
		fmt.Fprintf(&b, " %s", event.Detail)
	}
	return b.String()
}

// shortID truncates a hex task id for display.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
