// Package logger provides verbose logging for the arbiter CLI and core services.
// When verbose mode is enabled via the --verbose flag, debug messages about
// scheduling and rebalancing are written to stderr. Errors are always written.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	format            = FormatText
	log               = newSlog(os.Stderr, FormatText)
)

// newSlog builds a handler without timestamps; the core has no wall clock
// and step numbers are carried in the messages instead.
func newSlog(w io.Writer, f string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}
	if f == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	log = newSlog(output, format)
}

// SetFormat selects "text" or "json" output. Unknown values fall back to text.
func SetFormat(f string) {
	mu.Lock()
	defer mu.Unlock()
	format = FormatText
	if strings.EqualFold(f, FormatJSON) {
		format = FormatJSON
	}
	log = newSlog(output, format)
}

func emit(gated bool, level slog.Level, msg string) {
	mu.RLock()
	defer mu.RUnlock()
	if gated && !verbose {
		return
	}
	log.Log(context.Background(), level, msg)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	emit(true, slog.LevelDebug, fmt.Sprintf(format, args...))
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	emit(true, slog.LevelInfo, "=== "+name+" ===")
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	emit(true, slog.LevelInfo, fmt.Sprintf(format, args...))
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	emit(true, slog.LevelWarn, fmt.Sprintf(format, args...))
}

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) {
	emit(false, slog.LevelError, fmt.Sprintf(format, args...))
}
