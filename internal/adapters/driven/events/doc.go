// Package events provides driven.EventSink implementations.
//
//   - Recorder keeps events in memory for inspection and tests
//   - Writer prints events as text lines or JSON lines
//   - Multi fans an event out to several sinks
package events
