package domain

// EventKind classifies scheduler and engine notifications.
type EventKind string

// Event kinds.
const (
	EventScheduled   EventKind = "scheduled"
	EventRescheduled EventKind = "rescheduled"
	EventCancelled   EventKind = "cancelled"
	EventFired       EventKind = "fired"
	EventFailed      EventKind = "failed"
	EventArmed       EventKind = "armed"
	EventDisarmed    EventKind = "disarmed"
	EventHalted      EventKind = "halted"
	EventSwapped     EventKind = "swapped"
	EventSkipped     EventKind = "skipped"
)

// Event is a notification emitted when scheduler or engine state changes.
type Event struct {
	Kind    EventKind `json:"kind"`
	Step    Step      `json:"step"`
	TaskID  string    `json:"task_id,omitempty"`
	Address Address   `json:"address,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}
