package domain

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// TaskIDSize is the length of a task identifier in bytes.
const TaskIDSize = 32

// TaskID is the opaque identifier of a pending invocation.
// The zero value means "no task".
type TaskID [TaskIDSize]byte

// IsZero reports whether the id is unset.
func (id TaskID) IsZero() bool {
	return id == TaskID{}
}

// String returns the hex encoding of the id, or an empty string for the zero id.
func (id TaskID) String() string {
	if id.IsZero() {
		return ""
	}
	return hex.EncodeToString(id[:])
}

// Compare orders ids by their raw bytes.
func (id TaskID) Compare(other TaskID) int {
	return bytes.Compare(id[:], other[:])
}

// Bytes returns a copy of the raw id, or nil for the zero id.
func (id TaskID) Bytes() []byte {
	if id.IsZero() {
		return nil
	}
	b := make([]byte, TaskIDSize)
	copy(b, id[:])
	return b
}

// ParseTaskID decodes a hex encoded task id.
func ParseTaskID(s string) (TaskID, error) {
	var id TaskID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: task id: %v", ErrInvalidInput, err)
	}
	return TaskIDFromBytes(raw)
}

// TaskIDFromBytes converts raw bytes into a task id.
// Empty input yields the zero id.
func TaskIDFromBytes(raw []byte) (TaskID, error) {
	var id TaskID
	if len(raw) == 0 {
		return id, nil
	}
	if len(raw) != TaskIDSize {
		return id, fmt.Errorf("%w: task id must be %d bytes, got %d", ErrInvalidInput, TaskIDSize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// Task is a pending future invocation.
type Task struct {
	// ID is generated by the scheduler at schedule time.
	ID TaskID

	// Owner is the identity that created the task.
	Owner Address

	// Target is the identity of the capability invoked when due.
	Target Address

	// DueStep is the absolute step at which the task becomes eligible to fire.
	DueStep Step

	// CreatedStep is the step at which the task was scheduled.
	CreatedStep Step
}

// CanManage reports whether caller may reschedule or cancel the task.
func (t *Task) CanManage(caller Address) bool {
	return caller == t.Owner || caller == t.Target
}

// Less orders tasks by due step, ties broken by id.
func (t *Task) Less(other *Task) bool {
	if t.DueStep != other.DueStep {
		return t.DueStep < other.DueStep
	}
	return t.ID.Compare(other.ID) < 0
}

// Call describes one invocation of a target.
type Call struct {
	// Caller is the identity performing the call. Scheduled dispatches
	// carry the task owner, so a task scheduled by a capability for
	// itself arrives as a self-call.
	Caller Address

	// TaskID is the task being fired, zero for direct calls.
	TaskID TaskID

	// Step is the clock step at which the call happens.
	Step Step
}

// TaskResult represents the outcome of one task firing.
type TaskResult struct {
	// RunID uniquely identifies the firing.
	RunID string

	// TaskID identifies which task fired.
	TaskID TaskID

	// Target is the invoked capability.
	Target Address

	// Step is the clock step of the batch that fired the task.
	Step Step

	// Success indicates whether the invocation completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string
}

// SchedulerSettings holds scheduler configuration.
type SchedulerSettings struct {
	// MaxDelay is the largest accepted delay in steps.
	MaxDelay Step

	// HistoryKeep is the number of results retained per target.
	HistoryKeep int
}

// DefaultSchedulerSettings returns sensible defaults for the scheduler.
func DefaultSchedulerSettings() SchedulerSettings {
	return SchedulerSettings{
		MaxDelay:    100_000,
		HistoryKeep: 100,
	}
}
