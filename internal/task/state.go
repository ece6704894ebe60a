package task

import "fmt"

// ExecutionState is the persisted lifecycle state of a task.
type ExecutionState string

const (
	StateIdle        ExecutionState = "idle"
	StateScheduled   ExecutionState = "scheduled"
	StateExecuting   ExecutionState = "executing"
	StatePaused      ExecutionState = "paused"
	StateCompleted   ExecutionState = "completed"
	StateDisabled    ExecutionState = "disabled"
	StateSkipped     ExecutionState = "skipped"
	StateWaitingSlot ExecutionState = "waiting_slot"
)

// validTransitions is the strict transition table. An attempted transition
// absent from this table is a programming error, not a runtime condition the
// scheduler recovers from.
var validTransitions = map[ExecutionState]map[ExecutionState]bool{
	StateIdle: {
		StateScheduled:   true,
		StateExecuting:   true,
		StateWaitingSlot: true,
		StateDisabled:    true,
	},
	StateScheduled: {
		StateExecuting:   true,
		StateWaitingSlot: true,
		StateIdle:        true,
		StateSkipped:     true,
		StateDisabled:    true,
	},
	StateExecuting: {
		StatePaused:    true,
		StateCompleted: true,
		StateIdle:      true,
		StateDisabled:  true,
	},
	StatePaused: {
		StateExecuting: true,
		StateCompleted: true,
		StateIdle:      true,
		StateDisabled:  true,
	},
	StateCompleted: {
		StateIdle:      true,
		StateScheduled: true,
		StateDisabled:  true,
	},
	StateDisabled: {
		StateIdle:      true,
		StateScheduled: true,
	},
	StateSkipped: {
		StateExecuting:   true,
		StateScheduled:   true,
		StateIdle:        true,
		StateWaitingSlot: true,
		StateDisabled:    true,
	},
	StateWaitingSlot: {
		StateExecuting: true,
		StateSkipped:   true,
		StateIdle:      true,
		StateDisabled:  true,
	},
}

// TransitionError reports an illegal state transition attempt.
type TransitionError struct {
	TaskID int64
	From   ExecutionState
	To     ExecutionState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %d: invalid execution state transition: %q → %q", e.TaskID, e.From, e.To)
}

// ValidateTransition checks from → to against the table. A self-transition is
// a no-op and always allowed; callers skip the persist in that case.
func ValidateTransition(taskID int64, from, to ExecutionState) error {
	if from == to {
		return nil
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("task %d: unknown execution state %q", taskID, from)
	}
	if !allowed[to] {
		return &TransitionError{TaskID: taskID, From: from, To: to}
	}
	return nil
}

// IsLive reports whether the state counts as an in-flight execution
// (used by reboot reconciliation for cross-day morning-part resume).
func (s ExecutionState) IsLive() bool {
	return s == StateExecuting || s == StatePaused
}
