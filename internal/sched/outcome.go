package sched

import (
	"time"

	"playsched/internal/task"
)

// OutcomeKind tags the result of asking "what should happen to this task
// right now".
type OutcomeKind int

const (
	// OutcomeImmediate: the window is open and playback was started; only the
	// end boundary remains.
	OutcomeImmediate OutcomeKind = iota
	// OutcomeScheduled: the window opens later; start and end wakes are armed.
	OutcomeScheduled
	// OutcomeEndOnly: playback was already live; only the end wake was re-armed.
	OutcomeEndOnly
	// OutcomeDeferred: the window is open but all slots are taken; the task is
	// parked in WAITING_SLOT with a retry wake armed. End carries the intended
	// window end.
	OutcomeDeferred
	// OutcomeNone: nothing to do; Reason says why.
	OutcomeNone
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeImmediate:
		return "immediate"
	case OutcomeScheduled:
		return "scheduled"
	case OutcomeEndOnly:
		return "end_only"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeNone:
		return "none"
	default:
		return "unknown"
	}
}

// Outcome is the transient result of a schedule decision.
type Outcome struct {
	Kind   OutcomeKind
	Start  time.Time
	End    time.Time
	Reason task.Reason
}

func immediateOutcome(end time.Time) Outcome {
	return Outcome{Kind: OutcomeImmediate, End: end}
}

func scheduledOutcome(start, end time.Time) Outcome {
	return Outcome{Kind: OutcomeScheduled, Start: start, End: end}
}

func endOnlyOutcome(end time.Time) Outcome {
	return Outcome{Kind: OutcomeEndOnly, End: end}
}

func deferredOutcome(end time.Time) Outcome {
	return Outcome{Kind: OutcomeDeferred, End: end}
}

func noScheduleOutcome(reason task.Reason) Outcome {
	return Outcome{Kind: OutcomeNone, Reason: reason}
}
