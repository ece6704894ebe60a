// Package sched contains the scheduling core: the concurrency gate, the
// per-kind strategies and the orchestrator that serializes task operations
// and talks to the collaborator ports.
package sched

import (
	"context"
	"time"

	"playsched/internal/task"
)

// Store is the persistence contract the scheduler consumes. It is assumed
// durable and immediately consistent: the EXECUTING count read through it is
// authoritative for admission decisions.
type Store interface {
	Task(ctx context.Context, id int64) (task.Task, error)
	EnabledTasks(ctx context.Context) ([]task.Task, error)
	UpdateExecutionState(ctx context.Context, id int64, st task.ExecutionState, at time.Time) error
	UpdateExecutionWindow(ctx context.Context, id int64, start, end time.Time, at time.Time) error
	DisableTask(ctx context.Context, id int64, at time.Time) error
	CountByState(ctx context.Context, st task.ExecutionState) (int, error)
}

// PlaybackPort is the external playback engine. Start/Stop are fire-and-forget
// from the scheduler's point of view; failures are logged, not retried here.
type PlaybackPort interface {
	Start(taskID int64) error
	Stop(taskID int64) error
	IsCurrentlyPlaying(taskID int64) bool
}

// AlarmPurpose distinguishes the three wakes a task can own.
type AlarmPurpose int

const (
	AlarmStart AlarmPurpose = iota
	AlarmEnd
	AlarmRetry
)

func (p AlarmPurpose) String() string {
	switch p {
	case AlarmStart:
		return "start"
	case AlarmEnd:
		return "end"
	case AlarmRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// AlarmPort abstracts the OS one-shot wake primitive. Each (taskID, purpose)
// pair maps to a stable request identity, so re-arming overwrites rather than
// duplicates. CanScheduleExact surfaces platforms that would silently
// downgrade precision.
type AlarmPort interface {
	SetExact(taskID int64, purpose AlarmPurpose, at time.Time) error
	Cancel(taskID int64, purpose AlarmPurpose)
	CanScheduleExact() bool
}
