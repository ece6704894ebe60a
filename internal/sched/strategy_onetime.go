package sched

import (
	"context"

	"playsched/internal/task"
)

// oneTimeNormal handles a single [start, end) window within one day.
// No chaining: once the window closes the task completes and disables itself.
type oneTimeNormal struct {
	core *strategyCore
}

func (s oneTimeNormal) Schedule(ctx context.Context, t task.Task) (Outcome, error) {
	return s.core.schedule(ctx, t, false)
}

func (s oneTimeNormal) HandleStart(ctx context.Context, t task.Task) error {
	return s.core.handleStart(ctx, t, false)
}

func (s oneTimeNormal) HandleStop(ctx context.Context, t task.Task) error {
	return s.core.handleStop(ctx, t, true, false)
}

func (s oneTimeNormal) HandleReboot(ctx context.Context, t task.Task) error {
	return s.core.handleReboot(ctx, t, true, false)
}

func (s oneTimeNormal) HandleRetryStart(ctx context.Context, t task.Task) error {
	return s.core.handleRetryStart(ctx, t, false)
}

// oneTimeCrossDay handles a single window that spans midnight. Its morning
// part carries no repeat-day bit to consult, so after a restart it only
// resumes while persisted state still says an execution is live; the window
// check returns inactive otherwise and the reboot path falls through to a
// plain (re)schedule. Missing a playback is preferred over replaying one.
type oneTimeCrossDay struct {
	core *strategyCore
}

func (s oneTimeCrossDay) Schedule(ctx context.Context, t task.Task) (Outcome, error) {
	return s.core.schedule(ctx, t, false)
}

func (s oneTimeCrossDay) HandleStart(ctx context.Context, t task.Task) error {
	return s.core.handleStart(ctx, t, false)
}

func (s oneTimeCrossDay) HandleStop(ctx context.Context, t task.Task) error {
	return s.core.handleStop(ctx, t, true, false)
}

func (s oneTimeCrossDay) HandleReboot(ctx context.Context, t task.Task) error {
	return s.core.handleReboot(ctx, t, true, false)
}

func (s oneTimeCrossDay) HandleRetryStart(ctx context.Context, t task.Task) error {
	return s.core.handleRetryStart(ctx, t, false)
}

// oneTimeAllDay plays from the moment it is enabled until the next midnight,
// then completes. The END wake at midnight is a plain completion here, not a
// continuation check: a one-shot has exactly one cycle.
type oneTimeAllDay struct {
	core *strategyCore
}

func (s oneTimeAllDay) Schedule(ctx context.Context, t task.Task) (Outcome, error) {
	return s.core.schedule(ctx, t, false)
}

func (s oneTimeAllDay) HandleStart(ctx context.Context, t task.Task) error {
	return s.core.handleStart(ctx, t, false)
}

func (s oneTimeAllDay) HandleStop(ctx context.Context, t task.Task) error {
	return s.core.handleStop(ctx, t, true, true)
}

func (s oneTimeAllDay) HandleReboot(ctx context.Context, t task.Task) error {
	return s.core.handleReboot(ctx, t, true, false)
}

func (s oneTimeAllDay) HandleRetryStart(ctx context.Context, t task.Task) error {
	return s.core.handleRetryStart(ctx, t, false)
}
