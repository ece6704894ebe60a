package sched

import (
	"context"

	"playsched/internal/task"
)

// repeatNormal handles a same-day window on selected weekdays. Repeating
// kinds chain: the next cycle's START wake is pre-armed as soon as playback
// starts, so the schedule is self-perpetuating.
type repeatNormal struct {
	core *strategyCore
}

func (s repeatNormal) Schedule(ctx context.Context, t task.Task) (Outcome, error) {
	return s.core.schedule(ctx, t, true)
}

func (s repeatNormal) HandleStart(ctx context.Context, t task.Task) error {
	return s.core.handleStart(ctx, t, true)
}

func (s repeatNormal) HandleStop(ctx context.Context, t task.Task) error {
	return s.core.handleStop(ctx, t, false, false)
}

func (s repeatNormal) HandleReboot(ctx context.Context, t task.Task) error {
	return s.core.handleReboot(ctx, t, false, true)
}

func (s repeatNormal) HandleRetryStart(ctx context.Context, t task.Task) error {
	return s.core.handleRetryStart(ctx, t, true)
}

// repeatCrossDay handles a midnight-spanning window on selected weekdays.
// The evening part follows today's mask bit, the morning part yesterday's;
// both sides are decided by the time calculator.
type repeatCrossDay struct {
	core *strategyCore
}

func (s repeatCrossDay) Schedule(ctx context.Context, t task.Task) (Outcome, error) {
	return s.core.schedule(ctx, t, true)
}

func (s repeatCrossDay) HandleStart(ctx context.Context, t task.Task) error {
	return s.core.handleStart(ctx, t, true)
}

func (s repeatCrossDay) HandleStop(ctx context.Context, t task.Task) error {
	return s.core.handleStop(ctx, t, false, false)
}

func (s repeatCrossDay) HandleReboot(ctx context.Context, t task.Task) error {
	return s.core.handleReboot(ctx, t, false, true)
}

func (s repeatCrossDay) HandleRetryStart(ctx context.Context, t task.Task) error {
	return s.core.handleRetryStart(ctx, t, true)
}

// repeatAllDay plays whole days on selected weekdays. Its END wake fires just
// past midnight as a continuation check: if the new day still matches the
// mask the end boundary is pushed to the following midnight, otherwise the
// cycle stops and the next one is armed.
type repeatAllDay struct {
	core *strategyCore
}

func (s repeatAllDay) Schedule(ctx context.Context, t task.Task) (Outcome, error) {
	return s.core.schedule(ctx, t, true)
}

func (s repeatAllDay) HandleStart(ctx context.Context, t task.Task) error {
	return s.core.handleStart(ctx, t, true)
}

func (s repeatAllDay) HandleStop(ctx context.Context, t task.Task) error {
	return s.core.handleStop(ctx, t, false, true)
}

func (s repeatAllDay) HandleReboot(ctx context.Context, t task.Task) error {
	return s.core.handleReboot(ctx, t, false, true)
}

func (s repeatAllDay) HandleRetryStart(ctx context.Context, t task.Task) error {
	return s.core.handleRetryStart(ctx, t, true)
}

// everydayNormal is a repeating same-day window whose mask covers the whole
// week; the day check always passes, which keeps the hot path cheap.
type everydayNormal struct {
	core *strategyCore
}

func (s everydayNormal) Schedule(ctx context.Context, t task.Task) (Outcome, error) {
	return s.core.schedule(ctx, t, true)
}

func (s everydayNormal) HandleStart(ctx context.Context, t task.Task) error {
	return s.core.handleStart(ctx, t, true)
}

func (s everydayNormal) HandleStop(ctx context.Context, t task.Task) error {
	return s.core.handleStop(ctx, t, false, false)
}

func (s everydayNormal) HandleReboot(ctx context.Context, t task.Task) error {
	return s.core.handleReboot(ctx, t, false, true)
}

func (s everydayNormal) HandleRetryStart(ctx context.Context, t task.Task) error {
	return s.core.handleRetryStart(ctx, t, true)
}

// everydayCrossDay is a midnight-spanning window active every night. Because
// every mask bit is set, both the evening and the morning part always match.
type everydayCrossDay struct {
	core *strategyCore
}

func (s everydayCrossDay) Schedule(ctx context.Context, t task.Task) (Outcome, error) {
	return s.core.schedule(ctx, t, true)
}

func (s everydayCrossDay) HandleStart(ctx context.Context, t task.Task) error {
	return s.core.handleStart(ctx, t, true)
}

func (s everydayCrossDay) HandleStop(ctx context.Context, t task.Task) error {
	return s.core.handleStop(ctx, t, false, false)
}

func (s everydayCrossDay) HandleReboot(ctx context.Context, t task.Task) error {
	return s.core.handleReboot(ctx, t, false, true)
}

func (s everydayCrossDay) HandleRetryStart(ctx context.Context, t task.Task) error {
	return s.core.handleRetryStart(ctx, t, true)
}

func newStrategies(o *Orchestrator) map[task.Kind]Strategy {
	core := &strategyCore{o: o}
	return map[task.Kind]Strategy{
		task.KindOneTimeNormal:    oneTimeNormal{core},
		task.KindOneTimeCrossDay:  oneTimeCrossDay{core},
		task.KindOneTimeAllDay:    oneTimeAllDay{core},
		task.KindRepeatNormal:     repeatNormal{core},
		task.KindRepeatCrossDay:   repeatCrossDay{core},
		task.KindRepeatAllDay:     repeatAllDay{core},
		task.KindEverydayNormal:   everydayNormal{core},
		task.KindEverydayCrossDay: everydayCrossDay{core},
	}
}
