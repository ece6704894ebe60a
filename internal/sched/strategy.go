package sched

import (
	"context"

	"playsched/internal/task"
	logx "playsched/pkg/logx"
)

// Strategy is the five-operation contract every temporal kind implements.
// All methods run with the task's per-ID lock held by the orchestrator.
type Strategy interface {
	// Schedule decides what should happen right now: start immediately,
	// arm future wakes, or nothing. Called on save/enable/app start.
	Schedule(ctx context.Context, t task.Task) (Outcome, error)
	// HandleStart runs when the START wake fires.
	HandleStart(ctx context.Context, t task.Task) error
	// HandleStop runs when the END wake fires.
	HandleStop(ctx context.Context, t task.Task) error
	// HandleReboot reconciles persisted state against live playback after a
	// process or device restart.
	HandleReboot(ctx context.Context, t task.Task) error
	// HandleRetryStart runs when a WAITING_SLOT retry wake fires.
	HandleRetryStart(ctx context.Context, t task.Task) error
}

// strategyCore carries the behavior shared by all kinds. Variants delegate to
// it and override where their kind differs (one-shot completion, midnight
// continuation, chain arming).
type strategyCore struct {
	o *Orchestrator
}

// schedule is the common decision algorithm. chainNext makes repeating kinds
// pre-arm the following cycle's START wake as soon as playback starts.
func (c *strategyCore) schedule(ctx context.Context, t task.Task, chainNext bool) (Outcome, error) {
	o := c.o
	if !t.Enabled {
		return noScheduleOutcome(task.ReasonDisabled), nil
	}

	check := o.calc.ShouldBeActiveNow(t)
	if check.Active {
		if o.playback.IsCurrentlyPlaying(t.ID) {
			// Idempotent re-entry: a duplicate schedule call must not restart
			// playback from zero, only refresh the end boundary.
			o.armAlarm(t.ID, AlarmEnd, check.EffectiveEnd)
			return endOnlyOutcome(check.EffectiveEnd), nil
		}
		admitted, err := o.tryStartWithConcurrencyCheck(ctx, &t, o.clock.Now(), check.EffectiveEnd)
		if err != nil {
			return noScheduleOutcome(task.ReasonBadConfig), err
		}
		if admitted {
			o.armAlarm(t.ID, AlarmEnd, check.EffectiveEnd)
		}
		if chainNext {
			c.armNextChain(t)
		}
		if !admitted {
			return deferredOutcome(check.EffectiveEnd), nil
		}
		return immediateOutcome(check.EffectiveEnd), nil
	}

	next, ok := o.calc.NextStartTime(t)
	if !ok {
		return noScheduleOutcome(check.Reason), nil
	}
	end := o.calc.EndTimeForStart(t, next)
	if err := o.markScheduled(ctx, &t, next, end); err != nil {
		return noScheduleOutcome(check.Reason), err
	}
	o.armAlarm(t.ID, AlarmStart, next)
	o.armAlarm(t.ID, AlarmEnd, end)
	return scheduledOutcome(next, end), nil
}

// handleStart validates the window again before acting: a wake may fire for a
// window that moved since it was armed.
func (c *strategyCore) handleStart(ctx context.Context, t task.Task, chainNext bool) error {
	o := c.o
	check := o.calc.ShouldBeActiveNow(t)
	if !check.Active {
		o.log.Warn("start wake fired outside window, rescheduling",
			logx.Int64("task", t.ID), logx.String("reason", string(check.Reason)))
		_, err := c.schedule(ctx, t, chainNext)
		return err
	}

	if o.playback.IsCurrentlyPlaying(t.ID) {
		o.armAlarm(t.ID, AlarmEnd, check.EffectiveEnd)
	} else {
		admitted, err := o.tryStartWithConcurrencyCheck(ctx, &t, o.clock.Now(), check.EffectiveEnd)
		if err != nil {
			return err
		}
		if admitted {
			o.armAlarm(t.ID, AlarmEnd, check.EffectiveEnd)
		}
	}
	if chainNext {
		c.armNextChain(t)
	}
	return nil
}

// handleStop routes the END wake. A task still waiting for a slot when its
// window ends goes down the skip path instead of a normal stop.
func (c *strategyCore) handleStop(ctx context.Context, t task.Task, oneShot, allDay bool) error {
	if t.State == task.StateWaitingSlot {
		return c.o.handleSkipDueToConcurrency(ctx, &t, !oneShot)
	}
	if allDay && !oneShot {
		extended, err := c.continueAllDay(ctx, t)
		if err != nil {
			return err
		}
		if extended {
			return nil
		}
	}
	if oneShot {
		return c.stopOneShot(ctx, t)
	}
	return c.stopRepeating(ctx, t)
}

// stopOneShot completes the single cycle: playback off, COMPLETED, then
// auto-disable so the task never replays.
func (c *strategyCore) stopOneShot(ctx context.Context, t task.Task) error {
	o := c.o
	o.stopPlayback(t.ID)
	if err := o.setState(ctx, &t, task.StateCompleted); err != nil {
		return err
	}
	return o.disable(ctx, &t)
}

// stopRepeating closes the cycle and immediately arms the next one.
func (c *strategyCore) stopRepeating(ctx context.Context, t task.Task) error {
	o := c.o
	o.stopPlayback(t.ID)
	if err := o.setState(ctx, &t, task.StateIdle); err != nil {
		return err
	}
	_, err := c.schedule(ctx, t, true)
	return err
}

// continueAllDay treats the END wake as a midnight continuation check for
// repeating all-day tasks: when the new day still matches the mask, the end
// boundary is pushed to the following midnight instead of stopping.
// Returns true when the window was extended.
func (c *strategyCore) continueAllDay(ctx context.Context, t task.Task) (bool, error) {
	o := c.o
	check := o.calc.ShouldBeActiveNow(t)
	if !check.Active {
		return false, nil
	}
	if err := o.setWindow(ctx, &t, t.CurrentStart, check.EffectiveEnd); err != nil {
		return false, err
	}
	o.armAlarm(t.ID, AlarmEnd, check.EffectiveEnd)
	o.log.Debug("all-day window extended past midnight",
		logx.Int64("task", t.ID), logx.Time("until", check.EffectiveEnd))
	return true, nil
}

// handleReboot reconciles persisted state with actual playback. Live playback
// answers "is it running"; persisted state answers "should a new cycle begin".
func (c *strategyCore) handleReboot(ctx context.Context, t task.Task, oneShot, chainNext bool) error {
	o := c.o
	check := o.calc.ShouldBeActiveNow(t)
	playing := o.playback.IsCurrentlyPlaying(t.ID)

	if check.Active {
		if playing {
			// Playback survived the restart; only the end boundary needs re-arming.
			o.armAlarm(t.ID, AlarmEnd, check.EffectiveEnd)
			return nil
		}
		admitted, err := o.tryStartWithConcurrencyCheck(ctx, &t, o.clock.Now(), check.EffectiveEnd)
		if err != nil {
			return err
		}
		if admitted {
			o.armAlarm(t.ID, AlarmEnd, check.EffectiveEnd)
		}
		if chainNext {
			c.armNextChain(t)
		}
		return nil
	}

	// Window not (or no longer) open.
	if playing {
		o.stopPlayback(t.ID)
	}
	if oneShot && t.State.IsLive() {
		// The run was cut short by the restart and its window has elapsed;
		// finish it the same way the END wake would have.
		return c.stopOneShot(ctx, t)
	}
	_, err := c.schedule(ctx, t, chainNext)
	return err
}

// handleRetryStart re-validates that the persisted intended window is still
// open before retrying admission; an expired window routes to the skip path.
func (c *strategyCore) handleRetryStart(ctx context.Context, t task.Task, repeating bool) error {
	o := c.o
	if t.State != task.StateWaitingSlot {
		// Stale retry wake (task was edited or started through another path).
		o.log.Debug("ignoring retry wake in state", logx.Int64("task", t.ID), logx.String("state", string(t.State)))
		return nil
	}

	now := o.clock.Now()
	expired := false
	if !t.CurrentEnd.IsZero() {
		expired = !now.Before(t.CurrentEnd)
	} else {
		expired = !o.calc.ShouldBeActiveNow(t).Active
	}
	if expired {
		return o.handleSkipDueToConcurrency(ctx, &t, repeating)
	}

	admitted, err := o.tryStartWithConcurrencyCheck(ctx, &t, now, t.CurrentEnd)
	if err != nil {
		return err
	}
	if admitted {
		o.armAlarm(t.ID, AlarmEnd, t.CurrentEnd)
		if repeating {
			c.armNextChain(t)
		}
	}
	return nil
}

// armNextChain pre-arms the next cycle's START wake (repeating kinds only).
func (c *strategyCore) armNextChain(t task.Task) {
	next, ok := c.o.calc.NextStartTime(t)
	if !ok {
		return
	}
	c.o.armAlarm(t.ID, AlarmStart, next)
}
