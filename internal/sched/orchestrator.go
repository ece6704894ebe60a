package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"playsched/internal/task"
	logx "playsched/pkg/logx"
)

// DefaultRetryInterval is the fixed wait before a WAITING_SLOT task asks for
// a slot again. Not exponential, not jittered.
const DefaultRetryInterval = 5 * time.Minute

// Config controls the orchestrator.
type Config struct {
	// Capacity is the global cap on concurrently EXECUTING tasks.
	Capacity int
	// RetryInterval overrides the slot-retry wait (tests shorten it).
	RetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	return c
}

// Orchestrator is the single external entry point of the scheduler. It owns
// one lazily-created mutex per task ID to serialize all operations on that
// task, and a separate global lock guarding concurrency admission (capacity
// is cross-task). Strategies call back into its persist/playback/alarm
// operations.
type Orchestrator struct {
	cfg Config
	log logx.Logger

	store    Store
	playback PlaybackPort
	alarms   AlarmPort
	clock    task.Clock
	calc     *task.Calculator
	gate     *Gate

	strategies map[task.Kind]Strategy

	mu    sync.Mutex
	locks map[int64]*sync.Mutex

	// admitMu serializes the gate check with the EXECUTING persist so two
	// tasks cannot race for the last slot.
	admitMu sync.Mutex
}

func New(cfg Config, store Store, playback PlaybackPort, alarms AlarmPort, clock task.Clock, log logx.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	if clock == nil {
		clock = task.SystemClock{}
	}
	o := &Orchestrator{
		cfg:      cfg,
		log:      log,
		store:    store,
		playback: playback,
		alarms:   alarms,
		clock:    clock,
		calc:     task.NewCalculator(clock, log),
		gate:     NewGate(cfg.Capacity, store, log),
		locks:    map[int64]*sync.Mutex{},
	}
	o.strategies = newStrategies(o)

	if !alarms.CanScheduleExact() {
		o.log.Warn("exact wake scheduling unavailable, start times may drift")
	}
	return o
}

// Gate exposes the concurrency gate for diagnostics.
func (o *Orchestrator) Gate() *Gate { return o.gate }

func (o *Orchestrator) lockFor(id int64) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l := o.locks[id]
	if l == nil {
		l = &sync.Mutex{}
		o.locks[id] = l
	}
	return l
}

func (o *Orchestrator) strategyFor(t task.Task) Strategy {
	// The map is total over all 8 kinds; the fallback is unreachable but
	// keeps the dispatch robust against a future kind addition.
	if s, ok := o.strategies[task.Classify(t)]; ok {
		return s
	}
	return o.strategies[task.KindOneTimeNormal]
}

// ---- Entry points (called by the surrounding app/OS glue) ----

// Schedule is called on save/enable/app start. It re-reads the task from the
// store under the task lock so concurrent edits are not overwritten.
func (o *Orchestrator) Schedule(ctx context.Context, id int64) (Outcome, error) {
	l := o.lockFor(id)
	l.Lock()
	defer l.Unlock()

	t, err := o.store.Task(ctx, id)
	if err != nil {
		return noScheduleOutcome(task.ReasonBadConfig), fmt.Errorf("loading task %d: %w", id, err)
	}
	out, err := o.strategyFor(t).Schedule(ctx, t)
	if err != nil {
		return out, err
	}
	o.log.Debug("schedule decided",
		logx.Int64("task", id),
		logx.String("kind", task.Classify(t).String()),
		logx.String("outcome", out.Kind.String()))
	return out, nil
}

// Cancel is called on disable/delete. It cancels all three wakes atomically
// under the task lock, stops playback if live, and persists the disable.
func (o *Orchestrator) Cancel(ctx context.Context, id int64) error {
	l := o.lockFor(id)
	l.Lock()
	defer l.Unlock()

	t, err := o.store.Task(ctx, id)
	if err != nil {
		return fmt.Errorf("loading task %d: %w", id, err)
	}
	if o.playback.IsCurrentlyPlaying(id) {
		o.stopPlayback(id)
	}
	return o.disable(ctx, &t)
}

// OnAlarmFired dispatches a wake to the task's strategy.
func (o *Orchestrator) OnAlarmFired(ctx context.Context, id int64, purpose AlarmPurpose) error {
	l := o.lockFor(id)
	l.Lock()
	defer l.Unlock()

	t, err := o.store.Task(ctx, id)
	if err != nil {
		return fmt.Errorf("loading task %d: %w", id, err)
	}
	if !t.Enabled {
		// A wake for a task disabled since arming: drop everything.
		o.cancelAlarms(id)
		return nil
	}

	st := o.strategyFor(t)
	switch purpose {
	case AlarmStart:
		return st.HandleStart(ctx, t)
	case AlarmEnd:
		return st.HandleStop(ctx, t)
	case AlarmRetry:
		return st.HandleRetryStart(ctx, t)
	default:
		return fmt.Errorf("task %d: unknown alarm purpose %d", id, purpose)
	}
}

// OnDeviceBoot sweeps all enabled tasks, reconciling each under its own lock.
// One task's failure never aborts the sweep; the global admission lock is
// only taken per task inside the normal admission path.
func (o *Orchestrator) OnDeviceBoot(ctx context.Context) error {
	tasks, err := o.store.EnabledTasks(ctx)
	if err != nil {
		return fmt.Errorf("loading enabled tasks: %w", err)
	}
	o.log.Info("reboot sweep", logx.Int("tasks", len(tasks)))
	for _, t := range tasks {
		o.rebootOne(ctx, t)
	}
	return nil
}

func (o *Orchestrator) rebootOne(ctx context.Context, t task.Task) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("reboot handler panicked", logx.Int64("task", t.ID), logx.Any("panic", r))
		}
	}()
	l := o.lockFor(t.ID)
	l.Lock()
	defer l.Unlock()
	if err := o.strategyFor(t).HandleReboot(ctx, t); err != nil {
		o.log.Error("reboot handler failed", logx.Int64("task", t.ID), logx.Err(err))
	}
}

// ResyncAll re-runs the schedule decision for every enabled task. Schedule is
// idempotent, so this is safe to run periodically as a drift watchdog.
func (o *Orchestrator) ResyncAll(ctx context.Context) error {
	tasks, err := o.store.EnabledTasks(ctx)
	if err != nil {
		return fmt.Errorf("loading enabled tasks: %w", err)
	}
	for _, t := range tasks {
		if _, err := o.Schedule(ctx, t.ID); err != nil {
			o.log.Error("resync failed", logx.Int64("task", t.ID), logx.Err(err))
		}
	}
	return nil
}

// ---- Operations exposed to strategies (task lock already held) ----

// setState validates against the transition table and persists. A
// self-transition is a silent no-op. An illegal transition is a programming
// error: it is returned, logged by callers, and nothing is persisted.
func (o *Orchestrator) setState(ctx context.Context, t *task.Task, st task.ExecutionState) error {
	if t.State == st {
		return nil
	}
	if err := task.ValidateTransition(t.ID, t.State, st); err != nil {
		return err
	}
	if err := o.store.UpdateExecutionState(ctx, t.ID, st, o.clock.Now()); err != nil {
		return fmt.Errorf("persisting state of task %d: %w", t.ID, err)
	}
	o.log.Debug("state transition",
		logx.Int64("task", t.ID),
		logx.String("from", string(t.State)),
		logx.String("to", string(st)))
	t.State = st
	return nil
}

func (o *Orchestrator) setWindow(ctx context.Context, t *task.Task, start, end time.Time) error {
	if err := o.store.UpdateExecutionWindow(ctx, t.ID, start, end, o.clock.Now()); err != nil {
		return fmt.Errorf("persisting window of task %d: %w", t.ID, err)
	}
	t.CurrentStart, t.CurrentEnd = start, end
	return nil
}

// markScheduled resets the task into SCHEDULED with the next cycle's window.
// States that cannot reach SCHEDULED directly are normalized through IDLE
// first; that hop is a cycle rollover, not a table violation.
func (o *Orchestrator) markScheduled(ctx context.Context, t *task.Task, start, end time.Time) error {
	if task.ValidateTransition(t.ID, t.State, task.StateScheduled) != nil {
		if err := o.setState(ctx, t, task.StateIdle); err != nil {
			return err
		}
	}
	if err := o.setState(ctx, t, task.StateScheduled); err != nil {
		return err
	}
	return o.setWindow(ctx, t, start, end)
}

// disable persists the disable flag, moves the state to DISABLED and drops
// all three wakes.
func (o *Orchestrator) disable(ctx context.Context, t *task.Task) error {
	o.cancelAlarms(t.ID)
	if err := o.store.DisableTask(ctx, t.ID, o.clock.Now()); err != nil {
		return fmt.Errorf("disabling task %d: %w", t.ID, err)
	}
	t.Enabled = false
	return o.setState(ctx, t, task.StateDisabled)
}

func (o *Orchestrator) armAlarm(id int64, purpose AlarmPurpose, at time.Time) {
	if err := o.alarms.SetExact(id, purpose, at); err != nil {
		o.log.Error("arming wake failed",
			logx.Int64("task", id), logx.String("purpose", purpose.String()), logx.Err(err))
		return
	}
	o.log.Debug("wake armed",
		logx.Int64("task", id), logx.String("purpose", purpose.String()), logx.Time("at", at))
}

func (o *Orchestrator) cancelAlarms(id int64) {
	o.alarms.Cancel(id, AlarmStart)
	o.alarms.Cancel(id, AlarmEnd)
	o.alarms.Cancel(id, AlarmRetry)
}

func (o *Orchestrator) startPlayback(id int64) {
	if err := o.playback.Start(id); err != nil {
		o.log.Error("playback start failed", logx.Int64("task", id), logx.Err(err))
	}
}

func (o *Orchestrator) stopPlayback(id int64) {
	if err := o.playback.Stop(id); err != nil {
		o.log.Error("playback stop failed", logx.Int64("task", id), logx.Err(err))
	}
}

// tryStartWithConcurrencyCheck is the only place a task may enter EXECUTING.
//
// Under the global admission lock: a denied task is parked in WAITING_SLOT
// with its intended window persisted and a RETRY wake armed; an admitted task
// persists EXECUTING before the lock is released, so the store-derived count
// is authoritative the instant the decision is made. Playback starts after
// the lock is dropped.
func (o *Orchestrator) tryStartWithConcurrencyCheck(ctx context.Context, t *task.Task, start, end time.Time) (bool, error) {
	o.admitMu.Lock()

	if !o.gate.CanAdmit(ctx) {
		err := func() error {
			// States with no direct edge to WAITING_SLOT (crashed runs being
			// reconciled, re-enabled DISABLED tasks) roll over through IDLE.
			if task.ValidateTransition(t.ID, t.State, task.StateWaitingSlot) != nil {
				if err := o.setState(ctx, t, task.StateIdle); err != nil {
					return err
				}
			}
			if err := o.setState(ctx, t, task.StateWaitingSlot); err != nil {
				return err
			}
			return o.setWindow(ctx, t, start, end)
		}()
		o.admitMu.Unlock()
		if err != nil {
			return false, err
		}
		retryAt := o.clock.Now().Add(o.cfg.RetryInterval)
		o.armAlarm(t.ID, AlarmRetry, retryAt)
		o.log.Info("no slot available, start deferred",
			logx.Int64("task", t.ID), logx.Time("retry_at", retryAt))
		return false, nil
	}

	err := func() error {
		// COMPLETED and re-enabled DISABLED tasks have no direct edge to
		// EXECUTING; a new cycle rolls over through IDLE first.
		if task.ValidateTransition(t.ID, t.State, task.StateExecuting) != nil {
			if err := o.setState(ctx, t, task.StateIdle); err != nil {
				return err
			}
		}
		if err := o.setState(ctx, t, task.StateExecuting); err != nil {
			return err
		}
		return o.setWindow(ctx, t, start, end)
	}()
	o.admitMu.Unlock()
	if err != nil {
		return false, err
	}

	o.alarms.Cancel(t.ID, AlarmRetry)
	o.startPlayback(t.ID)
	return true, nil
}

// handleSkipDueToConcurrency marks a task whose window expired while waiting
// for a slot. SKIPPED is deliberately user-visible and is not silently reset:
// a repeating task keeps showing it while the next cycle's wakes are armed,
// until the next START actually fires; a one-shot task is disabled.
func (o *Orchestrator) handleSkipDueToConcurrency(ctx context.Context, t *task.Task, repeating bool) error {
	o.alarms.Cancel(t.ID, AlarmRetry)
	if err := o.setState(ctx, t, task.StateSkipped); err != nil {
		return err
	}
	o.log.Info("window expired waiting for a slot, skipped",
		logx.Int64("task", t.ID), logx.Bool("repeating", repeating))

	if !repeating {
		return o.disable(ctx, t)
	}
	next, ok := o.calc.NextStartTime(*t)
	if !ok {
		return nil
	}
	end := o.calc.EndTimeForStart(*t, next)
	if err := o.setWindow(ctx, t, next, end); err != nil {
		return err
	}
	o.armAlarm(t.ID, AlarmStart, next)
	o.armAlarm(t.ID, AlarmEnd, end)
	return nil
}
