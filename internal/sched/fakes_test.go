package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"playsched/internal/task"
	logx "playsched/pkg/logx"
)

// fakeClock is a settable clock shared by the orchestrator and assertions.
// 2024-05-15 is a Wednesday.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Today() time.Weekday { return c.Now().Weekday() }

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	c.now = at
	c.mu.Unlock()
}

func mayAt(day, hour, min int) time.Time {
	return time.Date(2024, 5, day, hour, min, 0, 0, time.UTC)
}

// fakeStore is an in-memory Store with the same consistency contract as the
// SQLite one: reads observe the latest write.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[int64]*task.Task
}

func newFakeStore(tasks ...task.Task) *fakeStore {
	s := &fakeStore{tasks: map[int64]*task.Task{}}
	for _, t := range tasks {
		cp := t
		if cp.State == "" {
			// Same default the storage schema applies.
			cp.State = task.StateIdle
		}
		s.tasks[t.ID] = &cp
	}
	return s
}

func (s *fakeStore) get(id int64) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d not found", id)
	}
	return t, nil
}

func (s *fakeStore) Task(ctx context.Context, id int64) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(id)
	if err != nil {
		return task.Task{}, err
	}
	return *t, nil
}

func (s *fakeStore) EnabledTasks(ctx context.Context) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []task.Task
	for _, t := range s.tasks {
		if t.Enabled {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateExecutionState(ctx context.Context, id int64, st task.ExecutionState, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(id)
	if err != nil {
		return err
	}
	t.State = st
	return nil
}

func (s *fakeStore) UpdateExecutionWindow(ctx context.Context, id int64, start, end time.Time, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(id)
	if err != nil {
		return err
	}
	t.CurrentStart, t.CurrentEnd = start, end
	return nil
}

func (s *fakeStore) DisableTask(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(id)
	if err != nil {
		return err
	}
	t.Enabled = false
	return nil
}

func (s *fakeStore) CountByState(ctx context.Context, st task.ExecutionState) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Enabled && t.State == st {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) state(id int64) task.ExecutionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].State
}

func (s *fakeStore) snapshot(id int64) task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

// fakeAlarms records armed wakes without firing them; tests fire through the
// orchestrator directly.
type fakeAlarms struct {
	mu    sync.Mutex
	armed map[string]time.Time
	exact bool
}

func newFakeAlarms() *fakeAlarms {
	return &fakeAlarms{armed: map[string]time.Time{}, exact: true}
}

func alarmKey(id int64, p AlarmPurpose) string { return fmt.Sprintf("%d:%s", id, p) }

func (a *fakeAlarms) SetExact(taskID int64, purpose AlarmPurpose, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed[alarmKey(taskID, purpose)] = at
	return nil
}

func (a *fakeAlarms) Cancel(taskID int64, purpose AlarmPurpose) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.armed, alarmKey(taskID, purpose))
}

func (a *fakeAlarms) CanScheduleExact() bool { return a.exact }

func (a *fakeAlarms) armedAt(taskID int64, purpose AlarmPurpose) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	at, ok := a.armed[alarmKey(taskID, purpose)]
	return at, ok
}

// fakePlayback tracks logical playing state and counts starts so idempotence
// is observable.
type fakePlayback struct {
	mu      sync.Mutex
	playing map[int64]bool
	starts  map[int64]int
	stops   map[int64]int
}

func newFakePlayback() *fakePlayback {
	return &fakePlayback{playing: map[int64]bool{}, starts: map[int64]int{}, stops: map[int64]int{}}
}

func (p *fakePlayback) Start(taskID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing[taskID] = true
	p.starts[taskID]++
	return nil
}

func (p *fakePlayback) Stop(taskID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing[taskID] = false
	p.stops[taskID]++
	return nil
}

func (p *fakePlayback) IsCurrentlyPlaying(taskID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing[taskID]
}

func (p *fakePlayback) setPlaying(taskID int64, v bool) {
	p.mu.Lock()
	p.playing[taskID] = v
	p.mu.Unlock()
}

func (p *fakePlayback) startCount(taskID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts[taskID]
}

// rig bundles a fully wired orchestrator over fakes.
type rig struct {
	clock    *fakeClock
	store    *fakeStore
	alarms   *fakeAlarms
	playback *fakePlayback
	orch     *Orchestrator
}

func newRig(cfg Config, at time.Time, tasks ...task.Task) *rig {
	r := &rig{
		clock:    newFakeClock(at),
		store:    newFakeStore(tasks...),
		alarms:   newFakeAlarms(),
		playback: newFakePlayback(),
	}
	r.orch = New(cfg, r.store, r.playback, r.alarms, r.clock, logx.Nop())
	return r
}
