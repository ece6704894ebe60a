// Package alarm is the host-side AlarmPort: absolute one-shot wakes backed by
// runtime timers. On a mobile platform the same contract is fulfilled by the
// OS alarm manager; this implementation serves the daemon and tests.
package alarm

import (
	"sync"
	"time"

	"playsched/internal/sched"
	"playsched/internal/task"
	logx "playsched/pkg/logx"
)

// Handler receives fired wakes. It is invoked on a timer goroutine; the
// orchestrator serializes per task on entry.
type Handler func(taskID int64, purpose sched.AlarmPurpose)

// Service implements sched.AlarmPort.
//
// Each (taskID, purpose) pair maps to the stable request identity
// taskID*3 + purpose, so re-arming overwrites the previous wake instead of
// duplicating it. Timers are versioned: a fire that lost a re-arm or cancel
// race is dropped.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	clock   task.Clock
	handler Handler

	timers map[int64]*time.Timer
	ver    map[int64]uint64
}

func New(clock task.Clock, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if clock == nil {
		clock = task.SystemClock{}
	}
	return &Service{
		log:    log,
		clock:  clock,
		timers: map[int64]*time.Timer{},
		ver:    map[int64]uint64{},
	}
}

// SetHandler installs the fire callback. Must be called before the first
// SetExact; the orchestrator is constructed after the port, so wiring happens
// in two steps.
func (s *Service) SetHandler(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func requestID(taskID int64, purpose sched.AlarmPurpose) int64 {
	return taskID*3 + int64(purpose)
}

func (s *Service) SetExact(taskID int64, purpose sched.AlarmPurpose, at time.Time) error {
	id := requestID(taskID, purpose)
	delay := at.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.timers[id]; t != nil {
		t.Stop()
	}
	s.ver[id]++
	v := s.ver[id]
	s.timers[id] = time.AfterFunc(delay, func() {
		s.fire(id, v, taskID, purpose)
	})
	return nil
}

func (s *Service) Cancel(taskID int64, purpose sched.AlarmPurpose) {
	id := requestID(taskID, purpose)

	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.timers[id]; t != nil {
		t.Stop()
		delete(s.timers, id)
	}
	// Bump the version so an already-expired timer that is waiting on the
	// lock drops its fire.
	s.ver[id]++
}

// CanScheduleExact reports whether wakes fire at their exact time. Runtime
// timers always do; a platform port would query the OS capability here
// instead of failing silently with downgraded precision.
func (s *Service) CanScheduleExact() bool { return true }

// Stop cancels every pending wake. Pending definitions live in the store, so
// a later boot sweep re-arms them.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		s.ver[id]++
	}
	s.timers = map[int64]*time.Timer{}
}

func (s *Service) fire(id int64, v uint64, taskID int64, purpose sched.AlarmPurpose) {
	s.mu.Lock()
	current := s.ver[id] == v
	if current {
		delete(s.timers, id)
	}
	h := s.handler
	s.mu.Unlock()

	if !current {
		return
	}
	if h == nil {
		s.log.Warn("wake fired with no handler installed",
			logx.Int64("task", taskID), logx.String("purpose", purpose.String()))
		return
	}
	h(taskID, purpose)
}
