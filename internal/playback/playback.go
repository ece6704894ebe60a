// Package playback adapts an external player process to the scheduler's
// PlaybackPort. The real product talks to an audio mixing engine; the daemon
// spawns one player command per task and tracks liveness from the processes
// it owns.
package playback

import (
	"context"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "playsched/pkg/logx"
)

// Config controls the player adapter.
//
// Command is the player binary; the task ID is appended as the last argument.
// An empty Command switches to a no-op player that only tracks logical
// playing state (tests, dry runs). StartsPerSec throttles start storms, e.g.
// a boot sweep resuming many tasks at once.
type Config struct {
	Command      string
	Args         []string
	StartsPerSec int
}

type playing struct {
	cmd *exec.Cmd // nil for the no-op player
}

type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	cfg     Config
	limiter *rate.Limiter
	procs   map[int64]*playing
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.StartsPerSec
	if rps <= 0 {
		rps = 4
	}
	return &Service{
		log:     log,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		procs:   map[int64]*playing{},
	}
}

func (s *Service) Start(taskID int64) error {
	s.mu.Lock()
	if _, ok := s.procs[taskID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// Throttle outside the map lock; starts are fire-and-forget from the
	// scheduler's point of view, but we still bound the wait.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.limiter.Wait(ctx); err != nil {
		s.log.Warn("playback start throttled too long", logx.Int64("task", taskID), logx.Err(err))
	}

	if s.cfg.Command == "" {
		s.mu.Lock()
		s.procs[taskID] = &playing{}
		s.mu.Unlock()
		s.log.Info("playback started (noop player)", logx.Int64("task", taskID))
		return nil
	}

	args := append(append([]string(nil), s.cfg.Args...), strconv.FormatInt(taskID, 10))
	cmd := exec.Command(s.cfg.Command, args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	s.procs[taskID] = &playing{cmd: cmd}
	s.mu.Unlock()
	s.log.Info("playback started", logx.Int64("task", taskID), logx.Int("pid", cmd.Process.Pid))

	go s.reap(taskID, cmd)
	return nil
}

// reap clears the entry when the player exits on its own, so liveness queries
// reflect reality rather than our bookkeeping.
func (s *Service) reap(taskID int64, cmd *exec.Cmd) {
	err := cmd.Wait()

	s.mu.Lock()
	p, ok := s.procs[taskID]
	if ok && p.cmd == cmd {
		delete(s.procs, taskID)
	}
	s.mu.Unlock()

	if ok && err != nil {
		s.log.Warn("player exited with error", logx.Int64("task", taskID), logx.Err(err))
	}
}

func (s *Service) Stop(taskID int64) error {
	s.mu.Lock()
	p, ok := s.procs[taskID]
	delete(s.procs, taskID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if p.cmd != nil && p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil {
			return err
		}
	}
	s.log.Info("playback stopped", logx.Int64("task", taskID))
	return nil
}

func (s *Service) IsCurrentlyPlaying(taskID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[taskID]
	return ok
}

// StopAll kills every live player, used on daemon shutdown.
func (s *Service) StopAll() {
	s.mu.Lock()
	procs := s.procs
	s.procs = map[int64]*playing{}
	s.mu.Unlock()

	for id, p := range procs {
		if p.cmd != nil && p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		s.log.Debug("playback stopped on shutdown", logx.Int64("task", id))
	}
}
