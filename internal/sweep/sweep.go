// Package sweep periodically re-runs the schedule decision over all enabled
// tasks. Wakes are the primary trigger; the sweep is a drift watchdog that
// catches clock jumps and timers lost while the process was stopped.
package sweep

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"playsched/internal/sched"
	logx "playsched/pkg/logx"
)

// Config controls the reconcile sweep.
type Config struct {
	Enabled  bool
	Spec     string // cron spec or @every form; default "@every 1h"
	Timezone string // IANA TZ; empty means local
}

type Service struct {
	cfg    Config
	log    logx.Logger
	orch   *sched.Orchestrator
	parser cron.Parser
	c      *cron.Cron
}

func New(cfg Config, orch *sched.Orchestrator, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Spec) == "" {
		cfg.Spec = "@every 1h"
	}
	return &Service{
		cfg:  cfg,
		log:  log,
		orch: orch,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled || s.c != nil {
		return nil
	}
	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			s.log.Warn("invalid sweep timezone, using local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}

	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := c.AddFunc(s.cfg.Spec, func() {
		if err := s.orch.ResyncAll(ctx); err != nil {
			s.log.Error("reconcile sweep failed", logx.Err(err))
		}
	}); err != nil {
		return err
	}
	s.c = c
	c.Start()
	s.log.Info("reconcile sweep started", logx.String("spec", s.cfg.Spec), logx.String("tz", loc.String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	c := s.c
	s.c = nil
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	s.log.Info("reconcile sweep stopped")
}
