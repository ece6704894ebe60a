package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"

	"playsched/internal/alarm"
	"playsched/internal/config"
	"playsched/internal/playback"
	"playsched/internal/sched"
	"playsched/internal/storage"
	"playsched/internal/sweep"
	"playsched/internal/task"
	logx "playsched/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./playsched.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logsvc, log := logx.New(cfg.Logx())
	defer logsvc.Close()
	mgr.SetLogger(log)

	storeCfg, err := cfg.Store()
	if err != nil {
		return err
	}
	store, err := storage.Open(storeCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	schedCfg, err := cfg.Sched()
	if err != nil {
		return err
	}

	if err := seedTasks(ctx, cfg, store, log); err != nil {
		return err
	}

	clock := task.SystemClock{}
	player := playback.New(cfg.Player(), log.With(logx.String("comp", "playback")))
	alarms := alarm.New(clock, log.With(logx.String("comp", "alarm")))

	orch := sched.New(schedCfg, store, player, alarms, clock, log.With(logx.String("comp", "sched")))
	alarms.SetHandler(func(taskID int64, purpose sched.AlarmPurpose) {
		if err := orch.OnAlarmFired(ctx, taskID, purpose); err != nil {
			log.Error("alarm dispatch failed",
				logx.Int64("task", taskID), logx.String("purpose", purpose.String()), logx.Err(err))
		}
	})

	// Process start is a boot from the scheduler's point of view.
	if err := orch.OnDeviceBoot(ctx); err != nil {
		return fmt.Errorf("boot sweep: %w", err)
	}

	sweeper := sweep.New(cfg.Sweeper(), orch, log.With(logx.String("comp", "sweep")))
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("starting sweep: %w", err)
	}

	// Live-reload logging config; scheduler knobs require a restart.
	sub := mgr.Subscribe(1)
	go func() {
		for next := range sub {
			if next == nil {
				continue
			}
			logsvc.Apply(next.Logx())
		}
	}()
	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyReady)
	go watchdog(ctx)
	log.Info("playschedd started", logx.Int("capacity", schedCfg.Capacity))

	<-ctx.Done()

	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	sweeper.Stop(stopCtx)
	alarms.Stop()
	player.StopAll()
	mgr.Unsubscribe(sub)
	log.Info("playschedd stopped")
	return nil
}

// seedTasks inserts task definitions from the config that the store does not
// know yet. Existing IDs are left alone: the scheduler owns their live state.
func seedTasks(ctx context.Context, cfg *config.Config, store *storage.SQLite, log logx.Logger) error {
	seeds, err := cfg.SeedTasks()
	if err != nil {
		return fmt.Errorf("reading task seeds: %w", err)
	}
	inserted := 0
	for _, t := range seeds {
		if _, err := store.Task(ctx, t.ID); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("checking task %d: %w", t.ID, err)
		}
		if err := store.UpsertTask(ctx, t, time.Now()); err != nil {
			return fmt.Errorf("seeding task %d: %w", t.ID, err)
		}
		inserted++
	}
	if inserted > 0 {
		log.Info("seeded tasks from config", logx.Int("count", inserted))
	}
	return nil
}

// watchdog pings systemd at half the configured watchdog interval, if any.
func watchdog(ctx context.Context) {
	interval, err := sdaemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyWatchdog)
		}
	}
}
