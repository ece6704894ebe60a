package config

import (
	"fmt"
	"strings"
	"time"

	"playsched/internal/playback"
	"playsched/internal/sched"
	"playsched/internal/storage"
	"playsched/internal/sweep"
	"playsched/internal/task"
	logx "playsched/pkg/logx"
)

// Config is the daemon configuration. JSON and YAML files are both accepted;
// YAML is coerced to JSON so one strict decoder covers both.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "5m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Playback  PlaybackConfig  `json:"playback,omitempty"`
	Sweep     SweepConfig     `json:"sweep,omitempty"`
	Tasks     []TaskConfig    `json:"tasks,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// SchedulerConfig controls admission and retry behavior.
//
// Defaults (when fields are omitted/zero):
//   - capacity: 10
//   - retry_interval: "5m"
type SchedulerConfig struct {
	Capacity      int    `json:"capacity,omitempty"`
	RetryInterval string `json:"retry_interval,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// PlaybackConfig configures the external player command. An empty command
// selects the no-op player (logical playing state only).
type PlaybackConfig struct {
	Command      string   `json:"command,omitempty"`
	Args         []string `json:"args,omitempty"`
	StartsPerSec int      `json:"starts_per_sec,omitempty"`
}

type SweepConfig struct {
	Enabled  bool   `json:"enabled"`
	Spec     string `json:"spec,omitempty"`     // cron spec or @every form
	Timezone string `json:"timezone,omitempty"` // IANA TZ
}

// TaskConfig seeds a play-window definition at daemon startup. Start/End are
// "HH:mm" clock strings (ignored when all_day is set); days are weekday names
// ("mon".."sunday") or "everyday"; an empty days list makes the task one-shot.
// Seeding inserts missing IDs only, it never overwrites live scheduler state.
type TaskConfig struct {
	ID      int64    `json:"id"`
	Enabled *bool    `json:"enabled,omitempty"` // default true
	Start   string   `json:"start,omitempty"`
	End     string   `json:"end,omitempty"`
	Days    []string `json:"days,omitempty"`
	AllDay  bool     `json:"all_day,omitempty"`
}

// ---- mapping into component configs ----

func (c *Config) Logx() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig(c.Logging.File),
	}
}

func (c *Config) Sched() (sched.Config, error) {
	retry, err := durationOr("scheduler.retry_interval", c.Scheduler.RetryInterval, sched.DefaultRetryInterval)
	if err != nil {
		return sched.Config{}, err
	}
	return sched.Config{
		Capacity:      c.Scheduler.Capacity,
		RetryInterval: retry,
	}, nil
}

func (c *Config) Store() (storage.Config, error) {
	busy, err := durationOr("storage.busy_timeout", c.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Path: c.Storage.Path, BusyTimeout: busy}, nil
}

// SeedTasks maps the tasks section onto task records, fresh in IDLE.
func (c *Config) SeedTasks() ([]task.Task, error) {
	out := make([]task.Task, 0, len(c.Tasks))
	for _, tc := range c.Tasks {
		t := task.Task{ID: tc.ID, Enabled: true, AllDay: tc.AllDay, State: task.StateIdle}
		if tc.Enabled != nil {
			t.Enabled = *tc.Enabled
		}
		if !tc.AllDay {
			var err error
			if t.StartMinute, err = task.ParseClock(tc.Start); err != nil {
				return nil, fmt.Errorf("tasks[%d].start: %w", tc.ID, err)
			}
			if t.EndMinute, err = task.ParseClock(tc.End); err != nil {
				return nil, fmt.Errorf("tasks[%d].end: %w", tc.ID, err)
			}
		}
		mask, err := parseDays(tc.Days)
		if err != nil {
			return nil, fmt.Errorf("tasks[%d].days: %w", tc.ID, err)
		}
		t.RepeatDays = mask
		out = append(out, t)
	}
	return out, nil
}

var dayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

func parseDays(days []string) (task.DayMask, error) {
	var mask task.DayMask
	for _, raw := range days {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "everyday" {
			return task.EveryDay, nil
		}
		wd, ok := dayNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown day %q", raw)
		}
		mask = mask.With(wd)
	}
	return mask, nil
}

// ---- duration fields ----

// durationField parses a config duration string. Empty means unset (0);
// negative values are rejected.
func durationField(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", key, raw)
	}
	return d, nil
}

// durationOr is durationField with a fallback for unset values.
func durationOr(key, raw string, def time.Duration) (time.Duration, error) {
	d, err := durationField(key, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

func (c *Config) Player() playback.Config {
	return playback.Config{
		Command:      c.Playback.Command,
		Args:         c.Playback.Args,
		StartsPerSec: c.Playback.StartsPerSec,
	}
}

func (c *Config) Sweeper() sweep.Config {
	return sweep.Config{
		Enabled:  c.Sweep.Enabled,
		Spec:     c.Sweep.Spec,
		Timezone: c.Sweep.Timezone,
	}
}
