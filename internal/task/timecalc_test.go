package task

import (
	"testing"
	"time"

	logx "playsched/pkg/logx"
)

// fakeClock pins the calculator to a fixed moment.
// 2024-05-15 is a Wednesday.
type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time      { return c.now }
func (c fakeClock) Today() time.Weekday { return c.now.Weekday() }

func mayAt(day, hour, min int) time.Time {
	return time.Date(2024, 5, day, hour, min, 0, 0, time.UTC)
}

func calcAt(at time.Time) *Calculator {
	return NewCalculator(fakeClock{now: at}, logx.Nop())
}

func TestShouldBeActiveNowNormal(t *testing.T) {
	t.Parallel()
	// start=09:00 end=12:00, repeats Wednesdays only.
	base := Task{ID: 1, Enabled: true, StartMinute: 540, EndMinute: 720, RepeatDays: maskOf(time.Wednesday)}

	tests := []struct {
		name    string
		now     time.Time
		active  bool
		reason  Reason
		wantEnd time.Time
	}{
		{"mid window", mayAt(15, 10, 0), true, ReasonInWindow, mayAt(15, 12, 0)},
		{"window start inclusive", mayAt(15, 9, 0), true, ReasonInWindow, mayAt(15, 12, 0)},
		{"just before start", mayAt(15, 8, 59), false, ReasonOutsideWindow, time.Time{}},
		{"window end exclusive", mayAt(15, 12, 0), false, ReasonOutsideWindow, time.Time{}},
		{"wrong weekday", mayAt(16, 10, 0), false, ReasonNotRepeatDay, time.Time{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calcAt(tt.now).ShouldBeActiveNow(base)
			if got.Active != tt.active {
				t.Fatalf("Active = %v, want %v (reason %s)", got.Active, tt.active, got.Reason)
			}
			if got.Reason != tt.reason {
				t.Fatalf("Reason = %s, want %s", got.Reason, tt.reason)
			}
			if tt.active && !got.EffectiveEnd.Equal(tt.wantEnd) {
				t.Fatalf("EffectiveEnd = %v, want %v", got.EffectiveEnd, tt.wantEnd)
			}
		})
	}
}

func TestShouldBeActiveNowDisabled(t *testing.T) {
	t.Parallel()
	tk := Task{ID: 1, Enabled: false, AllDay: true, RepeatDays: EveryDay}
	got := calcAt(mayAt(15, 10, 0)).ShouldBeActiveNow(tk)
	if got.Active || got.Reason != ReasonDisabled {
		t.Fatalf("disabled task must be inactive with ReasonDisabled, got %+v", got)
	}
}

func TestShouldBeActiveNowCrossDay(t *testing.T) {
	t.Parallel()
	// start=22:00 end=02:00.
	window := Task{ID: 2, Enabled: true, StartMinute: 1320, EndMinute: 120}

	t.Run("evening part every day", func(t *testing.T) {
		t.Parallel()
		tk := window
		tk.RepeatDays = EveryDay
		got := calcAt(mayAt(15, 23, 0)).ShouldBeActiveNow(tk)
		if !got.Active || got.Reason != ReasonEveningPart {
			t.Fatalf("expected active evening part, got %+v", got)
		}
		if want := mayAt(16, 2, 0); !got.EffectiveEnd.Equal(want) {
			t.Fatalf("EffectiveEnd = %v, want %v", got.EffectiveEnd, want)
		}
	})

	t.Run("morning part needs yesterday's bit", func(t *testing.T) {
		t.Parallel()
		tk := window
		tk.RepeatDays = maskOf(time.Wednesday)
		// Thursday 01:00: the Wednesday-night window is still open.
		got := calcAt(mayAt(16, 1, 0)).ShouldBeActiveNow(tk)
		if !got.Active || got.Reason != ReasonMorningPart {
			t.Fatalf("expected active morning part, got %+v", got)
		}
		if want := mayAt(16, 2, 0); !got.EffectiveEnd.Equal(want) {
			t.Fatalf("EffectiveEnd = %v, want %v", got.EffectiveEnd, want)
		}
	})

	t.Run("morning part rejects today's bit alone", func(t *testing.T) {
		t.Parallel()
		tk := window
		tk.RepeatDays = maskOf(time.Thursday)
		got := calcAt(mayAt(16, 1, 0)).ShouldBeActiveNow(tk)
		if got.Active || got.Reason != ReasonNotRepeatDay {
			t.Fatalf("expected inactive (yesterday did not match), got %+v", got)
		}
	})

	t.Run("evening part outside mask", func(t *testing.T) {
		t.Parallel()
		tk := window
		tk.RepeatDays = maskOf(time.Friday)
		got := calcAt(mayAt(15, 23, 0)).ShouldBeActiveNow(tk)
		if got.Active || got.Reason != ReasonNotRepeatDay {
			t.Fatalf("expected inactive evening, got %+v", got)
		}
	})

	t.Run("gap between parts", func(t *testing.T) {
		t.Parallel()
		tk := window
		tk.RepeatDays = EveryDay
		got := calcAt(mayAt(15, 12, 0)).ShouldBeActiveNow(tk)
		if got.Active || got.Reason != ReasonOutsideWindow {
			t.Fatalf("expected inactive midday, got %+v", got)
		}
	})
}

func TestShouldBeActiveNowOneShotCrossDayMorning(t *testing.T) {
	t.Parallel()
	base := Task{ID: 3, Enabled: true, StartMinute: 1320, EndMinute: 120} // one-shot 22:00–02:00

	tests := []struct {
		name   string
		state  ExecutionState
		active bool
		reason Reason
	}{
		{"resumes while executing", StateExecuting, true, ReasonMorningPart},
		{"resumes while paused", StatePaused, true, ReasonMorningPart},
		{"never resumes from idle", StateIdle, false, ReasonNoLiveState},
		{"never resumes from scheduled", StateScheduled, false, ReasonNoLiveState},
		{"never resumes from waiting slot", StateWaitingSlot, false, ReasonNoLiveState},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tk := base
			tk.State = tt.state
			got := calcAt(mayAt(16, 1, 0)).ShouldBeActiveNow(tk)
			if got.Active != tt.active || got.Reason != tt.reason {
				t.Fatalf("got %+v, want active=%v reason=%s", got, tt.active, tt.reason)
			}
		})
	}

	// The evening part needs no live state: the one shot is simply starting.
	got := calcAt(mayAt(15, 23, 0)).ShouldBeActiveNow(base)
	if !got.Active || got.Reason != ReasonEveningPart {
		t.Fatalf("evening part should be active regardless of state, got %+v", got)
	}
}

func TestShouldBeActiveNowAllDay(t *testing.T) {
	t.Parallel()
	t.Run("matching day ends next midnight plus grace", func(t *testing.T) {
		t.Parallel()
		tk := Task{ID: 4, Enabled: true, AllDay: true, RepeatDays: maskOf(time.Wednesday)}
		got := calcAt(mayAt(15, 18, 30)).ShouldBeActiveNow(tk)
		if !got.Active || got.Reason != ReasonAllDay {
			t.Fatalf("expected active all day, got %+v", got)
		}
		want := mayAt(16, 0, 0).Add(5 * time.Second)
		if !got.EffectiveEnd.Equal(want) {
			t.Fatalf("EffectiveEnd = %v, want %v", got.EffectiveEnd, want)
		}
	})

	t.Run("non matching day", func(t *testing.T) {
		t.Parallel()
		tk := Task{ID: 4, Enabled: true, AllDay: true, RepeatDays: maskOf(time.Sunday)}
		got := calcAt(mayAt(15, 18, 30)).ShouldBeActiveNow(tk)
		if got.Active || got.Reason != ReasonNotRepeatDay {
			t.Fatalf("expected inactive, got %+v", got)
		}
	})

	t.Run("one-shot all day matches any day", func(t *testing.T) {
		t.Parallel()
		tk := Task{ID: 4, Enabled: true, AllDay: true}
		got := calcAt(mayAt(15, 3, 0)).ShouldBeActiveNow(tk)
		if !got.Active {
			t.Fatalf("expected active, got %+v", got)
		}
	})
}

func TestNextStartTimeOneShot(t *testing.T) {
	t.Parallel()
	tk := Task{ID: 5, Enabled: true, StartMinute: 540, EndMinute: 720} // 09:00–12:00

	t.Run("future start today", func(t *testing.T) {
		t.Parallel()
		got, ok := calcAt(mayAt(15, 8, 0)).NextStartTime(tk)
		if !ok || !got.Equal(mayAt(15, 9, 0)) {
			t.Fatalf("got %v ok=%v, want %v", got, ok, mayAt(15, 9, 0))
		}
	})

	t.Run("past start means none", func(t *testing.T) {
		t.Parallel()
		if _, ok := calcAt(mayAt(15, 10, 0)).NextStartTime(tk); ok {
			t.Fatal("one-shot with a past start must have no next start")
		}
	})

	t.Run("past start means none even while executing", func(t *testing.T) {
		t.Parallel()
		running := tk
		running.State = StateExecuting
		if _, ok := calcAt(mayAt(15, 10, 0)).NextStartTime(running); ok {
			t.Fatal("execution state must not influence the next start")
		}
	})
}

func TestNextStartTimeRepeating(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		task Task
		now  time.Time
		want time.Time
		none bool
	}{
		{
			name: "later today",
			task: Task{Enabled: true, StartMinute: 540, EndMinute: 720, RepeatDays: EveryDay},
			now:  mayAt(15, 8, 0),
			want: mayAt(15, 9, 0),
		},
		{
			name: "today's start passed, tomorrow",
			task: Task{Enabled: true, StartMinute: 540, EndMinute: 720, RepeatDays: EveryDay},
			now:  mayAt(15, 9, 0),
			want: mayAt(16, 9, 0),
		},
		{
			name: "scan to next monday",
			task: Task{Enabled: true, StartMinute: 540, EndMinute: 720, RepeatDays: maskOf(time.Monday)},
			now:  mayAt(15, 10, 0),
			want: mayAt(20, 9, 0),
		},
		{
			name: "all-day next matching midnight",
			task: Task{Enabled: true, AllDay: true, RepeatDays: maskOf(time.Thursday)},
			now:  mayAt(15, 10, 0),
			want: mayAt(16, 0, 0),
		},
		{
			name: "one-shot all-day has no future boundary",
			task: Task{Enabled: true, AllDay: true},
			now:  mayAt(15, 10, 0),
			none: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := calcAt(tt.now).NextStartTime(tt.task)
			if tt.none {
				if ok {
					t.Fatalf("expected no next start, got %v", got)
				}
				return
			}
			if !ok || !got.Equal(tt.want) {
				t.Fatalf("got %v ok=%v, want %v", got, ok, tt.want)
			}
		})
	}
}

func TestEndTimeForStart(t *testing.T) {
	t.Parallel()
	c := calcAt(mayAt(15, 8, 0))

	normal := Task{StartMinute: 540, EndMinute: 720, RepeatDays: EveryDay}
	if got, want := c.EndTimeForStart(normal, mayAt(15, 9, 0)), mayAt(15, 12, 0); !got.Equal(want) {
		t.Fatalf("normal end = %v, want %v", got, want)
	}

	cross := Task{StartMinute: 1320, EndMinute: 120, RepeatDays: EveryDay}
	if got, want := c.EndTimeForStart(cross, mayAt(15, 22, 0)), mayAt(16, 2, 0); !got.Equal(want) {
		t.Fatalf("cross-day end = %v, want %v", got, want)
	}

	allDay := Task{AllDay: true, RepeatDays: EveryDay}
	if got, want := c.EndTimeForStart(allDay, mayAt(15, 0, 0)), mayAt(16, 0, 0).Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("all-day end = %v, want %v", got, want)
	}
}
