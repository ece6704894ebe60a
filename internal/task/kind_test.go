package task

import (
	"testing"
	"time"
)

func maskOf(days ...time.Weekday) DayMask {
	var m DayMask
	for _, d := range days {
		m |= bit(d)
	}
	return m
}

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		task Task
		want Kind
	}{
		{"one-shot same-day", Task{StartMinute: 540, EndMinute: 720}, KindOneTimeNormal},
		{"one-shot cross-day", Task{StartMinute: 1320, EndMinute: 120}, KindOneTimeCrossDay},
		{"one-shot all-day", Task{AllDay: true}, KindOneTimeAllDay},
		{"all-day wins over cross-day times", Task{AllDay: true, StartMinute: 1320, EndMinute: 120}, KindOneTimeAllDay},
		{"repeat same-day", Task{StartMinute: 540, EndMinute: 720, RepeatDays: maskOf(time.Monday)}, KindRepeatNormal},
		{"repeat cross-day", Task{StartMinute: 1320, EndMinute: 120, RepeatDays: maskOf(time.Friday, time.Saturday)}, KindRepeatCrossDay},
		{"repeat all-day", Task{AllDay: true, RepeatDays: maskOf(time.Sunday)}, KindRepeatAllDay},
		{"everyday same-day", Task{StartMinute: 540, EndMinute: 720, RepeatDays: EveryDay}, KindEverydayNormal},
		{"everyday cross-day", Task{StartMinute: 1320, EndMinute: 120, RepeatDays: EveryDay}, KindEverydayCrossDay},
		{"everyday all-day is repeat all-day", Task{AllDay: true, RepeatDays: EveryDay}, KindRepeatAllDay},
		{"equal start and end is not cross-day", Task{StartMinute: 600, EndMinute: 600, RepeatDays: maskOf(time.Monday)}, KindRepeatNormal},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.task); got != tt.want {
				t.Fatalf("Classify() = %v, want %v", got, tt.want)
			}
			// Classification is stable: same attributes, same kind.
			if again := Classify(tt.task); again != Classify(tt.task) {
				t.Fatalf("Classify() not deterministic: %v vs %v", again, Classify(tt.task))
			}
		})
	}
}

func TestDayMask(t *testing.T) {
	t.Parallel()
	m := maskOf(time.Monday, time.Sunday)
	if !m.Contains(time.Monday) || !m.Contains(time.Sunday) {
		t.Fatal("mask should contain Monday and Sunday")
	}
	if m.Contains(time.Wednesday) {
		t.Fatal("mask should not contain Wednesday")
	}
	if !DayMask(0).IsOneShot() {
		t.Fatal("zero mask is one-shot")
	}
	if EveryDay.IsOneShot() {
		t.Fatal("full mask is not one-shot")
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if !EveryDay.Contains(wd) {
			t.Fatalf("EveryDay missing %v", wd)
		}
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{" 7:30 ", 450, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q) error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
