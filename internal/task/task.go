// Package task holds the play-window task record and the pure decision
// helpers derived from it: temporal kind classification, the execution
// state machine, and activation-window time math.
package task

import "time"

// DayMask is a 7-bit set of weekdays: Monday=bit0 ... Sunday=bit6.
//
// A zero mask means the task is one-shot. EveryDay means the window applies
// every day of the week.
type DayMask uint8

const EveryDay DayMask = 0x7F

// bit maps time.Weekday (Sunday=0) onto the Monday-first mask layout.
func bit(wd time.Weekday) DayMask {
	return DayMask(1) << ((int(wd) + 6) % 7)
}

func (m DayMask) Contains(wd time.Weekday) bool { return m&bit(wd) != 0 }

// With returns the mask with the given weekday set.
func (m DayMask) With(wd time.Weekday) DayMask { return m | bit(wd) }

// IsOneShot reports whether the mask marks a non-repeating task.
func (m DayMask) IsOneShot() bool { return m == 0 }

// Task is the persisted play-window record.
//
// StartMinute/EndMinute are minutes of day (0..1439). When AllDay is set they
// are ignored. CurrentStart/CurrentEnd hold the execution window of the
// in-flight (or pending) cycle; zero means unset.
//
// The scheduler mutates only ExecutionState and the execution window;
// creation, editing and deletion belong to the surrounding app.
type Task struct {
	ID          int64
	Enabled     bool
	StartMinute int
	EndMinute   int
	RepeatDays  DayMask
	AllDay      bool

	State        ExecutionState
	CurrentStart time.Time
	CurrentEnd   time.Time
}

// CrossesMidnight reports whether the configured window spans midnight
// (end numerically earlier than start). All-day tasks never cross.
func (t Task) CrossesMidnight() bool {
	if t.AllDay {
		return false
	}
	return t.EndMinute < t.StartMinute
}
