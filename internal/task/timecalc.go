package task

import (
	"time"

	logx "playsched/pkg/logx"
)

// midnightGrace pushes all-day effective ends past exact midnight so the END
// wake never races the day rollover.
const midnightGrace = 5 * time.Second

// Calculator answers "is this task active right now" and "when is the next
// boundary". All methods are pure with respect to everything except the
// injected clock.
type Calculator struct {
	clock Clock
	log   logx.Logger
}

func NewCalculator(clock Clock, log logx.Logger) *Calculator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Calculator{clock: clock, log: log}
}

// ShouldBeActiveNow evaluates the task's window against the current moment.
//
// Cross-day windows are split at midnight: the evening part (current minute
// ≥ start) belongs to today's mask bit, the morning part (current minute <
// end) to yesterday's. A one-shot cross-day task has no mask to consult for
// its morning part, so it only resumes while persisted state says an
// execution is live; otherwise it stays inactive rather than guess.
func (c *Calculator) ShouldBeActiveNow(t Task) ActivationCheck {
	if !t.Enabled {
		return inactive(ReasonDisabled)
	}
	now := c.clock.Now()
	today := c.clock.Today()
	kind := Classify(t)

	switch {
	case kind.IsAllDay():
		if !t.RepeatDays.IsOneShot() && !t.RepeatDays.Contains(today) {
			return inactive(ReasonNotRepeatDay)
		}
		return active(ReasonAllDay, nextMidnight(now).Add(midnightGrace))

	case kind.IsCrossDay():
		cur := minuteOf(now)
		switch {
		case cur >= t.StartMinute:
			// Evening part: today's bit decides; the end rolls to tomorrow.
			if kind != KindOneTimeCrossDay && !t.RepeatDays.Contains(today) {
				return inactive(ReasonNotRepeatDay)
			}
			return active(ReasonEveningPart, atMinute(now.AddDate(0, 0, 1), t.EndMinute))
		case cur < t.EndMinute:
			// Morning part: the window that started yesterday evening.
			if kind == KindOneTimeCrossDay {
				if t.State.IsLive() {
					return active(ReasonMorningPart, atMinute(now, t.EndMinute))
				}
				return inactive(ReasonNoLiveState)
			}
			if !t.RepeatDays.Contains(prevWeekday(today)) {
				return inactive(ReasonNotRepeatDay)
			}
			return active(ReasonMorningPart, atMinute(now, t.EndMinute))
		default:
			return inactive(ReasonOutsideWindow)
		}

	default:
		if !t.RepeatDays.IsOneShot() && !t.RepeatDays.Contains(today) {
			return inactive(ReasonNotRepeatDay)
		}
		cur := minuteOf(now)
		if cur >= t.StartMinute && cur < t.EndMinute {
			return active(ReasonInWindow, atMinute(now, t.EndMinute))
		}
		return inactive(ReasonOutsideWindow)
	}
}

// NextStartTime returns the next moment the task's window opens.
//
// One-shot tasks have a single start: today's start time if still in the
// future, otherwise none, even while the task is executing. Repeating tasks
// scan forward at most 7 calendar days; an empty scan means the mask is
// unsatisfiable, which is logged and treated as "no schedule".
func (c *Calculator) NextStartTime(t Task) (time.Time, bool) {
	now := c.clock.Now()
	kind := Classify(t)

	if kind.IsOneShot() {
		if kind.IsAllDay() {
			// A one-shot all-day window is active from the moment it is
			// enabled; there is no future boundary to wake for.
			return time.Time{}, false
		}
		start := atMinute(now, t.StartMinute)
		if start.After(now) {
			return start, true
		}
		return time.Time{}, false
	}

	if kind.IsAllDay() {
		for i := 1; i <= 7; i++ {
			d := now.AddDate(0, 0, i)
			if t.RepeatDays.Contains(d.Weekday()) {
				return midnightOf(d), true
			}
		}
		c.log.Warn("no repeat day matched within 7 days",
			logx.Int64("task", t.ID), logx.Int("mask", int(t.RepeatDays)))
		return time.Time{}, false
	}

	base := now
	if minuteOf(now) >= t.StartMinute {
		base = now.AddDate(0, 0, 1)
	}
	for i := 0; i < 7; i++ {
		d := base.AddDate(0, 0, i)
		if t.RepeatDays.Contains(d.Weekday()) {
			return atMinute(d, t.StartMinute), true
		}
	}
	c.log.Warn("no repeat day matched within 7 days",
		logx.Int64("task", t.ID), logx.Int("mask", int(t.RepeatDays)))
	return time.Time{}, false
}

// EndTimeForStart computes the window end matching a given start: same day at
// the end minute, the next day for cross-day windows, the next midnight (plus
// grace) for all-day windows.
func (c *Calculator) EndTimeForStart(t Task, start time.Time) time.Time {
	kind := Classify(t)
	switch {
	case kind.IsAllDay():
		return nextMidnight(start).Add(midnightGrace)
	case kind.IsCrossDay():
		return atMinute(start.AddDate(0, 0, 1), t.EndMinute)
	default:
		return atMinute(start, t.EndMinute)
	}
}

func minuteOf(at time.Time) int { return at.Hour()*60 + at.Minute() }

func atMinute(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, day.Location())
}

func midnightOf(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}

func nextMidnight(from time.Time) time.Time {
	return midnightOf(from.AddDate(0, 0, 1))
}

func prevWeekday(wd time.Weekday) time.Weekday {
	return time.Weekday((int(wd) + 6) % 7)
}
