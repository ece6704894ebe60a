package task

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is a task's temporal classification. It is derived from the raw
// attributes on every decision and never stored on the record.
type Kind int

const (
	KindOneTimeNormal Kind = iota
	KindOneTimeCrossDay
	KindOneTimeAllDay
	KindRepeatNormal
	KindRepeatCrossDay
	KindRepeatAllDay
	KindEverydayNormal
	KindEverydayCrossDay
)

var kindNames = map[Kind]string{
	KindOneTimeNormal:    "one_time_normal",
	KindOneTimeCrossDay:  "one_time_cross_day",
	KindOneTimeAllDay:    "one_time_all_day",
	KindRepeatNormal:     "repeat_normal",
	KindRepeatCrossDay:   "repeat_cross_day",
	KindRepeatAllDay:     "repeat_all_day",
	KindEverydayNormal:   "everyday_normal",
	KindEverydayCrossDay: "everyday_cross_day",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) IsOneShot() bool {
	return k == KindOneTimeNormal || k == KindOneTimeCrossDay || k == KindOneTimeAllDay
}

func (k Kind) IsAllDay() bool {
	return k == KindOneTimeAllDay || k == KindRepeatAllDay
}

func (k Kind) IsCrossDay() bool {
	return k == KindOneTimeCrossDay || k == KindRepeatCrossDay || k == KindEverydayCrossDay
}

// Classify derives the temporal kind. Pure and total: it never fails.
//
// Decision order matters: the all-day flag wins over everything, then
// one-shot vs repeat, then the every-day mask, then cross-day.
func Classify(t Task) Kind {
	oneShot := t.RepeatDays.IsOneShot()
	if t.AllDay {
		if oneShot {
			return KindOneTimeAllDay
		}
		return KindRepeatAllDay
	}
	cross := t.CrossesMidnight()
	if oneShot {
		if cross {
			return KindOneTimeCrossDay
		}
		return KindOneTimeNormal
	}
	if t.RepeatDays == EveryDay {
		if cross {
			return KindEverydayCrossDay
		}
		return KindEverydayNormal
	}
	if cross {
		return KindRepeatCrossDay
	}
	return KindRepeatNormal
}

// ParseClock parses an "HH:mm" string into a minute of day (0..1439).
// Used where windows arrive as clock strings (config, import).
func ParseClock(raw string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hh*60 + mm, nil
}
