package task

import "time"

// Reason explains an activation decision, mainly for diagnosability when a
// task is found inactive.
type Reason string

const (
	ReasonInWindow    Reason = "in_window"     // normal range hit
	ReasonEveningPart Reason = "evening_part"  // cross-day, before midnight
	ReasonMorningPart Reason = "morning_part"  // cross-day, after midnight
	ReasonAllDay      Reason = "all_day"

	ReasonDisabled      Reason = "disabled"
	ReasonNotRepeatDay  Reason = "not_repeat_day"
	ReasonOutsideWindow Reason = "outside_window"
	ReasonNoLiveState   Reason = "no_live_state" // one-shot cross-day morning part without EXECUTING/PAUSED
	ReasonBadConfig     Reason = "bad_config"
)

// ActivationCheck is the transient result of "should this task be active
// right now". EffectiveEnd is only meaningful when Active is true; Reason is
// always set.
type ActivationCheck struct {
	Active       bool
	Reason       Reason
	EffectiveEnd time.Time
}

func active(reason Reason, end time.Time) ActivationCheck {
	return ActivationCheck{Active: true, Reason: reason, EffectiveEnd: end}
}

func inactive(reason Reason) ActivationCheck {
	return ActivationCheck{Reason: reason}
}
