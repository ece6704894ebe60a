package task

import "time"

// Clock abstracts "now" so window math is testable. Today() is derived from
// Now() by real implementations; fakes may pin both independently.
type Clock interface {
	Now() time.Time
	Today() time.Weekday
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time      { return time.Now() }
func (SystemClock) Today() time.Weekday { return time.Now().Weekday() }
