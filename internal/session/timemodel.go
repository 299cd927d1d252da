package session

import "time"

// The time model is stateless: remaining and elapsed time derive from the
// fixed start timestamp and the wall clock, never from a decremented
// counter. Ticking can pause for any length of time (tab suspension, worker
// restart) and the next computation is still correct.

// DefaultWarningThresholds are the remaining-time marks, in descending
// order, at which a warning fires.
var DefaultWarningThresholds = []time.Duration{
	10 * time.Minute,
	5 * time.Minute,
	1 * time.Minute,
}

// RemainingTime returns the time left before the deadline, floored at zero.
func RemainingTime(startedAt time.Time, duration time.Duration, now time.Time) time.Duration {
	left := duration - now.Sub(startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// ElapsedTime returns the time spent so far, capped at the full duration.
func ElapsedTime(startedAt time.Time, duration time.Duration, now time.Time) time.Duration {
	spent := now.Sub(startedAt)
	if spent < 0 {
		return 0
	}
	if spent > duration {
		return duration
	}
	return spent
}
