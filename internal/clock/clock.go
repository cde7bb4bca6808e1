// Package clock lets schedulers run against wall time or a virtual time
// that tests move forward by hand.
package clock

import "time"

type Clock interface {
	Now() time.Time
	// After sends the current time once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time                         { return time.Now() }
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Millis returns c's current time in Unix milliseconds.
func Millis(c Clock) int64 {
	return c.Now().UnixMilli()
}

// Duration converts a millisecond delay to a time.Duration.
func Duration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
