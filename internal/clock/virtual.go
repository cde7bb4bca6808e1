package clock

import (
	"sync"
	"time"
)

// Virtual only moves when Advance or Set is called. Timers created with
// After fire during the call that moves time past their deadline.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	pending []timer
}

type timer struct {
	at time.Time
	ch chan time.Time
}

func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) After(d time.Duration) <-chan time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- v.now
		return ch
	}
	v.pending = append(v.pending, timer{at: v.now.Add(d), ch: ch})
	return ch
}

// Pending reports how many timers have not fired yet.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}

// Advance moves time forward by d. It panics on a negative d.
func (v *Virtual) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: negative advance")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = v.now.Add(d)
	v.fire()
}

// Set jumps to t. It panics if t is before the current time.
func (v *Virtual) Set(t time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t.Before(v.now) {
		panic("clock: cannot go back in time")
	}
	v.now = t
	v.fire()
}

// fire must be called with v.mu held.
func (v *Virtual) fire() {
	keep := v.pending[:0]
	for _, t := range v.pending {
		if t.at.After(v.now) {
			keep = append(keep, t)
			continue
		}
		t.ch <- v.now
	}
	clear(v.pending[len(keep):])
	v.pending = keep
}
