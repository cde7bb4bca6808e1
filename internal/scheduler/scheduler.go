// Package scheduler runs functions no earlier than a RuleSet allows.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexKimmel/limits/internal/clock"
	"github.com/AlexKimmel/limits/internal/ratelimit"
)

type Scheduler struct {
	rules *ratelimit.RuleSet
	clock clock.Clock
	log   zerolog.Logger
}

func New(rules *ratelimit.RuleSet, c clock.Clock, log zerolog.Logger) *Scheduler {
	return &Scheduler{rules: rules, clock: c, log: log}
}

// Call is a pushed function waiting for its slot.
type Call struct {
	Delay time.Duration
	At    time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	ran      atomic.Bool
}

// Push reserves a slot and runs fn once its delay has passed. cond, when
// set, sees the delay first and can veto the call by returning false; Push
// then returns a nil Call and history is left as it was.
//
// Cancelling ctx or calling Stop keeps fn from running, but the reserved
// slot stays used.
func (s *Scheduler) Push(ctx context.Context, fn func(), cond func(delay time.Duration) bool) (*Call, error) {
	now := s.clock.Now()

	var veto func(int64) bool
	if cond != nil {
		veto = func(ms int64) bool { return cond(clock.Duration(ms)) }
	}
	res, err := s.rules.Reserve(now.UnixMilli(), veto)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		s.log.Debug().Int64("delay_ms", res.Delay).Msg("call vetoed")
		return nil, nil
	}

	c := &Call{
		Delay: clock.Duration(res.Delay),
		At:    time.UnixMilli(res.At),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.log.Debug().Int64("delay_ms", res.Delay).Time("at", c.At).Msg("call scheduled")

	fire := s.clock.After(c.Delay)
	go c.wait(ctx, fire, fn)
	return c, nil
}

func (c *Call) wait(ctx context.Context, fire <-chan time.Time, fn func()) {
	defer close(c.done)
	select {
	case <-fire:
		c.ran.Store(true)
		fn()
	case <-ctx.Done():
	case <-c.stop:
	}
}

// Stop cancels the call if it has not started.
func (c *Call) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Done is closed after fn returned or the call was cancelled.
func (c *Call) Done() <-chan struct{} { return c.done }

// Ran reports whether fn was invoked.
func (c *Call) Ran() bool { return c.ran.Load() }
