package ratelimit

import (
	"context"
	"time"
)

// Limit is one windowed quota of a Policy.
type Limit struct {
	WindowMillis int64
	MaxCalls     int
}

// Policy describes the rules a keyed limiter applies to each key.
type Policy struct {
	Limits []Limit
}

// Build returns a fresh RuleSet holding the policy's limits.
func (p Policy) Build(opts Options) (*RuleSet, error) {
	rs, err := New(opts)
	if err != nil {
		return nil, err
	}
	for _, l := range p.Limits {
		rs.Within(l.WindowMillis, l.MaxCalls)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

type Decision struct {
	Allowed bool
	Delay   time.Duration // wait before the call may run
	RetryAt time.Time     // now + Delay, also set when not allowed
}

type Limiter interface {
	// Reserve commits a call for key when it can run within maxWait.
	Reserve(ctx context.Context, key string, p Policy, now time.Time, maxWait time.Duration) (Decision, error)
	Close() error
}
