package memory

import (
	"context"
	"sync"
	"time"

	"github.com/AlexKimmel/limits/internal/ratelimit"
)

// Hooks returns the RuleSet hooks for a newly tracked key. Either may be nil.
type Hooks func(key string) (onCall, onClear func(int64))

// Limiter keeps one RuleSet per key, in process memory.
type Limiter struct {
	hooks Hooks
	sets  sync.Map // key -> *ratelimit.RuleSet
}

func New(hooks Hooks) *Limiter {
	return &Limiter{hooks: hooks}
}

func (l *Limiter) Close() error {
	l.sets.Clear()
	return nil
}

// Forget drops the history kept for key.
func (l *Limiter) Forget(key string) {
	l.sets.Delete(key)
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	n := 0
	l.sets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Reserve commits a call for key if its delay does not exceed maxWait.
// The policy is only read the first time a key is seen.
func (l *Limiter) Reserve(_ context.Context, key string, p ratelimit.Policy, now time.Time, maxWait time.Duration) (ratelimit.Decision, error) {
	rs, err := l.ruleSet(key, p)
	if err != nil {
		return ratelimit.Decision{}, err
	}

	limit := max(maxWait.Milliseconds(), 0)
	res, err := rs.Reserve(now.UnixMilli(), func(delay int64) bool {
		return delay <= limit
	})
	if err != nil {
		return ratelimit.Decision{}, err
	}

	delay := time.Duration(res.Delay) * time.Millisecond
	return ratelimit.Decision{
		Allowed: res.OK,
		Delay:   delay,
		RetryAt: now.Add(delay),
	}, nil
}

func (l *Limiter) ruleSet(key string, p ratelimit.Policy) (*ratelimit.RuleSet, error) {
	if v, ok := l.sets.Load(key); ok {
		return v.(*ratelimit.RuleSet), nil
	}

	var opts ratelimit.Options
	if l.hooks != nil {
		opts.OnCall, opts.OnClear = l.hooks(key)
	}
	rs, err := p.Build(opts)
	if err != nil {
		return nil, err
	}

	// another request may have created the set meanwhile; keep theirs
	v, _ := l.sets.LoadOrStore(key, rs)
	return v.(*ratelimit.RuleSet), nil
}
