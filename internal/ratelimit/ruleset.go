package ratelimit

import (
	"fmt"
	"sync"
)

// Options configures a new RuleSet.
type Options struct {
	// History seeds the call log. It must be sorted ascending and is copied.
	History []int64
	// Quotas maps period names from Periods to max call counts. They are
	// registered in the order of the Periods table.
	Quotas map[string]int
	// OnCall runs when Reserve commits a call, with the call's delay.
	OnCall func(delay int64)
	// OnClear runs when evaluation discards history, with the oldest
	// discarded timestamp.
	OnClear func(oldest int64)
}

// RuleSet combines rules over one shared History. A call may happen only
// once every rule agrees, so the combined delay is the largest rule delay
// and history is trimmed only below the smallest safe index.
//
// RuleSet is safe for concurrent use. Hooks run with the internal lock held
// and must not call back into the same RuleSet. The zero value has no rules
// and an empty history.
type RuleSet struct {
	mu      sync.Mutex
	history *History
	rules   []Rule
	err     error

	onCall  func(delay int64)
	onClear func(oldest int64)
}

// Reservation is the outcome of Reserve.
type Reservation struct {
	// OK is false when the caller's predicate vetoed the call.
	OK bool
	// Delay in milliseconds from now.
	Delay int64
	// At is the timestamp recorded for the call, now + Delay.
	At int64
}

// New builds a RuleSet from opts.
func New(opts Options) (*RuleSet, error) {
	rs := &RuleSet{
		history: NewHistory(opts.History),
		onCall:  opts.OnCall,
		onClear: opts.OnClear,
	}

	seen := 0
	for _, p := range Periods {
		n, ok := opts.Quotas[p.Name]
		if !ok {
			continue
		}
		seen++
		rs.Within(p.Millis, n)
	}
	if seen != len(opts.Quotas) {
		for name := range opts.Quotas {
			if _, err := PeriodByName(name); err != nil {
				return nil, err
			}
		}
	}
	if rs.err != nil {
		return nil, rs.err
	}
	return rs, nil
}

// Register adds a rule and returns rs for chaining.
func (rs *RuleSet) Register(r Rule) *RuleSet {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rules = append(rs.rules, r)
	return rs
}

// Within registers a sliding window of millis allowing maxCalls calls.
// An invalid window is not registered; the error is kept and reported by
// Err and by every later evaluation.
func (rs *RuleSet) Within(millis int64, maxCalls int) *RuleSet {
	w, err := NewWindow(millis, maxCalls)
	if err != nil {
		rs.mu.Lock()
		if rs.err == nil {
			rs.err = fmt.Errorf("within(%d, %d): %w", millis, maxCalls, err)
		}
		rs.mu.Unlock()
		return rs
	}
	return rs.Register(w)
}

func (rs *RuleSet) Secondly(n int) *RuleSet  { return rs.Within(Periods[0].Millis, n) }
func (rs *RuleSet) Minutely(n int) *RuleSet  { return rs.Within(Periods[1].Millis, n) }
func (rs *RuleSet) Quarterly(n int) *RuleSet { return rs.Within(Periods[2].Millis, n) }
func (rs *RuleSet) Hourly(n int) *RuleSet    { return rs.Within(Periods[3].Millis, n) }
func (rs *RuleSet) Daily(n int) *RuleSet     { return rs.Within(Periods[4].Millis, n) }
func (rs *RuleSet) Weekly(n int) *RuleSet    { return rs.Within(Periods[5].Millis, n) }

// Err returns the first registration error, if any.
func (rs *RuleSet) Err() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.err
}

// Rules returns the registered rules in insertion order.
func (rs *RuleSet) Rules() []Rule {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// History returns a copy of the current call log.
func (rs *RuleSet) History() []int64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.log().Snapshot()
}

// NextDelay returns how many milliseconds after now the next call may
// happen. Entries no rule needs anymore are dropped from history.
func (rs *RuleSet) NextDelay(now int64) (int64, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.evaluate(now)
}

// Record appends a call timestamp. ts must not precede the newest entry.
func (rs *RuleSet) Record(ts int64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.log().Append(ts)
}

// Reserve evaluates the delay, asks cond whether to proceed and, unless
// vetoed, records now+delay, all under one lock. A nil cond always
// proceeds. History trimmed during evaluation stays trimmed on veto.
func (rs *RuleSet) Reserve(now int64, cond func(delay int64) bool) (Reservation, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	delay, err := rs.evaluate(now)
	if err != nil {
		return Reservation{}, err
	}
	// callers read their clock before taking the lock, so a later
	// reservation may carry an earlier now; never record below the newest entry
	if last, ok := rs.history.Last(); ok && now+delay < last {
		delay = last - now
	}
	r := Reservation{Delay: delay, At: now + delay}
	if cond != nil && !cond(delay) {
		return r, nil
	}
	rs.history.Append(r.At)
	r.OK = true
	if rs.onCall != nil {
		rs.onCall(delay)
	}
	return r, nil
}

// log must be called with rs.mu held.
func (rs *RuleSet) log() *History {
	if rs.history == nil {
		rs.history = NewHistory(nil)
	}
	return rs.history
}

// evaluate must be called with rs.mu held.
func (rs *RuleSet) evaluate(now int64) (int64, error) {
	if rs.err != nil {
		return 0, rs.err
	}
	if len(rs.rules) == 0 {
		return 0, ErrNoRules
	}

	var delay int64
	safe := 0
	for i, r := range rs.rules {
		res := r.Evaluate(now, rs.log())
		delay = max(delay, res.Delay)
		if i == 0 || res.SafeIndex < safe {
			safe = res.SafeIndex
		}
	}

	if oldest, ok := rs.history.TruncatePrefix(safe); ok && rs.onClear != nil {
		rs.onClear(oldest)
	}
	return delay, nil
}
