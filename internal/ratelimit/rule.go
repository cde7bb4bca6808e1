package ratelimit

import (
	"fmt"
	"math"
)

// Result is what a single rule decides for one evaluation.
type Result struct {
	// Delay is how many milliseconds from now the next call has to wait.
	Delay int64
	// SafeIndex is the first history index this rule still needs.
	// Everything below it may be discarded as far as the rule is concerned.
	SafeIndex int
}

// Rule evaluates a history at a point in time. Rules must not modify h and
// must return the same Result for the same inputs.
type Rule interface {
	Evaluate(now int64, h *History) Result
}

// RuleFunc adapts a plain function to Rule.
type RuleFunc func(now int64, h *History) Result

func (f RuleFunc) Evaluate(now int64, h *History) Result { return f(now, h) }

// Window allows at most MaxCalls calls within any trailing span of Millis.
type Window struct {
	Millis   int64
	MaxCalls int
}

// NewWindow validates and returns a sliding window rule.
func NewWindow(millis int64, maxCalls int) (*Window, error) {
	if millis <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, millis)
	}
	if maxCalls < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuota, maxCalls)
	}
	return &Window{Millis: millis, MaxCalls: maxCalls}, nil
}

func (w *Window) Evaluate(now int64, h *History) Result {
	idx := h.InsertionRank(now - w.Millis)
	inWindow := h.Len() - idx
	if inWindow < w.MaxCalls {
		return Result{SafeIndex: idx}
	}
	// wait for the entry whose expiry leaves MaxCalls-1 calls in the window
	expiring := h.At(idx + inWindow - w.MaxCalls)
	return Result{
		Delay:     expiring + w.Millis - now,
		SafeIndex: idx,
	}
}

func (w *Window) String() string {
	return fmt.Sprintf("%d/%dms", w.MaxCalls, w.Millis)
}

// Quota converts an externally supplied number, e.g. from YAML or a flag,
// into a max call count.
func Quota(v float64) (int, error) {
	if v < 1 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidQuota, v)
	}
	return int(v), nil
}

// Period is a named fixed window.
type Period struct {
	Name   string
	Millis int64
}

// Periods lists the named windows in the order they are applied when
// building a RuleSet from Options.
var Periods = []Period{
	{Name: "secondly", Millis: 1000},
	{Name: "minutely", Millis: 60000},
	{Name: "quarterly", Millis: 900000},
	{Name: "hourly", Millis: 3600000},
	{Name: "daily", Millis: 86400000},
	{Name: "weekly", Millis: 604800000},
}

// PeriodByName looks a period up in Periods.
func PeriodByName(name string) (Period, error) {
	for _, p := range Periods {
		if p.Name == name {
			return p, nil
		}
	}
	return Period{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, name)
}
