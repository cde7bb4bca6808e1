package ratelimit

import "errors"

var (
	// ErrInvalidQuota is returned when a rule is built with a max call
	// count that is not a positive integer.
	ErrInvalidQuota = errors.New("ratelimit: max calls must be a positive integer")

	// ErrInvalidWindow is returned when a rule window is not positive.
	ErrInvalidWindow = errors.New("ratelimit: window must be positive")

	// ErrNoRules is returned when a delay is requested from a RuleSet
	// without any rules.
	ErrNoRules = errors.New("ratelimit: no rules configured")

	// ErrUnknownPeriod is returned for a period name outside the Periods table.
	ErrUnknownPeriod = errors.New("ratelimit: unknown period")
)
