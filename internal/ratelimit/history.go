package ratelimit

import "slices"

// History is a sorted log of call timestamps in milliseconds. It holds
// both calls that already happened and calls scheduled for the future.
//
// History is not safe for concurrent use; RuleSet serializes access.
type History struct {
	ts []int64
}

// NewHistory copies seed into a new History. seed must be sorted ascending.
func NewHistory(seed []int64) *History {
	return &History{ts: slices.Clone(seed)}
}

func (h *History) Len() int { return len(h.ts) }

// At returns the i-th oldest timestamp.
func (h *History) At(i int) int64 { return h.ts[i] }

// Last returns the newest timestamp, false when empty.
func (h *History) Last() (int64, bool) {
	if len(h.ts) == 0 {
		return 0, false
	}
	return h.ts[len(h.ts)-1], true
}

// Snapshot returns a copy of the timestamps.
func (h *History) Snapshot() []int64 {
	return slices.Clone(h.ts)
}

// InsertionRank returns the leftmost index at which v could be inserted
// while keeping the log sorted, i.e. the number of entries < v.
func (h *History) InsertionRank(v int64) int {
	low, high := 0, len(h.ts)
	for low < high {
		mid := int(uint(low+high) >> 1)
		if h.ts[mid] < v {
			low = mid + 1
		} else {
			high = mid
		}
	}
	return low
}

// Append adds ts at the end. Callers must keep ts >= Last().
func (h *History) Append(ts int64) {
	h.ts = append(h.ts, ts)
}

// TruncatePrefix drops every entry below index and returns the oldest
// dropped timestamp. ok is false when nothing was removed.
func (h *History) TruncatePrefix(index int) (oldest int64, ok bool) {
	if index <= 0 || len(h.ts) == 0 {
		return 0, false
	}
	if index > len(h.ts) {
		index = len(h.ts)
	}
	oldest = h.ts[0]
	// the dropped head stays in the backing array until append regrows it
	h.ts = h.ts[index:]
	return oldest, true
}
