package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKimmel/limits/internal/clock"
	"github.com/AlexKimmel/limits/internal/ratelimit"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T, opts ratelimit.Options) (*Scheduler, *ratelimit.RuleSet, *clock.Virtual) {
	t.Helper()
	rs, err := ratelimit.New(opts)
	require.NoError(t, err)
	vc := clock.NewVirtual(epoch)
	return New(rs, vc, zerolog.Nop()), rs, vc
}

func waitDone(t *testing.T, c *Call) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("call did not finish")
	}
}

func TestPush_RunsAfterDelay(t *testing.T) {
	s, _, vc := newScheduler(t, ratelimit.Options{Quotas: map[string]int{
		"secondly": 1,
		"minutely": 1,
		"hourly":   3,
	}})

	var ran atomic.Int32
	var calls []*Call
	for i := 0; i < 5; i++ {
		c, err := s.Push(context.Background(), func() { ran.Add(1) }, nil)
		require.NoError(t, err)
		require.NotNil(t, c)
		calls = append(calls, c)
	}

	var delays []time.Duration
	for _, c := range calls {
		delays = append(delays, c.Delay)
	}
	assert.Equal(t, []time.Duration{0, time.Minute, 2 * time.Minute, time.Hour, time.Hour + time.Minute}, delays)

	waitDone(t, calls[0])
	assert.True(t, calls[0].Ran())
	assert.False(t, calls[1].Ran())

	vc.Advance(time.Minute)
	waitDone(t, calls[1])
	assert.Equal(t, int32(2), ran.Load())

	vc.Set(calls[4].At)
	for _, c := range calls {
		waitDone(t, c)
		assert.True(t, c.Ran())
	}
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, epoch.Add(time.Hour+time.Minute), calls[4].At)
}

func TestPush_VetoLeavesHistory(t *testing.T) {
	s, rs, _ := newScheduler(t, ratelimit.Options{Quotas: map[string]int{"secondly": 1}})

	_, err := s.Push(context.Background(), func() {}, nil)
	require.NoError(t, err)
	before := rs.History()

	var seen time.Duration
	c, err := s.Push(context.Background(), func() { t.Error("vetoed call ran") }, func(d time.Duration) bool {
		seen = d
		return false
	})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Equal(t, time.Second, seen)
	assert.Equal(t, before, rs.History())
}

func TestPush_NoRules(t *testing.T) {
	s, _, _ := newScheduler(t, ratelimit.Options{})

	_, err := s.Push(context.Background(), func() {}, nil)
	assert.ErrorIs(t, err, ratelimit.ErrNoRules)
}

func TestPush_StopKeepsSlot(t *testing.T) {
	s, rs, vc := newScheduler(t, ratelimit.Options{Quotas: map[string]int{"secondly": 1}})

	_, err := s.Push(context.Background(), func() {}, nil)
	require.NoError(t, err)

	c, err := s.Push(context.Background(), func() { t.Error("stopped call ran") }, nil)
	require.NoError(t, err)
	c.Stop()
	c.Stop()
	waitDone(t, c)
	assert.False(t, c.Ran())

	vc.Advance(time.Second)
	assert.Len(t, rs.History(), 2, "the stopped call keeps its slot")

	next, err := s.Push(context.Background(), func() {}, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, next.Delay)
}

func TestPush_ContextCancel(t *testing.T) {
	s, _, _ := newScheduler(t, ratelimit.Options{Quotas: map[string]int{"minutely": 1}})

	_, err := s.Push(context.Background(), func() {}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	c, err := s.Push(ctx, func() { t.Error("cancelled call ran") }, nil)
	require.NoError(t, err)
	cancel()
	waitDone(t, c)
	assert.False(t, c.Ran())
}
