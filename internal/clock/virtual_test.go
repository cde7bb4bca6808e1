package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func fired(ch <-chan time.Time) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestVirtual_AdvanceAndSet(t *testing.T) {
	v := NewVirtual(epoch)
	assert.Equal(t, epoch, v.Now())

	v.Advance(90 * time.Minute)
	assert.Equal(t, epoch.Add(90*time.Minute), v.Now())

	v.Set(epoch.Add(24 * time.Hour))
	assert.Equal(t, epoch.Add(24*time.Hour), v.Now())
	assert.Equal(t, epoch.Add(24*time.Hour).UnixMilli(), Millis(v))
}

func TestVirtual_Panics(t *testing.T) {
	v := NewVirtual(epoch)
	assert.Panics(t, func() { v.Advance(-time.Second) })
	assert.Panics(t, func() { v.Set(epoch.Add(-time.Hour)) })
}

func TestVirtual_After(t *testing.T) {
	v := NewVirtual(epoch)
	ch1 := v.After(time.Second)
	ch5 := v.After(5 * time.Second)
	require.Equal(t, 2, v.Pending())

	assert.False(t, fired(ch1))

	v.Advance(time.Second)
	assert.True(t, fired(ch1))
	assert.False(t, fired(ch5))
	assert.Equal(t, 1, v.Pending())

	v.Set(epoch.Add(time.Minute))
	assert.True(t, fired(ch5))
	assert.Zero(t, v.Pending())
}

func TestVirtual_AfterZeroFiresImmediately(t *testing.T) {
	v := NewVirtual(epoch)
	assert.True(t, fired(v.After(0)))
	assert.True(t, fired(v.After(-time.Second)))
}

func TestVirtual_Concurrent(t *testing.T) {
	v := NewVirtual(epoch)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = v.Now()
		}()
		go func() {
			defer wg.Done()
			v.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(50*time.Millisecond), v.Now())
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, Duration(1500))
}

func TestClocks(t *testing.T) {
	var _ Clock = Real{}
	var _ Clock = NewVirtual(epoch)
}
