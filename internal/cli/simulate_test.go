package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKimmel/limits/internal/ratelimit"
)

func TestRunSimulate_NamedPeriods(t *testing.T) {
	var out bytes.Buffer
	err := runSimulate(context.Background(), &out, simulateOptions{
		quotas: map[string]int{"secondly": 1, "minutely": 1, "hourly": 3},
		calls:  5,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	for i, want := range []string{"delay=0ms", "delay=60000ms", "delay=120000ms", "delay=3600000ms", "delay=3660000ms"} {
		assert.True(t, strings.HasSuffix(lines[i], want), "line %d: %q", i, lines[i])
	}
	assert.Equal(t, "ran 5 calls, last at +3660000ms, history size 5", lines[5])
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func TestSimulateCmd_Within(t *testing.T) {
	out, err := execute(t, "simulate", "--within", "2000:1", "--within", "10000:2", "-n", "5")
	require.NoError(t, err)

	for _, want := range []string{
		"call 1\tat=+0ms\tdelay=0ms",
		"call 2\tat=+0ms\tdelay=2000ms",
		"call 3\tat=+0ms\tdelay=10000ms",
		"call 4\tat=+0ms\tdelay=12000ms",
		"call 5\tat=+0ms\tdelay=20000ms",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSimulateCmd_Step(t *testing.T) {
	out, err := execute(t, "simulate", "--quota", "secondly=1", "-n", "3", "--step", "1s")
	require.NoError(t, err)

	assert.Contains(t, out, "call 2\tat=+1000ms\tdelay=0ms")
	assert.Contains(t, out, "call 3\tat=+2000ms\tdelay=0ms")
	assert.Contains(t, out, "history size 2")
}

func TestSimulateCmd_Errors(t *testing.T) {
	_, err := execute(t, "simulate", "--within", "900000:1.5")
	assert.ErrorIs(t, err, ratelimit.ErrInvalidQuota)

	_, err = execute(t, "simulate", "--within", "900000:0")
	assert.ErrorIs(t, err, ratelimit.ErrInvalidQuota)

	_, err = execute(t, "simulate", "--within", "900000")
	assert.Error(t, err)

	_, err = execute(t, "simulate", "--quota", "yearly=1")
	assert.ErrorIs(t, err, ratelimit.ErrUnknownPeriod)

	_, err = execute(t, "simulate")
	assert.ErrorIs(t, err, ratelimit.ErrNoRules)
}
