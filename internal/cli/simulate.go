package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/AlexKimmel/limits/internal/clock"
	"github.com/AlexKimmel/limits/internal/ratelimit"
	"github.com/AlexKimmel/limits/internal/scheduler"
)

type simulateOptions struct {
	quotas  map[string]int
	windows []string // "millis:maxcalls"
	calls   int
	step    time.Duration
}

func newSimulateCmd() *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Push calls through a rule set on a virtual clock and print their delays",
		Example: `  limits simulate --quota secondly=1 --quota minutely=1 --quota hourly=3 --calls 5
  limits simulate --within 2000:1 --within 10000:2 --calls 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringToIntVar(&opts.quotas, "quota", nil, "named period quota, e.g. minutely=10 (repeatable)")
	cmd.Flags().StringSliceVar(&opts.windows, "within", nil, "custom window as millis:maxcalls (repeatable)")
	cmd.Flags().IntVarP(&opts.calls, "calls", "n", 5, "number of calls to push")
	cmd.Flags().DurationVar(&opts.step, "step", 0, "virtual time between pushes")
	return cmd
}

func runSimulate(ctx context.Context, out io.Writer, opts simulateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rs, err := ratelimit.New(ratelimit.Options{Quotas: opts.quotas})
	if err != nil {
		return err
	}
	for _, w := range opts.windows {
		millis, maxCalls, err := parseWindow(w)
		if err != nil {
			return err
		}
		rs.Within(millis, maxCalls)
	}
	if err := rs.Err(); err != nil {
		return err
	}

	start := time.Unix(0, 0).UTC()
	vc := clock.NewVirtual(start)
	sched := scheduler.New(rs, vc, zerolog.Nop())

	pushed := make([]*scheduler.Call, 0, opts.calls)
	for i := 0; i < opts.calls; i++ {
		if i > 0 && opts.step > 0 {
			vc.Advance(opts.step)
		}
		call, err := sched.Push(ctx, func() {}, nil)
		if err != nil {
			return err
		}
		pushed = append(pushed, call)
		fmt.Fprintf(out, "call %d\tat=+%dms\tdelay=%dms\n", i+1, vc.Now().Sub(start).Milliseconds(), call.Delay.Milliseconds())
	}

	// run everything that was scheduled
	if n := len(pushed); n > 0 {
		last := pushed[n-1].At
		if last.After(vc.Now()) {
			vc.Set(last)
		}
		for _, c := range pushed {
			<-c.Done()
		}
		fmt.Fprintf(out, "ran %d calls, last at +%dms, history size %d\n", n, last.Sub(start).Milliseconds(), len(rs.History()))
	}
	return nil
}

func parseWindow(s string) (int64, int, error) {
	ms, n, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("window %q: want millis:maxcalls", s)
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(ms), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("window %q: %w", s, err)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("window %q: %w", s, err)
	}
	maxCalls, err := ratelimit.Quota(f)
	if err != nil {
		return 0, 0, fmt.Errorf("window %q: %w", s, err)
	}
	return millis, maxCalls, nil
}
