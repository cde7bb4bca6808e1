package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CallsTotal     *prometheus.CounterVec
	CallDelay      *prometheus.HistogramVec
	RateLimited    *prometheus.CounterVec
	LimiterErrors  *prometheus.CounterVec
	HistoryCleared *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limits_calls_total",
				Help: "Total calls committed to a rule set history",
			},
			[]string{"limiter"},
		),
		CallDelay: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "limits_call_delay_seconds",
				Help:    "Delay assigned to committed calls",
				Buckets: []float64{0, .01, .05, .1, .5, 1, 5, 30, 60, 300, 3600},
			},
			[]string{"limiter"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limits_rate_limited_total",
				Help: "Total calls rejected because their delay was too long",
			},
			[]string{"limiter"},
		),
		LimiterErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limits_limiter_errors_total",
				Help: "Total rate limiter errors",
			},
			[]string{"limiter"},
		),
		HistoryCleared: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "limits_history_cleared_total",
				Help: "Total history truncations",
			},
			[]string{"limiter"},
		),
	}

	reg.MustRegister(m.CallsTotal, m.CallDelay, m.RateLimited, m.LimiterErrors, m.HistoryCleared)
	return m
}

// Hooks returns RuleSet callbacks that feed m under the given limiter label.
func (m *Metrics) Hooks(limiter string) (onCall, onClear func(int64)) {
	calls := m.CallsTotal.WithLabelValues(limiter)
	delay := m.CallDelay.WithLabelValues(limiter)
	cleared := m.HistoryCleared.WithLabelValues(limiter)

	onCall = func(ms int64) {
		calls.Inc()
		delay.Observe(float64(ms) / 1000)
	}
	onClear = func(int64) {
		cleared.Inc()
	}
	return onCall, onClear
}
