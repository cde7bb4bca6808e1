package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AlexKimmel/limits/internal/ratelimit"
)

// ErrMaxWaitTooLong is returned when a throttled request could be held
// longer than the server allows for writing its response.
var ErrMaxWaitTooLong = errors.New("config: limits.max_wait_ms must be below server.write_timeout_ms")

type Server struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"`       // "debug","info","warn","error"
	PrometheusPath string `yaml:"prometheus_path"` // e.g. "/metrics"
}

type APIKey struct {
	ID     string `yaml:"id"`
	Secret string `yaml:"secret"`
}

type Auth struct {
	Header string   `yaml:"header"`
	Keys   []APIKey `yaml:"keys"`
}

// Window is a custom-length quota.
type Window struct {
	WindowMS int64   `yaml:"window_ms"`
	MaxCalls float64 `yaml:"max_calls"`
}

// Quotas lists the limits applied to every key.
type Quotas struct {
	Periods map[string]float64 `yaml:"periods"` // secondly, minutely, ... -> max calls
	Windows []Window           `yaml:"windows"`
}

type Limits struct {
	MaxWaitMS int    `yaml:"max_wait_ms"` // longest a request is held before it is rejected
	Default   Quotas `yaml:"default"`
}

type Root struct {
	Server        Server        `yaml:"server"`
	Observability Observability `yaml:"observability"`
	Auth          Auth          `yaml:"auth"`
	Limits        Limits        `yaml:"limits"`
}

func (s Server) ReadTimeout() time.Duration {
	if s.ReadTimeoutMS == 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

func (s Server) WriteTimeout() time.Duration {
	if s.WriteTimeoutMS == 0 {
		return 10 * time.Second
	}
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (s Server) IdleTimeout() time.Duration {
	if s.IdleTimeoutMS == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IdleTimeoutMS) * time.Millisecond
}

func (l Limits) MaxWait() time.Duration {
	return time.Duration(l.MaxWaitMS) * time.Millisecond
}

// Policy validates q and converts it. Named periods come first, in the
// order of ratelimit.Periods, followed by custom windows.
func (q Quotas) Policy() (ratelimit.Policy, error) {
	var p ratelimit.Policy
	for name := range q.Periods {
		if _, err := ratelimit.PeriodByName(name); err != nil {
			return p, err
		}
	}
	for _, per := range ratelimit.Periods {
		v, ok := q.Periods[per.Name]
		if !ok {
			continue
		}
		n, err := ratelimit.Quota(v)
		if err != nil {
			return p, fmt.Errorf("%s: %w", per.Name, err)
		}
		p.Limits = append(p.Limits, ratelimit.Limit{WindowMillis: per.Millis, MaxCalls: n})
	}
	for i, w := range q.Windows {
		n, err := ratelimit.Quota(w.MaxCalls)
		if err != nil {
			return p, fmt.Errorf("windows[%d]: %w", i, err)
		}
		if w.WindowMS <= 0 {
			return p, fmt.Errorf("windows[%d]: %w", i, ratelimit.ErrInvalidWindow)
		}
		p.Limits = append(p.Limits, ratelimit.Limit{WindowMillis: w.WindowMS, MaxCalls: n})
	}
	return p, nil
}

func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes YAML and fills in defaults.
func Parse(b []byte) (*Root, error) {
	var cfg Root
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}
	if cfg.Limits.MaxWaitMS < 0 {
		cfg.Limits.MaxWaitMS = 0
	}
	if cfg.Limits.MaxWait() >= cfg.Server.WriteTimeout() {
		return nil, fmt.Errorf("%w: max wait %s, write timeout %s",
			ErrMaxWaitTooLong, cfg.Limits.MaxWait(), cfg.Server.WriteTimeout())
	}
	if len(cfg.Limits.Default.Periods) == 0 && len(cfg.Limits.Default.Windows) == 0 {
		cfg.Limits.Default.Periods = map[string]float64{"minutely": 60}
	}
	if _, err := cfg.Limits.Default.Policy(); err != nil {
		return nil, fmt.Errorf("limits.default: %w", err)
	}

	return &cfg, nil
}
