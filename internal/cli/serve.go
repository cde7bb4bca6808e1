package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AlexKimmel/limits/internal/auth"
	"github.com/AlexKimmel/limits/internal/clock"
	"github.com/AlexKimmel/limits/internal/config"
	"github.com/AlexKimmel/limits/internal/gateway"
	"github.com/AlexKimmel/limits/internal/obs"
	"github.com/AlexKimmel/limits/internal/ratelimit"
	"github.com/AlexKimmel/limits/internal/ratelimit/memory"
)

func newServeCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve HTTP endpoints throttled per API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&path, "config", "c", "./config.yaml", "path to the YAML config")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Root) error {
	logger := obs.SetupLogger(cfg.Observability.LogLevel)

	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg)
	lim := memory.New(metrics.Hooks)
	defer lim.Close()

	handler, err := newHandler(cfg, lim, metrics, reg, clock.Real{}, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
			return err
		}
		logger.Info().Msg("bye")
		return nil
	})
	return g.Wait()
}

func newHandler(
	cfg *config.Root,
	lim ratelimit.Limiter,
	metrics *obs.Metrics,
	gatherer prometheus.Gatherer,
	clk clock.Clock,
	logger zerolog.Logger,
) (http.Handler, error) {
	policy, err := cfg.Limits.Default.Policy()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(version))
	})

	mux.Handle(cfg.Observability.PrometheusPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			OK  bool   `json:"ok"`
			Key string `json:"key"`
		}{OK: true, Key: auth.KeyIDFrom(r.Context())})
	})

	pairs := map[string]string{} // secret -> keyID
	for _, k := range cfg.Auth.Keys {
		if k.Secret != "" && k.ID != "" {
			pairs[k.Secret] = k.ID
		}
	}
	authStore := auth.NewStatic(cfg.Auth.Header, pairs)

	skip := map[string]struct{}{
		"/health":  {},
		"/version": {},
	}
	skip[cfg.Observability.PrometheusPath] = struct{}{}

	onLimited := func(key string) {
		metrics.RateLimited.WithLabelValues(key).Inc()
	}
	onError := func(key string) {
		metrics.LimiterErrors.WithLabelValues(key).Inc()
		logger.Error().Str("key", key).Msg("rate limiter failed")
	}

	return gateway.Chain(
		mux,
		obs.Logger(logger),
		authStore.Middleware(skip),
		gateway.Throttle(lim, policy, cfg.Limits.MaxWait(), clk, skip, onLimited, onError),
	), nil
}
