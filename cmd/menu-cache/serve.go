package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/campus-menu-client/pkg/cache"
	"github.com/Sternrassler/campus-menu-client/pkg/connectivity"
	"github.com/Sternrassler/campus-menu-client/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr          string
		sweepInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose metrics and health, sweep the cache and watch connectivity",
		Long: `Serve runs until interrupted. It starts the connectivity monitor, sweeps
expired cache entries periodically, and serves:

  /metrics  Prometheus metrics
  /healthz  connectivity status and cache statistics as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.run(cmd, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Metrics.ListenAddr
				}
				if sweepInterval <= 0 {
					sweepInterval = a.cfg.Cache.SweepInterval
				}
				return serve(ctx, a, addr, sweepInterval)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 0, "cache sweep interval (default from config)")
	return cmd
}

func serve(ctx context.Context, a *app, addr string, sweepInterval time.Duration) error {
	a.monitor.OnChange(func(status connectivity.Status) {
		a.logger.Info().Str("status", status.String()).Msg("Connectivity changed")
	})
	a.monitor.Start(ctx)

	if sweepInterval > 0 {
		go sweepLoop(ctx, a.store, sweepInterval, a.logger)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(a.monitor, a.store),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", addr).Msg("Starting metrics server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMux(status connectivity.Source, store *cache.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(nil))
	mux.HandleFunc("GET /healthz", healthHandler(status, store))
	return mux
}

type healthResponse struct {
	Status       string      `json:"status"`
	Connectivity string      `json:"connectivity"`
	Cache        cache.Stats `json:"cache"`
}

// healthHandler always reports ok: the cache keeps serving while offline,
// so connectivity is informational.
func healthHandler(status connectivity.Source, store *cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:       "ok",
			Connectivity: status.Status().String(),
			Cache:        store.Stats(r.Context()),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func sweepLoop(ctx context.Context, store *cache.Store, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := store.SweepExpired(ctx)
			logger.Info().Int("removed", removed).Msg("Cache sweep complete")
		}
	}
}
