package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/campus-menu-client/internal/config"
	"github.com/Sternrassler/campus-menu-client/pkg/cache"
	"github.com/Sternrassler/campus-menu-client/pkg/client"
	"github.com/Sternrassler/campus-menu-client/pkg/connectivity"
	"github.com/Sternrassler/campus-menu-client/pkg/logging"
	"github.com/Sternrassler/campus-menu-client/pkg/menu"
	"github.com/Sternrassler/campus-menu-client/pkg/ratelimit"
	"github.com/Sternrassler/campus-menu-client/pkg/recovery"
)

// app is the composition root: every collaborator is built here once and
// injected, nothing lives in package state.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	redis    *redis.Client
	store    *cache.Store
	policy   cache.Policy
	monitor  *connectivity.Monitor
	tracker  *ratelimit.Tracker
	client   *client.Client
	recovery *recovery.Handler
	menu     *menu.Repository
}

func newApp(ctx context.Context, cfg *config.Config, logOutput io.Writer) (*app, error) {
	logCfg := cfg.Logging
	logCfg.Output = logOutput
	logging.Setup(logCfg)

	policy, err := cfg.CachePolicy()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger("menu-cache"),
		policy: policy,
	}

	persistent, err := a.persistentTier(ctx)
	if err != nil {
		return nil, err
	}

	a.store = cache.NewStore(cache.Options{
		Persistent:    persistent,
		MemoryEntries: cfg.Cache.MemoryEntries,
		Limits:        policy,
		Logger:        logging.NewLogger("cache"),
	})

	httpClient := &http.Client{}
	a.monitor = connectivity.NewMonitor(
		connectivity.NewHTTPProber(cfg.ProbeURL(), httpClient, cfg.Connectivity.Timeout),
		connectivity.MonitorOptions{
			Interval: cfg.Connectivity.Interval,
			Logger:   logging.NewLogger("connectivity"),
		},
	)

	var limitStore ratelimit.StateStore
	if a.redis != nil {
		limitStore = ratelimit.NewRedisStore(a.redis, cfg.Cache.Redis.Prefix+"rate_limit")
	}
	a.tracker = ratelimit.NewTracker(ratelimit.Options{
		Store:  limitStore,
		Logger: logging.NewLogger("ratelimit"),
	})

	a.client, err = client.New(client.Config{
		HTTPClient:           httpClient,
		Cache:                a.store,
		Connectivity:         a.monitor,
		RequestInterceptors:  a.requestInterceptors(),
		ResponseInterceptors: a.responseInterceptors(),
		CachePolicy:          policy,
		DefaultTimeout:       cfg.API.Timeout,
		Logger:               logging.NewLogger("client"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := recovery.Dependencies{
		Connectivity: a.monitor,
		Config:       cfg.Recovery.Config,
	}
	if cfg.Recovery.AIProbeURL != "" {
		deps.AIProber = connectivity.NewHTTPProber(cfg.Recovery.AIProbeURL, httpClient, cfg.Recovery.ProbeTimeout)
	}
	a.recovery = recovery.NewHandler(recovery.DefaultRegistry(deps), logging.NewLogger("recovery"))

	a.menu, err = menu.NewRepository(menu.Config{
		Client:   a.client,
		BaseURL:  cfg.API.BaseURL,
		Recovery: a.recovery,
		Logger:   logging.NewLogger("menu"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// persistentTier selects Redis when an address is configured and the disk
// directory otherwise.
func (a *app) persistentTier(ctx context.Context) (cache.Tier, error) {
	rc := a.cfg.Cache.Redis
	if rc.Addr == "" {
		return cache.NewDiskTier(a.cfg.Cache.Dir)
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		_ = a.redis.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", rc.Addr, err)
	}
	a.logger.Debug().Str("addr", rc.Addr).Msg("Using Redis cache tier")
	return cache.NewRedisTier(a.redis, rc.Prefix), nil
}

func (a *app) requestInterceptors() []client.RequestInterceptor {
	interceptors := []client.RequestInterceptor{
		client.RequestIDInterceptor{},
		a.tracker,
	}

	// The anon key doubles as bearer token for anonymous reads.
	token := a.cfg.API.AccessToken
	if token == "" {
		token = a.cfg.API.AnonKey
	}
	if token != "" {
		interceptors = append(interceptors, client.AuthInterceptor{
			APIKey: a.cfg.API.AnonKey,
			Tokens: client.StaticToken(token),
		})
	}

	return append(interceptors, client.LoggingInterceptor{Logger: logging.NewLogger("http")})
}

func (a *app) responseInterceptors() []client.ResponseInterceptor {
	return []client.ResponseInterceptor{
		client.LoggingInterceptor{Logger: logging.NewLogger("http")},
		a.tracker,
		client.UnauthorizedInterceptor{},
	}
}

// checkConnectivity runs one probe so single-shot commands start with a
// known status instead of Unknown.
func (a *app) checkConnectivity(ctx context.Context) connectivity.Status {
	return a.monitor.Check(ctx)
}

// Close releases the Redis connection and stops the monitor.
func (a *app) Close() {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
