package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
	"github.com/Sternrassler/campus-menu-client/pkg/client"
)

var (
	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menu_rate_limit_blocks_total",
		Help: "Total number of requests rejected while a Retry-After window was open",
	})

	rateLimitBackoffsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menu_rate_limit_backoffs_total",
		Help: "Total number of 429 responses that opened a back-off window",
	})

	rateLimitBackoffSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "menu_rate_limit_backoff_seconds",
		Help: "Length of the most recent back-off window in seconds",
	})
)

// Options configures a Tracker.
type Options struct {
	// Store defaults to an in-process MemoryStore.
	Store StateStore

	// DefaultBackoff applies to 429 responses without Retry-After.
	// Defaults to DefaultBackoff.
	DefaultBackoff time.Duration

	Clock  clock.Clock
	Logger zerolog.Logger
}

// Tracker gates requests on the Retry-After window. It is both a
// client.RequestInterceptor and a client.ResponseInterceptor; register it
// in both lists.
type Tracker struct {
	store    StateStore
	fallback time.Duration
	clock    clock.Clock
	logger   zerolog.Logger
}

var (
	_ client.RequestInterceptor  = (*Tracker)(nil)
	_ client.ResponseInterceptor = (*Tracker)(nil)
)

// NewTracker creates a tracker.
func NewTracker(opts Options) *Tracker {
	t := &Tracker{
		store:    opts.Store,
		fallback: opts.DefaultBackoff,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
	if t.store == nil {
		t.store = &MemoryStore{}
	}
	if t.fallback <= 0 {
		t.fallback = DefaultBackoff
	}
	if t.clock == nil {
		t.clock = clock.New()
	}
	return t
}

// State returns the current back-off state.
func (t *Tracker) State(ctx context.Context) (State, error) {
	return t.store.Load(ctx)
}

// Reset closes any open window.
func (t *Tracker) Reset(ctx context.Context) error {
	return t.store.Save(ctx, State{LastUpdate: t.clock.Now()})
}

// InterceptRequest rejects the request while a window is open. State that
// cannot be read lets the request through.
func (t *Tracker) InterceptRequest(ctx context.Context, req *http.Request) error {
	state, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Rate limit state unavailable, allowing request")
		return nil
	}

	now := t.clock.Now()
	if !state.Blocked(now) {
		return nil
	}

	wait := state.Remaining(now)
	rateLimitBlocksTotal.Inc()
	t.logger.Warn().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Dur("wait_duration", wait).
		Msg("Rate limit back-off active - blocking request")

	return apperror.Wrap(apperror.KindRateLimitExceeded,
		fmt.Errorf("retry after %s", wait.Round(time.Second)))
}

// InterceptResponse opens a back-off window on 429 responses. The status
// itself is left to the client's status mapping.
func (t *Tracker) InterceptResponse(ctx context.Context, resp *client.Response) error {
	if resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}

	now := t.clock.Now()
	wait, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), now)
	if !ok {
		wait = t.fallback
	}
	if wait > MaxBackoff {
		wait = MaxBackoff
	}

	state := State{BlockedUntil: now.Add(wait), LastUpdate: now}
	if err := t.store.Save(ctx, state); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to store rate limit state")
		return nil
	}

	rateLimitBackoffsTotal.Inc()
	rateLimitBackoffSeconds.Set(wait.Seconds())
	t.logger.Warn().
		Dur("wait_duration", wait).
		Time("blocked_until", state.BlockedUntil).
		Msg("Rate limited by server - backing off")
	return nil
}
