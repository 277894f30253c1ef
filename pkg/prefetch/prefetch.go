package prefetch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/campus-menu-client/pkg/client"
)

// Config holds prefetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests.
	MaxConcurrency int

	// Timeout per endpoint fetch.
	Timeout time.Duration
}

// DefaultConfig returns conservative defaults for a mobile backend.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// Fetcher loads a single endpoint through the cache.
type Fetcher interface {
	Fetch(ctx context.Context, ep client.Endpoint) error
}

// ClientFetcher fetches through a client.Client, which writes successful
// GET responses to its cache.
type ClientFetcher struct {
	Client *client.Client
}

// Fetch implements Fetcher.
func (f ClientFetcher) Fetch(ctx context.Context, ep client.Endpoint) error {
	_, err := client.Execute[json.RawMessage](ctx, f.Client, ep)
	return err
}

// Outcome is the result for one endpoint.
type Outcome struct {
	Endpoint client.Endpoint
	Duration time.Duration
	Err      error
}

// Prefetcher runs fetches with bounded concurrency.
type Prefetcher struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a prefetcher.
func New(fetcher Fetcher, config Config, logger zerolog.Logger) *Prefetcher {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &Prefetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// Warm fetches every endpoint and returns one outcome per endpoint, in
// input order. Endpoint failures are reported in the outcomes; the error is
// non-nil only when ctx ends before all endpoints were attempted, in which
// case the unattempted outcomes carry ctx.Err().
func (p *Prefetcher) Warm(ctx context.Context, endpoints []client.Endpoint) ([]Outcome, error) {
	start := time.Now()
	outcomes := make([]Outcome, len(endpoints))

	p.logger.Info().
		Int("endpoints", len(endpoints)).
		Int("concurrency", p.config.MaxConcurrency).
		Msg("Starting prefetch")

	var g errgroup.Group
	g.SetLimit(p.config.MaxConcurrency)

	var skipped error
	for i, ep := range endpoints {
		outcomes[i].Endpoint = ep
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
			skipped = err
			continue
		}

		g.Go(func() error {
			outcomes[i] = p.fetch(ctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := Succeeded(outcomes)
	event := p.logger.Info()
	if succeeded < len(outcomes) {
		event = p.logger.Warn()
	}
	event.
		Int("succeeded", succeeded).
		Int("total", len(outcomes)).
		Dur("duration", time.Since(start)).
		Msg("Prefetch complete")

	return outcomes, skipped
}

func (p *Prefetcher) fetch(ctx context.Context, ep client.Endpoint) Outcome {
	fetchCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	err := p.fetcher.Fetch(fetchCtx, ep)
	outcome := Outcome{Endpoint: ep, Duration: time.Since(start), Err: err}

	if err != nil {
		p.logger.Warn().
			Err(err).
			Str("path", ep.Path).
			Msg("Prefetch failed")
	} else {
		p.logger.Debug().
			Str("path", ep.Path).
			Dur("duration", outcome.Duration).
			Msg("Prefetched")
	}
	return outcome
}

// Succeeded counts the outcomes without error.
func Succeeded(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}
