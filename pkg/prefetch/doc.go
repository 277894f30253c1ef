// Package prefetch warms the response cache for a set of endpoints with
// bounded concurrency, so the menu is available offline before the user
// opens it.
//
// Example usage:
//
//	p := prefetch.New(prefetch.ClientFetcher{Client: c}, prefetch.DefaultConfig(), logger)
//	outcomes, err := p.Warm(ctx, endpoints)
//	log.Info().Int("warmed", prefetch.Succeeded(outcomes)).Msg("Prefetch done")
//
// The prefetcher:
//   - Runs at most MaxConcurrency fetches at a time (errgroup with a limit)
//   - Applies a per-endpoint timeout
//   - Keeps going when single endpoints fail and reports one Outcome each
//   - Stops scheduling new fetches once the context is cancelled
package prefetch
