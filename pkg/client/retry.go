package client

import (
	"context"

	"github.com/Sternrassler/campus-menu-client/pkg/recovery"
)

// ExecuteWithRecovery runs Execute and, on failure, lets handler decide
// whether to retry. The handler is reset first, so each call is a new
// logical operation whose retries are bounded by the strategies' ceilings.
//
// The returned error is the last *apperror.Error.
func ExecuteWithRecovery[T any](ctx context.Context, c *Client, handler *recovery.Handler, ep Endpoint, opts ...ExecuteOption) (T, error) {
	handler.Reset()

	for attempt := 1; ; attempt++ {
		out, err := Execute[T](ctx, c, ep, opts...)
		if err == nil {
			if attempt > 1 {
				c.logger.Info().
					Str("path", ep.Path).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return out, nil
		}

		result := handler.Handle(ctx, err)
		if !result.ShouldRetry {
			return out, err
		}
	}
}
