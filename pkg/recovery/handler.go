package recovery

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
	"github.com/Sternrassler/campus-menu-client/pkg/logging"
)

// Result is the outcome of Handler.Handle.
type Result struct {
	// ShouldRetry is true when the error is recoverable and a recovery
	// attempt completed.
	ShouldRetry bool

	UserMessage      string
	TechnicalMessage string
	Severity         apperror.Severity

	// RecoveryAttempted is true when a strategy ran without failing.
	RecoveryAttempted bool

	// Error is the classified error.
	Error *apperror.Error
}

// Handler classifies errors and runs the category's recovery strategy.
//
// A Handler holds one strategy instance per category for its whole lifetime,
// so attempt ceilings hold across consecutive Handle calls. Use one Handler
// per logical retry loop and call Reset before starting a new operation.
type Handler struct {
	registry Registry
	logger   zerolog.Logger

	mu         sync.Mutex
	strategies map[apperror.Category]Strategy
}

// NewHandler creates a handler. Strategies are built lazily from registry.
func NewHandler(registry Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		registry:   registry,
		logger:     logger,
		strategies: make(map[apperror.Category]Strategy),
	}
}

// Handle classifies err, logs it and attempts recovery when the error is
// recoverable. It always returns the user-facing message, even after the
// retry budget is exhausted.
func (h *Handler) Handle(ctx context.Context, err error) Result {
	appErr := Classify(err)
	if appErr == nil {
		return Result{}
	}

	category := appErr.Category()
	recoverable := appErr.IsRecoverable()
	logger := logging.WithCategory(h.logger, string(category))

	event := logger.Warn()
	if !recoverable {
		event = logger.Error()
	}
	event.
		Err(appErr).
		Str("kind", string(appErr.Kind)).
		Str("severity", appErr.Severity().String()).
		Bool("recoverable", recoverable).
		Msg("Request failed")

	result := Result{
		UserMessage:      appErr.UserMessage(),
		TechnicalMessage: appErr.TechnicalMessage(),
		Severity:         appErr.Severity(),
		Error:            appErr,
	}

	if !recoverable {
		return result
	}

	strategy, ok := h.Strategy(category)
	if !ok {
		logger.Debug().Msg("No recovery strategy registered")
		return result
	}

	if !strategy.CanRecover(appErr) {
		recoveryExhaustedTotal.WithLabelValues(string(category)).Inc()
		logger.Error().
			Int("attempts", strategy.Attempts()).
			Int("max_attempts", strategy.MaxAttempts()).
			Msg("Recovery attempts exhausted")
		return result
	}

	recoveryAttemptsTotal.WithLabelValues(string(category)).Inc()
	if err := strategy.Recover(ctx, appErr); err != nil {
		logger.Warn().
			Err(err).
			Int("attempt", strategy.Attempts()).
			Msg("Recovery attempt failed")
		return result
	}

	logger.Info().
		Int("attempt", strategy.Attempts()).
		Int("max_attempts", strategy.MaxAttempts()).
		Msg("Recovery attempted, retrying")

	result.RecoveryAttempted = true
	result.ShouldRetry = true
	return result
}

// Reset resets every strategy for a new logical operation.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.strategies {
		s.Reset()
	}
}

// Strategy returns the handler's strategy for category, building it on
// first use.
func (h *Handler) Strategy(category apperror.Category) (Strategy, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.strategies[category]; ok {
		return s, true
	}
	factory, ok := h.registry[category]
	if !ok {
		return nil, false
	}
	s := factory()
	h.strategies[category] = s
	return s, true
}
