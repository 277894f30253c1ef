package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
)

// DefaultActionTimeout bounds a strategy's recovery action (probe, refresh,
// resync) so a slow probe cannot dominate the retry latency.
const DefaultActionTimeout = 2 * time.Second

// Strategy is a stateful, bounded recovery procedure for one category.
//
// A strategy counts every Recover call and refuses further recovery once the
// count reaches MaxAttempts. It never resets itself; the owner calls Reset
// when a new logical operation starts.
type Strategy interface {
	Category() apperror.Category
	MaxAttempts() int
	Attempts() int

	// CanRecover reports whether err belongs to the strategy's category, is
	// recoverable, and the attempt budget is not used up.
	CanRecover(err *apperror.Error) bool

	// Recover runs the recovery action and waits the attempt's delay.
	// A nil return means the caller may retry the operation.
	Recover(ctx context.Context, err *apperror.Error) error

	Reset()
}

// Action is the category-specific recovery step.
type Action func(ctx context.Context) error

// DelayFunc returns the wait before retry number attempt (1-based).
type DelayFunc func(attempt int) time.Duration

// Linear returns base × attempt.
func Linear(base time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Fixed returns the same delay for every attempt.
func Fixed(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

// BoundedStrategy is the Strategy used for every category; categories differ
// only in budget, delay and action.
type BoundedStrategy struct {
	category      apperror.Category
	maxAttempts   int
	delay         DelayFunc
	action        Action
	actionTimeout time.Duration
	clock         clock.Clock

	mu       sync.Mutex
	attempts int
}

// StrategyConfig configures a BoundedStrategy.
type StrategyConfig struct {
	Category    apperror.Category
	MaxAttempts int
	Delay       DelayFunc

	// Action is optional; without one the strategy only waits.
	Action        Action
	ActionTimeout time.Duration

	Clock clock.Clock
}

// NewBoundedStrategy creates a strategy.
func NewBoundedStrategy(cfg StrategyConfig) *BoundedStrategy {
	if cfg.Delay == nil {
		cfg.Delay = Fixed(0)
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &BoundedStrategy{
		category:      cfg.Category,
		maxAttempts:   cfg.MaxAttempts,
		delay:         cfg.Delay,
		action:        cfg.Action,
		actionTimeout: cfg.ActionTimeout,
		clock:         cfg.Clock,
	}
}

// Category implements Strategy.
func (s *BoundedStrategy) Category() apperror.Category { return s.category }

// MaxAttempts implements Strategy.
func (s *BoundedStrategy) MaxAttempts() int { return s.maxAttempts }

// Attempts implements Strategy.
func (s *BoundedStrategy) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// CanRecover implements Strategy.
func (s *BoundedStrategy) CanRecover(err *apperror.Error) bool {
	if err == nil || err.Category() != s.category || !err.IsRecoverable() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts < s.maxAttempts
}

// Recover implements Strategy. The attempt counts even when the action fails.
func (s *BoundedStrategy) Recover(ctx context.Context, err *apperror.Error) error {
	s.mu.Lock()
	if s.attempts >= s.maxAttempts {
		s.mu.Unlock()
		return fmt.Errorf("%s recovery: %d of %d attempts used", s.category, s.attempts, s.maxAttempts)
	}
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	if s.action != nil {
		actionCtx, cancel := context.WithTimeout(ctx, s.actionTimeout)
		actionErr := s.action(actionCtx)
		cancel()
		if actionErr != nil {
			return fmt.Errorf("%s recovery action: %w", s.category, actionErr)
		}
	}

	delay := s.delay(attempt)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := s.clock.Timer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset implements Strategy.
func (s *BoundedStrategy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = 0
}
