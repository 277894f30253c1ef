package recovery

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Sternrassler/campus-menu-client/pkg/apperror"
	"github.com/Sternrassler/campus-menu-client/pkg/connectivity"
)

// ErrStillDisconnected is returned by the network action when the
// connectivity re-check still reports no connection.
var ErrStillDisconnected = errors.New("still disconnected")

// Factory builds a fresh strategy.
type Factory func() Strategy

// Registry maps a category to the factory of its strategy. Categories without
// an entry are never recovered.
type Registry map[apperror.Category]Factory

// ConnectivityChecker re-checks connectivity on demand.
// *connectivity.Monitor satisfies it.
type ConnectivityChecker interface {
	Check(ctx context.Context) connectivity.Status
}

// Config holds the strategy delays.
type Config struct {
	NetworkBaseDelay time.Duration `yaml:"network_base_delay" validate:"gte=0"`
	AIBaseDelay      time.Duration `yaml:"ai_base_delay" validate:"gte=0"`
	AuthDelay        time.Duration `yaml:"auth_delay" validate:"gte=0"`
	DataDelay        time.Duration `yaml:"data_delay" validate:"gte=0"`
	ProbeTimeout     time.Duration `yaml:"probe_timeout" validate:"gte=0"`
}

// DefaultConfig returns the standard delays.
func DefaultConfig() Config {
	return Config{
		NetworkBaseDelay: time.Second,
		AIBaseDelay:      3 * time.Second,
		AuthDelay:        500 * time.Millisecond,
		DataDelay:        500 * time.Millisecond,
		ProbeTimeout:     DefaultActionTimeout,
	}
}

// Dependencies are the collaborators the standard strategies act on.
// Nil fields degrade gracefully: network and AI strategies then only wait,
// and authentication or data recovery is not registered at all.
type Dependencies struct {
	Connectivity ConnectivityChecker
	AIProber     connectivity.Prober

	// RefreshSession renews the access token or session.
	RefreshSession func(ctx context.Context) error

	// Resync re-synchronises local data with the backend.
	Resync func(ctx context.Context) error

	Config Config
	Clock  clock.Clock
}

// Attempt ceilings of the standard strategies.
const (
	NetworkMaxAttempts = 3
	AIMaxAttempts      = 2
	AuthMaxAttempts    = 1
	DataMaxAttempts    = 2
)

// DefaultRegistry wires the standard strategy per category:
//
//	network         3 attempts, base × attempt, re-check connectivity
//	ai              2 attempts, base × attempt, probe the AI service
//	authentication  1 attempt,  fixed delay,    refresh the session
//	data            2 attempts, fixed delay,    resync
func DefaultRegistry(deps Dependencies) Registry {
	cfg := deps.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}

	newStrategy := func(category apperror.Category, max int, delay DelayFunc, action Action) Factory {
		return func() Strategy {
			return NewBoundedStrategy(StrategyConfig{
				Category:      category,
				MaxAttempts:   max,
				Delay:         delay,
				Action:        action,
				ActionTimeout: cfg.ProbeTimeout,
				Clock:         deps.Clock,
			})
		}
	}

	registry := Registry{
		apperror.CategoryNetwork: newStrategy(apperror.CategoryNetwork,
			NetworkMaxAttempts, Linear(cfg.NetworkBaseDelay), connectivityAction(deps.Connectivity)),
		apperror.CategoryAI: newStrategy(apperror.CategoryAI,
			AIMaxAttempts, Linear(cfg.AIBaseDelay), proberAction(deps.AIProber)),
	}

	if deps.RefreshSession != nil {
		registry[apperror.CategoryAuthentication] = newStrategy(apperror.CategoryAuthentication,
			AuthMaxAttempts, Fixed(cfg.AuthDelay), deps.RefreshSession)
	}
	if deps.Resync != nil {
		registry[apperror.CategoryData] = newStrategy(apperror.CategoryData,
			DataMaxAttempts, Fixed(cfg.DataDelay), deps.Resync)
	}

	return registry
}

func connectivityAction(checker ConnectivityChecker) Action {
	if checker == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if checker.Check(ctx) == connectivity.Disconnected {
			return ErrStillDisconnected
		}
		return nil
	}
}

func proberAction(prober connectivity.Prober) Action {
	if prober == nil {
		return nil
	}
	return prober.Probe
}
