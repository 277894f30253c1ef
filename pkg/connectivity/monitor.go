package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultInterval is the probe interval used when none is configured.
const DefaultInterval = 30 * time.Second

var connectivityUp = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "menu_connectivity_up",
	Help: "1 if the last connectivity probe succeeded, 0 otherwise",
})

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// Monitor probes connectivity periodically and on demand.
type Monitor struct {
	prober   Prober
	interval time.Duration
	clock    clock.Clock
	logger   zerolog.Logger

	mu          sync.RWMutex
	status      Status
	lastCheck   time.Time
	subscribers []func(Status)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor. The status is Unknown until the first probe.
func NewMonitor(prober Prober, opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Monitor{
		prober:   prober,
		interval: opts.Interval,
		clock:    opts.Clock,
		logger:   opts.Logger,
	}
}

// Status implements Source.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// LastCheck returns the time of the most recent probe.
func (m *Monitor) LastCheck() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCheck
}

// OnChange registers fn to be called after every status transition.
func (m *Monitor) OnChange(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Check probes immediately and returns the new status. A probe aborted by
// ctx leaves the status untouched.
func (m *Monitor) Check(ctx context.Context) Status {
	err := m.prober.Probe(ctx)
	if ctx.Err() != nil {
		return m.Status()
	}

	next := Connected
	if err != nil {
		next = Disconnected
	}

	m.mu.Lock()
	prev := m.status
	m.status = next
	m.lastCheck = m.clock.Now()
	subscribers := append([]func(Status){}, m.subscribers...)
	m.mu.Unlock()

	if next == Connected {
		connectivityUp.Set(1)
	} else {
		connectivityUp.Set(0)
	}

	if prev != next {
		event := m.logger.Info()
		if next == Disconnected {
			event = m.logger.Warn().Err(err)
		}
		event.
			Str("from", prev.String()).
			Str("to", next.String()).
			Msg("Connectivity changed")

		for _, fn := range subscribers {
			fn(next)
		}
	}

	return next
}

// Start runs an initial probe synchronously and then keeps probing every
// interval until Stop is called or ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.Check(ctx)

	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Stop ends background probing and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
