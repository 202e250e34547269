package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"sync/atomic"
	"time"
)

// Monitor holds the online state and notifies listeners when the device comes back online.
type Monitor struct {
	listeners map[uint64]func()
	online    atomic.Bool
	mu        stdsync.Mutex
	nextID    uint64
}

// NewMonitor creates a Monitor with the given initial state.
func NewMonitor(online bool) *Monitor {
	m := &Monitor{listeners: make(map[uint64]func())}
	m.online.Store(online)
	return m
}

// Online implements Connectivity
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Set updates the state. Listeners fire only on the offline -> online edge.
func (m *Monitor) Set(online bool) {
	was := m.online.Swap(online)
	if was || !online {
		return
	}

	m.mu.Lock()
	listeners := make([]func(), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnOnline registers fn for the became-online notification and returns a function that removes it.
func (m *Monitor) OnOnline(fn func()) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// HealthChecker проверяет доступность сервера
type HealthChecker interface {
	Health(ctx context.Context) error
}

// DefaultProbeInterval период проверки связи
const DefaultProbeInterval = 15 * time.Second

// Prober periodically checks the server and feeds the result into a Monitor.
type Prober struct {
	checker  HealthChecker
	monitor  *Monitor
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewProber creates a Prober.
func NewProber(checker HealthChecker, monitor *Monitor, interval time.Duration, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Prober{
		checker:  checker,
		monitor:  monitor,
		logger:   logger,
		interval: interval,
		timeout:  5 * time.Second,
	}
}

// Probe performs a single check and updates the monitor.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.checker.Health(ctx)
	online := err == nil
	if online != p.monitor.Online() {
		p.logger.Info("Connectivity changed", "online", online, "error", err)
	}
	p.monitor.Set(online)
	return online
}

// Run probes immediately and then every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
