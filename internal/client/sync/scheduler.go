package sync

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval период автоматической синхронизации
const DefaultInterval = 30 * time.Second

// Trigger причина запуска цикла синхронизации
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerTimer    Trigger = "timer"
	TriggerOnline   Trigger = "online"
	TriggerExplicit Trigger = "explicit"
)

// Drainer runs one drain cycle
type Drainer interface {
	Drain(ctx context.Context) (*DrainResult, error)
}

// Scheduler feeds timer, connectivity and explicit triggers into a single consumer.
// Triggers arriving while one is already queued collapse into it.
type Scheduler struct {
	drainer  Drainer
	logger   *slog.Logger
	triggers chan Trigger
	onResult func(Trigger, *DrainResult, error)
	interval time.Duration
}

// NewScheduler creates a Scheduler. interval <= 0 uses DefaultInterval.
func NewScheduler(drainer Drainer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		drainer:  drainer,
		logger:   logger,
		triggers: make(chan Trigger, 1),
		interval: interval,
	}
}

// OnResult registers a callback invoked after every drain (observability, tests).
// Must be called before Run.
func (s *Scheduler) OnResult(fn func(Trigger, *DrainResult, error)) {
	s.onResult = fn
}

// Trigger requests a drain without blocking. Returns false when a request is already queued.
func (s *Scheduler) Trigger(reason Trigger) bool {
	select {
	case s.triggers <- reason:
		return true
	default:
		return false
	}
}

// Run consumes triggers until ctx is done. A drain is requested at start.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Trigger(TriggerStartup)
	s.logger.Info("Sync scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sync scheduler stopped")
			return nil
		case <-ticker.C:
			s.Trigger(TriggerTimer)
		case reason := <-s.triggers:
			result, err := s.drainer.Drain(ctx)
			if err != nil {
				s.logger.Error("Drain failed", "trigger", reason, "error", err)
			}
			if s.onResult != nil {
				s.onResult(reason, result, err)
			}
		}
	}
}
