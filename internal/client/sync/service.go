package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/models"
)

// Stats contains sync state for the presentation layer
type Stats struct {
	LastSyncAt time.Time
	State      State
	models.OutboxStats
	Online bool
}

// Service is the sync facade exposed to the presentation layer.
type Service struct {
	dispatcher *Dispatcher
	scheduler  *Scheduler
	monitor    *Monitor
	prober     *Prober
	outbox     storage.OutboxStorage
	metadata   storage.MetadataStorage
	logger     *slog.Logger
}

// NewService creates a sync service.
// prober may be nil; the monitor state is then driven by the caller.
func NewService(
	dispatcher *Dispatcher,
	scheduler *Scheduler,
	monitor *Monitor,
	prober *Prober,
	outbox storage.OutboxStorage,
	metadata storage.MetadataStorage,
	logger *slog.Logger,
) *Service {
	return &Service{
		dispatcher: dispatcher,
		scheduler:  scheduler,
		monitor:    monitor,
		prober:     prober,
		outbox:     outbox,
		metadata:   metadata,
		logger:     logger,
	}
}

// MaxAttempts returns the dispatcher attempt ceiling
func (s *Service) MaxAttempts() int { return s.dispatcher.MaxAttempts() }

// ForceSync requests a drain and returns immediately.
func (s *Service) ForceSync() {
	if !s.scheduler.Trigger(TriggerExplicit) {
		s.logger.Debug("Sync already requested")
	}
}

// CheckConnectivity probes the server once when a prober is configured
// and returns the resulting online state.
func (s *Service) CheckConnectivity(ctx context.Context) bool {
	if s.prober != nil {
		return s.prober.Probe(ctx)
	}
	return s.monitor.Online()
}

// SyncNow runs a drain in the caller's goroutine (CLI one-shot mode).
func (s *Service) SyncNow(ctx context.Context) (*DrainResult, error) {
	return s.dispatcher.Drain(ctx)
}

// GetPendingCount returns the number of entries still to be sent.
func (s *Service) GetPendingCount(ctx context.Context) (int, error) {
	pending, err := s.outbox.ListPending(ctx, s.dispatcher.MaxAttempts())
	if err != nil {
		return 0, fmt.Errorf("failed to count pending entries: %w", err)
	}
	return len(pending), nil
}

// GetStats returns outbox counters and connectivity.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	counters, err := s.outbox.Stats(ctx, s.dispatcher.MaxAttempts())
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox stats: %w", err)
	}

	stats := &Stats{
		OutboxStats: counters,
		State:       s.dispatcher.State(),
		Online:      s.monitor.Online(),
	}
	if s.metadata != nil {
		at, err := s.metadata.GetLastSyncTime(ctx)
		if err != nil {
			s.logger.Warn("Failed to get last sync time", "error", err)
		}
		stats.LastSyncAt = at
	}
	return stats, nil
}

// Run starts the scheduler, the connectivity prober and the became-online trigger
// and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	unsubscribe := s.monitor.OnOnline(func() {
		s.scheduler.Trigger(TriggerOnline)
	})
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.scheduler.Run(ctx)
	})
	if s.prober != nil {
		g.Go(func() error {
			return s.prober.Run(ctx)
		})
	}
	return g.Wait()
}
