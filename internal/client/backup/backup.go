// Package backup exports the local database into a snapshot document and
// restores it back.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/models"
)

var (
	// ErrRestoreNotConfirmed is returned when Restore is called without explicit confirmation
	ErrRestoreNotConfirmed = errors.New("restore replaces all local data and must be confirmed")

	// ErrUnsupportedVersion indicates a snapshot written by an incompatible format version
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

// Announcer уведомляет подписчиков о полной перезагрузке таблиц
type Announcer interface {
	PublishRestored()
}

// Service builds and restores snapshots.
type Service struct {
	tables    storage.SnapshotStorage
	announcer Announcer
	logger    *slog.Logger
	now       func() time.Time
}

// Option настраивает Service
type Option func(*Service)

// WithClock overrides the clock (tests)
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a backup service. announcer may be nil.
func NewService(tables storage.SnapshotStorage, announcer Announcer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		tables:    tables,
		announcer: announcer,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export returns a snapshot of every local table.
func (s *Service) Export(ctx context.Context) (*models.Snapshot, error) {
	data, err := s.tables.ExportTables(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{
		Version:   models.SnapshotVersion,
		Timestamp: s.now().UTC(),
		Data:      data,
	}, nil
}

// Restore clears every local table and loads the snapshot.
// It refuses to run unless confirmed is true. Returns the per-table counts loaded.
func (s *Service) Restore(ctx context.Context, snap *models.Snapshot, confirmed bool) (map[string]int, error) {
	if !confirmed {
		return nil, ErrRestoreNotConfirmed
	}
	if snap == nil {
		return nil, errors.New("snapshot is nil")
	}
	if snap.Version != models.SnapshotVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, snap.Version)
	}

	if err := s.tables.ReplaceAll(ctx, snap.Data); err != nil {
		return nil, fmt.Errorf("failed to restore snapshot: %w", err)
	}

	counts := snap.Counts()
	s.logger.Warn("Local database replaced from snapshot",
		"snapshot_time", snap.Timestamp,
		"tables", len(counts))

	if s.announcer != nil {
		s.announcer.PublishRestored()
	}
	return counts, nil
}

// Encode writes snap as indented JSON.
func Encode(w io.Writer, snap *models.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot document.
func Decode(r io.Reader) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Data == nil {
		return nil, errors.New("snapshot has no data section")
	}
	return &snap, nil
}
