package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DefaultKeep количество хранимых автоматических копий
const DefaultKeep = 5

const (
	filePrefix = "backup-"
	fileSuffix = ".json"
	// fileTimeLayout сортируется лексикографически
	fileTimeLayout = "20060102T150405.000Z"
)

// Rotator writes snapshot files into a directory and keeps only the newest ones.
type Rotator struct {
	service *Service
	logger  *slog.Logger
	dir     string
	keep    int
}

// NewRotator creates a Rotator. keep <= 0 uses DefaultKeep.
func NewRotator(service *Service, dir string, keep int, logger *slog.Logger) *Rotator {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &Rotator{service: service, logger: logger, dir: dir, keep: keep}
}

// Backup writes a new snapshot file and prunes old ones. Returns the file path.
func (r *Rotator) Backup(ctx context.Context) (string, error) {
	snap, err := r.service.Export(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	name := filePrefix + snap.Timestamp.UTC().Format(fileTimeLayout) + fileSuffix
	path := filepath.Join(r.dir, name)

	// Пишем во временный файл, чтобы оборванная запись не выглядела как копия
	tmp, err := os.CreateTemp(r.dir, ".backup-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Encode(tmp, snap); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store backup file: %w", err)
	}

	r.logger.Info("Backup written", "path", path)

	if err := r.prune(); err != nil {
		r.logger.Warn("Failed to prune old backups", "error", err)
	}
	return path, nil
}

// List returns backup file paths, newest first.
func (r *Rotator) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(r.dir, name))
	}
	slices.Sort(paths)
	slices.Reverse(paths)
	return paths, nil
}

func (r *Rotator) prune() error {
	paths, err := r.List()
	if err != nil {
		return err
	}
	if len(paths) <= r.keep {
		return nil
	}
	for _, p := range paths[r.keep:] {
		if err := os.Remove(p); err != nil {
			return err
		}
		r.logger.Debug("Old backup removed", "path", p)
	}
	return nil
}

// Run writes a backup every interval until ctx is done.
func (r *Rotator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Backup(ctx); err != nil {
				r.logger.Error("Automatic backup failed", "error", err)
			}
		}
	}
}
