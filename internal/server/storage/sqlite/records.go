package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/credisync/internal/server/storage"
)

// GetRecord retrieves a record by key, soft-deleted records included
// Returns ErrRecordNotFound if record doesn't exist
func (s *Storage) GetRecord(ctx context.Context, key storage.RecordKey) (*storage.Record, error) {
	query := `
		SELECT payload, checksum, version, deleted, created_at, updated_at
		FROM records
		WHERE scope_id = ? AND entity_type = ? AND id = ?
	`

	rec := &storage.Record{RecordKey: key}
	var payload []byte
	var deleted int
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, key.ScopeID, string(key.EntityType), key.ID).Scan(
		&payload,
		&rec.Checksum,
		&rec.Version,
		&deleted,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	if len(payload) > 0 {
		rec.Payload = payload
	}
	rec.Deleted = intToBool(deleted)
	rec.CreatedAt = unixMilliToTime(createdAt)
	rec.UpdatedAt = unixMilliToTime(updatedAt)

	return rec, nil
}

// InsertRecord stores a new record
// Returns ErrRecordExists if the key is taken
func (s *Storage) InsertRecord(ctx context.Context, rec *storage.Record) error {
	query := `
		INSERT INTO records (
			scope_id, entity_type, id, payload, checksum,
			version, deleted, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope_id, entity_type, id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		rec.ScopeID,
		string(rec.EntityType),
		rec.ID,
		[]byte(rec.Payload),
		rec.Checksum,
		rec.Version,
		boolToInt(rec.Deleted),
		rec.CreatedAt.UnixMilli(),
		rec.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrRecordExists
	}

	return nil
}

// ReplaceRecord overwrites payload, version and deleted flag when the stored
// version equals expectedVersion
// Returns ErrVersionMismatch otherwise
func (s *Storage) ReplaceRecord(ctx context.Context, rec *storage.Record, expectedVersion int64) error {
	query := `
		UPDATE records
		SET payload = ?, checksum = ?, version = ?, deleted = ?, updated_at = ?
		WHERE scope_id = ? AND entity_type = ? AND id = ? AND version = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		[]byte(rec.Payload),
		rec.Checksum,
		rec.Version,
		boolToInt(rec.Deleted),
		rec.UpdatedAt.UnixMilli(),
		rec.ScopeID,
		string(rec.EntityType),
		rec.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrVersionMismatch
	}

	return nil
}

// Helper functions for bool/int conversion
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

func unixMilliToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
