package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iudanet/credisync/internal/models"
)

// RecordKey identifies a record: the same client id may exist in different scopes.
type RecordKey struct {
	ScopeID    string
	EntityType models.EntityType
	ID         string
}

// Record представляет запись в том виде, в каком ее хранит сервер
type Record struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	RecordKey
	Checksum string          // отпечаток payload для распознавания повторного CREATE
	Payload  json.RawMessage // последнее состояние; у удаленной записи сохраняется
	Version  int64           // увеличивается при каждом изменении, начиная с 1
	Deleted  bool            // soft delete
}

// RecordStorage defines interface for versioned record persistence
type RecordStorage interface {
	// GetRecord returns the record including soft-deleted ones
	// Returns ErrRecordNotFound if record was never created
	GetRecord(ctx context.Context, key RecordKey) (*Record, error)

	// InsertRecord stores a new record
	// Returns ErrRecordExists if a record with this key exists (deleted or not)
	InsertRecord(ctx context.Context, rec *Record) error

	// ReplaceRecord overwrites the record if its stored version equals expectedVersion
	// Returns ErrVersionMismatch otherwise
	ReplaceRecord(ctx context.Context, rec *Record, expectedVersion int64) error

	// Ping checks that the storage is reachable
	Ping(ctx context.Context) error
}
