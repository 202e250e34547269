package storage

import (
	"context"

	"github.com/iudanet/credisync/internal/models"
)

// RecordRow запись таблицы вместе с ключом
type RecordRow struct {
	Record *models.StoredRecord
	ID     string
}

// RecordStorage defines interface for the per-entity record tables on the device.
// Each call is atomic with respect to other calls on the same key.
type RecordStorage interface {
	// PutRecord inserts or replaces a record (upsert, idempotent)
	PutRecord(ctx context.Context, t models.EntityType, id string, rec *models.StoredRecord) error

	// GetRecord retrieves a record by id
	// Returns ErrRecordNotFound if record doesn't exist
	GetRecord(ctx context.Context, t models.EntityType, id string) (*models.StoredRecord, error)

	// UpdateRecord reads and rewrites one record in a single transaction.
	// fn receives the current record, or nil when there is none; returning nil leaves the table unchanged
	UpdateRecord(ctx context.Context, t models.EntityType, id string, fn func(current *models.StoredRecord) (*models.StoredRecord, error)) error

	// DeleteRecord removes a record; deleting a missing record is not an error
	DeleteRecord(ctx context.Context, t models.EntityType, id string) error

	// ListRecords returns up to limit records with ids strictly greater than after, in key order
	// Used for paging lazy queries without holding a transaction open
	ListRecords(ctx context.Context, t models.EntityType, after string, limit int) ([]RecordRow, error)

	// CountRecords returns the number of records in the table
	CountRecords(ctx context.Context, t models.EntityType) (int, error)
}
