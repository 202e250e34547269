package storage

import (
	"context"
	"encoding/json"
)

// SnapshotStorage defines bulk export and destructive replace of every local table.
type SnapshotStorage interface {
	// ExportTables returns every table keyed by its snapshot name
	ExportTables(ctx context.Context) (map[string][]json.RawMessage, error)

	// ReplaceAll clears every table and loads tables in a single transaction.
	// Either all tables are replaced or none is.
	ReplaceAll(ctx context.Context, tables map[string][]json.RawMessage) error
}
