package storage

import (
	"context"
	"time"
)

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveLastSyncTime saves the time of the last drain that reached the server
	SaveLastSyncTime(ctx context.Context, at time.Time) error

	// GetLastSyncTime retrieves the time of the last successful drain
	// Returns the zero time if no sync has been performed yet
	GetLastSyncTime(ctx context.Context) (time.Time, error)
}
