package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/credisync/internal/client/storage"
)

const (
	keyLastSyncTime = "last_sync_time"
)

// SaveLastSyncTime saves the time of the last successful drain
func (s *Storage) SaveLastSyncTime(ctx context.Context, at time.Time) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		// Храним unix-время в миллисекундах, big-endian
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(at.UnixMilli()))

		if err := bucket.Put([]byte(keyLastSyncTime), buf); err != nil {
			return fmt.Errorf("failed to save last sync time: %w", err)
		}

		return nil
	})
}

// GetLastSyncTime retrieves the time of the last successful drain
// Returns the zero time if no sync has been performed yet
func (s *Storage) GetLastSyncTime(ctx context.Context) (time.Time, error) {
	if s.db == nil {
		return time.Time{}, storage.ErrStorageClosed
	}

	var at time.Time

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		buf := bucket.Get([]byte(keyLastSyncTime))
		if buf == nil {
			// Синхронизации еще не было
			return nil
		}

		at = time.UnixMilli(int64(binary.BigEndian.Uint64(buf))).UTC()
		return nil
	})

	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}

	return at, nil
}
