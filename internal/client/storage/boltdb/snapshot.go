package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/models"
)

// ExportTables returns every entity table plus the outbox, keyed by snapshot table name
func (s *Storage) ExportTables(ctx context.Context) (map[string][]json.RawMessage, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	tables := make(map[string][]json.RawMessage)

	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, t := range models.EntityTypes() {
			table, err := tableBucket(tx, t)
			if err != nil {
				return err
			}
			rows := make([]json.RawMessage, 0, table.Stats().KeyN)
			if err := table.ForEach(func(_, v []byte) error {
				rows = append(rows, append(json.RawMessage(nil), v...))
				return nil
			}); err != nil {
				return err
			}
			tables[string(t)] = rows
		}

		rows := []json.RawMessage{}
		if err := tx.Bucket(bucketOutbox).ForEach(func(_, v []byte) error {
			rows = append(rows, append(json.RawMessage(nil), v...))
			return nil
		}); err != nil {
			return err
		}
		tables[models.SnapshotOutboxKey] = rows
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to export tables: %w", err)
	}

	return tables, nil
}

// snapshotRow минимальный набор полей строки снимка для построения ключа
type snapshotRow struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ReplaceAll clears every table and loads tables in a single transaction
func (s *Storage) ReplaceAll(ctx context.Context, tables map[string][]json.RawMessage) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	for name := range tables {
		if name == models.SnapshotOutboxKey {
			continue
		}
		if !models.EntityType(name).IsValid() {
			return fmt.Errorf("%w: %q", storage.ErrUnknownTable, name)
		}
	}

	// Любая ошибка внутри Update откатывает транзакцию целиком
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketOutbox, bucketOutboxIndex} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return fmt.Errorf("failed to clear %s: %w", name, err)
			}
		}
		if err := createBuckets(tx); err != nil {
			return err
		}

		for _, t := range models.EntityTypes() {
			table, err := tableBucket(tx, t)
			if err != nil {
				return err
			}
			for i, raw := range tables[string(t)] {
				var row snapshotRow
				if err := json.Unmarshal(raw, &row); err != nil {
					return fmt.Errorf("%s row %d: %w", t, i, err)
				}
				if row.Data.ID == "" {
					return fmt.Errorf("%s row %d: missing id", t, i)
				}
				if table.Get([]byte(row.Data.ID)) != nil {
					return fmt.Errorf("%s row %d: duplicate id %s", t, i, row.Data.ID)
				}
				if err := table.Put([]byte(row.Data.ID), raw); err != nil {
					return fmt.Errorf("%s row %d: %w", t, i, err)
				}
			}
		}

		outbox := tx.Bucket(bucketOutbox)
		idx := tx.Bucket(bucketOutboxIndex)
		for i, raw := range tables[models.SnapshotOutboxKey] {
			var entry models.OutboxEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("outbox row %d: %w", i, err)
			}
			if entry.ID == "" {
				return fmt.Errorf("outbox row %d: missing id", i)
			}
			if err := putEntry(outbox, &entry); err != nil {
				return err
			}
			if !entry.Resolved {
				if err := idx.Put(indexKey(entry.EntityType, entry.EntityID), []byte(entry.ID)); err != nil {
					return err
				}
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	return nil
}
