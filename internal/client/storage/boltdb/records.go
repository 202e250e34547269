package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/models"
)

// tableBucket возвращает bucket таблицы сущности
func tableBucket(tx *bbolt.Tx, t models.EntityType) (*bbolt.Bucket, error) {
	records := tx.Bucket(bucketRecords)
	if records == nil {
		return nil, fmt.Errorf("records bucket not found")
	}
	table := records.Bucket([]byte(t))
	if table == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownEntityType, t)
	}
	return table, nil
}

// PutRecord inserts or replaces a record
func (s *Storage) PutRecord(ctx context.Context, t models.EntityType, id string, rec *models.StoredRecord) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	// Сериализуем запись в JSON
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", t, err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		table, err := tableBucket(tx, t)
		if err != nil {
			return err
		}
		if err := table.Put([]byte(id), data); err != nil {
			return fmt.Errorf("failed to save %s record: %w", t, err)
		}
		return nil
	})
}

// GetRecord retrieves a record by id
func (s *Storage) GetRecord(ctx context.Context, t models.EntityType, id string) (*models.StoredRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var rec *models.StoredRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		table, err := tableBucket(tx, t)
		if err != nil {
			return err
		}

		data := table.Get([]byte(id))
		if data == nil {
			return storage.ErrRecordNotFound
		}

		rec = &models.StoredRecord{}
		if err := json.Unmarshal(data, rec); err != nil {
			return fmt.Errorf("failed to unmarshal %s record: %w", t, err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return rec, nil
}

// UpdateRecord applies fn to the current record inside one write transaction
func (s *Storage) UpdateRecord(ctx context.Context, t models.EntityType, id string, fn func(current *models.StoredRecord) (*models.StoredRecord, error)) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		table, err := tableBucket(tx, t)
		if err != nil {
			return err
		}

		var current *models.StoredRecord
		if data := table.Get([]byte(id)); data != nil {
			current = &models.StoredRecord{}
			if err := json.Unmarshal(data, current); err != nil {
				return fmt.Errorf("failed to unmarshal %s record: %w", t, err)
			}
		}

		next, err := fn(current)
		if err != nil || next == nil {
			return err
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal %s record: %w", t, err)
		}
		if err := table.Put([]byte(id), data); err != nil {
			return fmt.Errorf("failed to save %s record: %w", t, err)
		}
		return nil
	})
}

// DeleteRecord removes a record
func (s *Storage) DeleteRecord(ctx context.Context, t models.EntityType, id string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		table, err := tableBucket(tx, t)
		if err != nil {
			return err
		}
		// Удаление отсутствующего ключа в bbolt не является ошибкой
		if err := table.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete %s record: %w", t, err)
		}
		return nil
	})
}

// ListRecords returns up to limit records with ids greater than after
func (s *Storage) ListRecords(ctx context.Context, t models.EntityType, after string, limit int) ([]storage.RecordRow, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var rows []storage.RecordRow

	err := s.db.View(func(tx *bbolt.Tx) error {
		table, err := tableBucket(tx, t)
		if err != nil {
			return err
		}

		c := table.Cursor()
		k, v := c.First()
		if after != "" {
			// Seek ставит курсор на первый ключ >= after, сам after пропускаем
			k, v = c.Seek([]byte(after))
			if k != nil && bytes.Equal(k, []byte(after)) {
				k, v = c.Next()
			}
		}

		for ; k != nil && (limit <= 0 || len(rows) < limit); k, v = c.Next() {
			var rec models.StoredRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal %s record %s: %w", t, k, err)
			}
			rows = append(rows, storage.RecordRow{ID: string(k), Record: &rec})
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", t, err)
	}

	return rows, nil
}

// CountRecords returns the number of records in the table
func (s *Storage) CountRecords(ctx context.Context, t models.EntityType) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		table, err := tableBucket(tx, t)
		if err != nil {
			return err
		}
		n = table.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", t, err)
	}
	return n, nil
}
