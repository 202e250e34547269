package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"

	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/models"
)

// errEntryResolved внутренняя ошибка: операция над уже разрешенной записью
var errEntryResolved = errors.New("outbox entry already resolved")

func indexKey(t models.EntityType, entityID string) []byte {
	return []byte(string(t) + "/" + entityID)
}

func getEntry(b *bbolt.Bucket, id []byte) (*models.OutboxEntry, error) {
	data := b.Get(id)
	if data == nil {
		return nil, storage.ErrEntryNotFound
	}
	var entry models.OutboxEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outbox entry %s: %w", id, err)
	}
	return &entry, nil
}

func putEntry(b *bbolt.Bucket, entry *models.OutboxEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox entry: %w", err)
	}
	if err := b.Put([]byte(entry.ID), data); err != nil {
		return fmt.Errorf("failed to save outbox entry: %w", err)
	}
	return nil
}

// unindex снимает запись с индекса неразрешенных, если индекс указывает на нее
func unindex(tx *bbolt.Tx, entry *models.OutboxEntry) error {
	idx := tx.Bucket(bucketOutboxIndex)
	key := indexKey(entry.EntityType, entry.EntityID)
	if string(idx.Get(key)) != entry.ID {
		return nil
	}
	return idx.Delete(key)
}

// Enqueue appends a mutation, coalescing it with the unresolved entry of the same entity
func (s *Storage) Enqueue(ctx context.Context, m models.Mutation) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageClosed
	}
	if !m.Operation.IsValid() {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidOperation, m.Operation)
	}
	if !m.EntityType.IsValid() {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownEntityType, m.EntityType)
	}

	if len(m.Payload) == 0 {
		// DELETE может прийти без снимка записи
		m.Payload = nil
	}

	var outboxID string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		outbox := tx.Bucket(bucketOutbox)
		idx := tx.Bucket(bucketOutboxIndex)
		key := indexKey(m.EntityType, m.EntityID)

		var existing *models.OutboxEntry
		if id := idx.Get(key); id != nil {
			entry, err := getEntry(outbox, id)
			switch {
			case errors.Is(err, storage.ErrEntryNotFound):
				// Индекс указывает на удаленную запись: чиним
				if err := idx.Delete(key); err != nil {
					return err
				}
			case err != nil:
				return err
			case !entry.Resolved:
				existing = entry
			}
		}

		plan := models.PlanEnqueue(existing, m.Operation)
		now := s.timestamp()

		switch plan.Action {
		case models.ActionAppend:
			entry := &models.OutboxEntry{
				ID:           ulid.Make().String(),
				OwnerScopeID: m.ScopeID,
				EntityType:   m.EntityType,
				Operation:    plan.Operation,
				EntityID:     m.EntityID,
				Payload:      m.Payload,
				EnqueuedAt:   now,
				Revision:     1,
			}
			if err := putEntry(outbox, entry); err != nil {
				return err
			}
			outboxID = entry.ID
			return idx.Put(key, []byte(entry.ID))

		case models.ActionCoalesce:
			existing.Operation = plan.Operation
			if len(m.Payload) > 0 {
				existing.Payload = m.Payload
			}
			existing.Revision++
			// Новое изменение получает полный набор попыток; LastError хранит прошлую неудачу
			existing.Attempts = 0
			outboxID = existing.ID
			return putEntry(outbox, existing)

		case models.ActionDrop:
			// CREATE еще не уходил на сервер: удаляем без следа
			if err := outbox.Delete([]byte(existing.ID)); err != nil {
				return fmt.Errorf("failed to drop outbox entry: %w", err)
			}
			return idx.Delete(key)

		case models.ActionIgnore:
			outboxID = existing.ID
			return nil
		}
		return nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s %s: %w", m.Operation, m.EntityType, err)
	}

	return outboxID, nil
}

// GetEntry retrieves an entry by id
func (s *Storage) GetEntry(ctx context.Context, id string) (*models.OutboxEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entry *models.OutboxEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		entry, err = getEntry(tx.Bucket(bucketOutbox), []byte(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// FindUnresolved returns the unresolved entry for an entity
func (s *Storage) FindUnresolved(ctx context.Context, t models.EntityType, entityID string) (*models.OutboxEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entry *models.OutboxEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketOutboxIndex).Get(indexKey(t, entityID))
		if id == nil {
			return storage.ErrEntryNotFound
		}
		var err error
		entry, err = getEntry(tx.Bucket(bucketOutbox), id)
		if err != nil {
			return err
		}
		if entry.Resolved {
			return storage.ErrEntryNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListPending returns unresolved entries with attempts < maxAttempts in FIFO order
func (s *Storage) ListPending(ctx context.Context, maxAttempts int) ([]*models.OutboxEntry, error) {
	return s.listEntries(func(e *models.OutboxEntry) bool {
		return e.Pending(maxAttempts)
	})
}

// ListEntries returns every entry in FIFO order
func (s *Storage) ListEntries(ctx context.Context) ([]*models.OutboxEntry, error) {
	return s.listEntries(func(*models.OutboxEntry) bool { return true })
}

// listEntries обходит outbox в порядке ключей (ULID = порядок постановки)
func (s *Storage) listEntries(keep func(*models.OutboxEntry) bool) ([]*models.OutboxEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entries []*models.OutboxEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(k, v []byte) error {
			var entry models.OutboxEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal outbox entry %s: %w", k, err)
			}
			if keep(&entry) {
				entries = append(entries, &entry)
			}
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list outbox entries: %w", err)
	}

	return entries, nil
}

// updateEntry читает запись, применяет fn и сохраняет ее в одной транзакции
func (s *Storage) updateEntry(id string, fn func(tx *bbolt.Tx, e *models.OutboxEntry) error) (*models.OutboxEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entry *models.OutboxEntry
	err := s.db.Update(func(tx *bbolt.Tx) error {
		outbox := tx.Bucket(bucketOutbox)
		var err error
		entry, err = getEntry(outbox, []byte(id))
		if err != nil {
			return err
		}
		if err := fn(tx, entry); err != nil {
			return err
		}
		return putEntry(outbox, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// MarkSending stamps lastAttemptAt before the remote call
func (s *Storage) MarkSending(ctx context.Context, id string) (*models.OutboxEntry, error) {
	return s.updateEntry(id, func(_ *bbolt.Tx, e *models.OutboxEntry) error {
		if e.Resolved {
			return errEntryResolved
		}
		now := s.timestamp()
		e.LastAttemptAt = &now
		return nil
	})
}

// MarkResolved resolves the entry if its revision is unchanged
func (s *Storage) MarkResolved(ctx context.Context, id string, revision int) (bool, error) {
	resolved := false
	_, err := s.updateEntry(id, func(tx *bbolt.Tx, e *models.OutboxEntry) error {
		if e.Resolved {
			resolved = true
			return nil
		}
		// Payload заменен пока запрос был в пути: новая ревизия уйдет в следующий цикл.
		// CREATE уже дошел до сервера, поэтому дальше это UPDATE
		if e.Revision != revision {
			if e.Operation == models.OpCreate {
				e.Operation = models.OpUpdate
			}
			return nil
		}
		now := s.timestamp()
		e.Resolved = true
		e.ResolvedAt = &now
		e.LastError = ""
		e.NeedsReview = false
		resolved = true
		return unindex(tx, e)
	})
	if err != nil {
		return false, fmt.Errorf("failed to resolve outbox entry %s: %w", id, err)
	}
	return resolved, nil
}

// RecordFailure increments attempts and stores the error message
func (s *Storage) RecordFailure(ctx context.Context, id string, reason string) (*models.OutboxEntry, error) {
	entry, err := s.updateEntry(id, func(_ *bbolt.Tx, e *models.OutboxEntry) error {
		now := s.timestamp()
		e.Attempts++
		e.LastAttemptAt = &now
		e.LastError = reason
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record failure for outbox entry %s: %w", id, err)
	}
	return entry, nil
}

// Quarantine resolves an entry whose payload cannot be decoded
func (s *Storage) Quarantine(ctx context.Context, id string, reason string) error {
	_, err := s.updateEntry(id, func(tx *bbolt.Tx, e *models.OutboxEntry) error {
		now := s.timestamp()
		e.Resolved = true
		e.ResolvedAt = &now
		e.Quarantined = true
		e.LastError = reason
		return unindex(tx, e)
	})
	if err != nil {
		return fmt.Errorf("failed to quarantine outbox entry %s: %w", id, err)
	}
	return nil
}

// MarkNeedsReview parks the entry until an operator resolves the conflict
func (s *Storage) MarkNeedsReview(ctx context.Context, id string, reason string) error {
	_, err := s.updateEntry(id, func(_ *bbolt.Tx, e *models.OutboxEntry) error {
		if e.Resolved {
			return errEntryResolved
		}
		e.NeedsReview = true
		e.LastError = reason
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to flag outbox entry %s for review: %w", id, err)
	}
	return nil
}

// ResetAttempts re-arms an exhausted or parked entry
func (s *Storage) ResetAttempts(ctx context.Context, id string) error {
	_, err := s.updateEntry(id, func(_ *bbolt.Tx, e *models.OutboxEntry) error {
		if e.Resolved {
			return errEntryResolved
		}
		e.Attempts = 0
		e.NeedsReview = false
		e.LastError = ""
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset outbox entry %s: %w", id, err)
	}
	return nil
}

// PruneResolved deletes resolved entries resolved before olderThan
func (s *Storage) PruneResolved(ctx context.Context, olderThan time.Time) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	pruned := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		outbox := tx.Bucket(bucketOutbox)

		// Собираем ключи заранее: удалять во время ForEach нельзя
		var stale [][]byte
		err := outbox.ForEach(func(k, v []byte) error {
			var entry models.OutboxEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal outbox entry %s: %w", k, err)
			}
			if entry.Resolved && entry.ResolvedAt != nil && entry.ResolvedAt.Before(olderThan) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := outbox.Delete(k); err != nil {
				return fmt.Errorf("failed to delete outbox entry %s: %w", k, err)
			}
		}
		pruned = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune outbox: %w", err)
	}
	return pruned, nil
}

// Stats returns queue counters
func (s *Storage) Stats(ctx context.Context, maxAttempts int) (models.OutboxStats, error) {
	var stats models.OutboxStats

	entries, err := s.ListEntries(ctx)
	if err != nil {
		return stats, err
	}

	for _, e := range entries {
		switch {
		case e.Quarantined:
			stats.Quarantined++
		case e.Resolved:
			stats.Synced++
		case e.NeedsReview:
			stats.NeedsReview++
		case e.Attempts >= maxAttempts:
			stats.Failed++
		default:
			stats.Pending++
		}
	}
	return stats, nil
}
