// Package store is the typed Local Store: durable per-entity tables with sync
// metadata. Every committed write is announced through the event notifier.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/iudanet/credisync/internal/client/events"
	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/models"
)

// defaultPageSize сколько записей читает один шаг ленивого запроса
const defaultPageSize = 64

// Publisher принимает события о зафиксированных изменениях
type Publisher interface {
	Publish(e events.Event)
}

// Store wraps RecordStorage with typed records and change events.
type Store struct {
	records   storage.RecordStorage
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	pageSize  int
}

// Option настраивает Store
type Option func(*Store)

// WithClock overrides the clock used for lastSyncedAt
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithPageSize sets how many records each lazy query step reads
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// New creates a Store.
func New(records storage.RecordStorage, publisher Publisher, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		records:   records,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		pageSize:  defaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the record of type t with the given id.
// Returns storage.ErrRecordNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, t models.EntityType, id string) (models.Record, error) {
	stored, err := s.records.GetRecord(ctx, t, id)
	if err != nil {
		return nil, err
	}
	return decode(t, stored)
}

// Load is the typed form of Get.
func Load[T models.Record](ctx context.Context, s *Store, id string) (T, error) {
	var zero T
	rec, err := s.Get(ctx, zero.EntityType(), id)
	if err != nil {
		return zero, err
	}
	typed, ok := rec.(T)
	if !ok {
		return zero, fmt.Errorf("record %s has type %T", id, rec)
	}
	return typed, nil
}

// Exists reports whether a record is present.
func (s *Store) Exists(ctx context.Context, t models.EntityType, id string) (bool, error) {
	_, err := s.records.GetRecord(ctx, t, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrRecordNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Put upserts rec together with its sync metadata and publishes Created or Updated.
// The server version and last sync time already stored are never moved backwards.
func (s *Store) Put(ctx context.Context, rec models.Record) error {
	kind := events.Created
	err := s.update(ctx, rec.EntityType(), rec.RecordID(), func(current models.Record) (models.Record, error) {
		if current != nil {
			kind = events.Updated
			keepSyncProgress(rec.Sync(), current.Sync())
		}
		return rec, nil
	})
	if err != nil {
		return err
	}
	s.publish(rec.EntityType(), rec.RecordID(), kind)
	return nil
}

// Delete removes a record and publishes Deleted.
func (s *Store) Delete(ctx context.Context, t models.EntityType, id string) error {
	if err := s.records.DeleteRecord(ctx, t, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", t, id, err)
	}
	s.publish(t, id, events.Deleted)
	return nil
}

// MarkSynced clears pendingSync after the server confirmed the payload stamped
// sentUpdatedAt. When the record was edited after that payload was sent only the
// server version is kept and the record stays pending.
// A missing record (deleted meanwhile) is not an error.
func (s *Store) MarkSynced(ctx context.Context, t models.EntityType, id string, version int64, sentUpdatedAt time.Time) error {
	var kind events.Kind
	err := s.update(ctx, t, id, func(rec models.Record) (models.Record, error) {
		if rec == nil {
			return nil, nil
		}
		meta := rec.Sync()
		if !rec.LastUpdated().Equal(sentUpdatedAt) {
			// Новые изменения еще в очереди
			if version <= meta.RemoteVersion {
				return nil, nil
			}
			meta.RemoteVersion = version
			kind = events.Updated
			return rec, nil
		}
		meta.MarkSynced(s.now(), rec.LastUpdated(), version)
		kind = events.Synced
		return rec, nil
	})
	if err != nil {
		return err
	}
	if kind != "" {
		s.publish(t, id, kind)
	}
	return nil
}

// RecordRemoteVersion remembers the server version acknowledged for a record
// whose newer local changes are still queued. The record stays pending.
func (s *Store) RecordRemoteVersion(ctx context.Context, t models.EntityType, id string, version int64) error {
	changed := false
	err := s.update(ctx, t, id, func(rec models.Record) (models.Record, error) {
		if rec == nil || version <= rec.Sync().RemoteVersion {
			return nil, nil
		}
		rec.Sync().RemoteVersion = version
		changed = true
		return rec, nil
	})
	if err != nil {
		return err
	}
	if changed {
		s.publish(t, id, events.Updated)
	}
	return nil
}

// ApplyResolved stores the record chosen by the conflict resolver. The record
// stays pending: it still has to reach the server with the new baseline version.
func (s *Store) ApplyResolved(ctx context.Context, t models.EntityType, payload json.RawMessage, remoteVersion int64) (models.Record, error) {
	rec, err := models.DecodeRecord(t, payload)
	if err != nil {
		return nil, err
	}

	err = s.update(ctx, t, rec.RecordID(), func(current models.Record) (models.Record, error) {
		meta := rec.Sync()
		if current != nil {
			*meta = *current.Sync()
		}
		meta.MarkPending()
		if remoteVersion > meta.RemoteVersion {
			meta.RemoteVersion = remoteVersion
		}
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(t, rec.RecordID(), events.Updated)
	return rec, nil
}

// Query returns a lazy sequence of records of type t that satisfy pred (nil means all).
// Each step reads one page in its own short transaction; iteration order is id order.
// The sequence can be ranged over more than once.
func (s *Store) Query(ctx context.Context, t models.EntityType, pred func(models.Record) bool) iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		after := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			rows, err := s.records.ListRecords(ctx, t, after, s.pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(rows) == 0 {
				return
			}

			for _, row := range rows {
				rec, err := decode(t, row.Record)
				if err != nil {
					if !yield(nil, err) {
						return
					}
					continue
				}
				if pred != nil && !pred(rec) {
					continue
				}
				if !yield(rec, nil) {
					return
				}
			}

			if len(rows) < s.pageSize {
				return
			}
			after = rows[len(rows)-1].ID
		}
	}
}

// Count returns the number of records of type t.
func (s *Store) Count(ctx context.Context, t models.EntityType) (int, error) {
	return s.records.CountRecords(ctx, t)
}

// TableCounts returns the number of records in every table.
func (s *Store) TableCounts(ctx context.Context) (map[models.EntityType]int, error) {
	counts := make(map[models.EntityType]int, len(models.EntityTypes()))
	for _, t := range models.EntityTypes() {
		n, err := s.records.CountRecords(ctx, t)
		if err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, nil
}

// PublishRestored announces that every table was reloaded from a snapshot.
func (s *Store) PublishRestored() {
	for _, t := range models.EntityTypes() {
		s.publish(t, "", events.Restored)
	}
}

// update читает и записывает одну запись в одной транзакции хранилища.
// fn получает текущую запись или nil; nil в ответе оставляет таблицу без изменений.
func (s *Store) update(ctx context.Context, t models.EntityType, id string, fn func(current models.Record) (models.Record, error)) error {
	err := s.records.UpdateRecord(ctx, t, id, func(stored *models.StoredRecord) (*models.StoredRecord, error) {
		var current models.Record
		if stored != nil {
			rec, err := decode(t, stored)
			if err != nil {
				return nil, err
			}
			current = rec
		}

		next, err := fn(current)
		if err != nil || next == nil {
			return nil, err
		}
		payload, err := models.EncodePayload(next)
		if err != nil {
			return nil, err
		}
		return &models.StoredRecord{Data: payload, Meta: *next.Sync()}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to save %s %s: %w", t, id, err)
	}
	return nil
}

// keepSyncProgress не дает записи потерять уже подтвержденную версию сервера
func keepSyncProgress(meta, stored *models.SyncMeta) {
	if stored.RemoteVersion > meta.RemoteVersion {
		meta.RemoteVersion = stored.RemoteVersion
	}
	if meta.LastSyncedAt == nil {
		meta.LastSyncedAt = stored.LastSyncedAt
	}
}

func (s *Store) publish(t models.EntityType, id string, kind events.Kind) {
	if s.publisher == nil {
		return
	}
	s.logger.Debug("Local record changed", "entity_type", t, "entity_id", id, "kind", kind)
	s.publisher.Publish(events.Event{EntityType: t, EntityID: id, Kind: kind})
}

func decode(t models.EntityType, stored *models.StoredRecord) (models.Record, error) {
	rec, err := models.DecodeRecord(t, stored.Data)
	if err != nil {
		return nil, err
	}
	*rec.Sync() = stored.Meta
	return rec, nil
}
