package boltdb

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/models"
)

var (
	// BoltDB bucket names
	bucketRecords     = []byte("records")      // вложенный bucket на каждый тип сущности
	bucketOutbox      = []byte("outbox")       // ULID -> OutboxEntry
	bucketOutboxIndex = []byte("outbox_index") // entityType/entityID -> ULID неразрешенной записи
	bucketMetadata    = []byte("metadata")
)

// Compile-time checks
var (
	_ storage.RecordStorage   = (*Storage)(nil)
	_ storage.OutboxStorage   = (*Storage)(nil)
	_ storage.MetadataStorage = (*Storage)(nil)
	_ storage.SnapshotStorage = (*Storage)(nil)
)

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db  *bbolt.DB
	now func() time.Time
}

// Option настраивает Storage
type Option func(*Storage)

// WithClock overrides the clock used to stamp outbox entries (tests)
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	// Открываем BoltDB; таймаут не дает зависнуть, если файл заблокирован другим процессом
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(createBuckets)
}

func createBuckets(tx *bbolt.Tx) error {
	for _, name := range [][]byte{bucketOutbox, bucketOutboxIndex, bucketMetadata} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("failed to create %s bucket: %w", name, err)
		}
	}

	records, err := tx.CreateBucketIfNotExists(bucketRecords)
	if err != nil {
		return fmt.Errorf("failed to create records bucket: %w", err)
	}
	// Для каждого типа сущности своя таблица
	for _, t := range models.EntityTypes() {
		if _, err := records.CreateBucketIfNotExists([]byte(t)); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t, err)
		}
	}
	return nil
}

func (s *Storage) timestamp() time.Time {
	return s.now().UTC()
}
