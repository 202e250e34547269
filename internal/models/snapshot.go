package models

import (
	"encoding/json"
	"time"
)

// SnapshotVersion версия формата резервной копии
const SnapshotVersion = "1.0"

// SnapshotOutboxKey ключ таблицы очереди синхронизации внутри Snapshot.Data
const SnapshotOutboxKey = "outbox"

// StoredRecord конверт записи в локальном хранилище: бизнес-поля плюс метаданные синхронизации.
type StoredRecord struct {
	Data json.RawMessage `json:"data"`
	Meta SyncMeta        `json:"meta"`
}

// Snapshot представляет полную резервную копию локальной базы.
// Формат: {version, timestamp, data: {<entityType>: [...]}}
type Snapshot struct {
	Timestamp time.Time                    `json:"timestamp"`
	Data      map[string][]json.RawMessage `json:"data"`
	Version   string                       `json:"version"`
}

// Counts returns the number of rows per table in the snapshot.
func (s *Snapshot) Counts() map[string]int {
	counts := make(map[string]int, len(s.Data))
	for table, rows := range s.Data {
		counts[table] = len(rows)
	}
	return counts
}
