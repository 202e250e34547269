package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType идентифицирует таблицу бизнес-сущностей (client, credit, ...)
type EntityType string

// Типы бизнес-сущностей, которые живут в локальном хранилище и синхронизируются с сервером
const (
	EntityClient      EntityType = "client"
	EntityCredit      EntityType = "credit"
	EntityInstallment EntityType = "installment"
	EntityPayment     EntityType = "payment"
	EntityRoute       EntityType = "route"
	EntityProduct     EntityType = "product"
)

// EntityTypes returns every known entity type in a stable order.
// Routes and products come first so a restore of a snapshot loads referenced tables before their dependents.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityRoute,
		EntityProduct,
		EntityClient,
		EntityCredit,
		EntityInstallment,
		EntityPayment,
	}
}

// IsValid reports whether t is one of the known entity types.
func (t EntityType) IsValid() bool {
	_, ok := constructors[t]
	return ok
}

// String implements fmt.Stringer
func (t EntityType) String() string {
	return string(t)
}

// SyncMeta содержит атрибуты синхронизации записи.
// Хранится рядом с бизнес-полями, но не входит в payload, отправляемый на сервер.
type SyncMeta struct {
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"` // LastSyncedAt время последнего подтверждения сервером
	RemoteVersion int64      `json:"remote_version,omitempty"` // RemoteVersion версия записи на сервере при последней синхронизации
	PendingSync   bool       `json:"pending_sync"`             // PendingSync true, если локальные изменения еще не подтверждены
}

// MarkPending помечает запись как ожидающую синхронизации
func (m *SyncMeta) MarkPending() {
	m.PendingSync = true
}

// MarkSynced records a confirmed sync. The stored timestamp is never older than updatedAt,
// so a record with PendingSync == false always satisfies LastSyncedAt >= UpdatedAt.
func (m *SyncMeta) MarkSynced(at, updatedAt time.Time, version int64) {
	if at.Before(updatedAt) {
		at = updatedAt
	}
	at = at.UTC()
	m.PendingSync = false
	m.LastSyncedAt = &at
	if version > 0 {
		m.RemoteVersion = version
	}
}

// Record is the capability every business entity implements so it can be stored,
// enqueued, resolved and replayed without switching on the entity name.
type Record interface {
	// EntityType returns the table the record belongs to
	EntityType() EntityType
	// RecordID returns the client-generated unique id
	RecordID() string
	// SetRecordID assigns the id (used when a new record has none yet)
	SetRecordID(id string)
	// Scope returns the owner scope (company) id
	Scope() string
	// Touch sets CreatedAt on first write and UpdatedAt on every write
	Touch(now time.Time)
	// LastUpdated returns UpdatedAt
	LastUpdated() time.Time
	// Sync exposes the synchronization attributes for in-place updates
	Sync() *SyncMeta
}

// Base содержит поля, общие для всех бизнес-сущностей.
type Base struct {
	CreatedAt    time.Time `json:"createdAt"`                        // CreatedAt время создания записи
	UpdatedAt    time.Time `json:"updatedAt"`                        // UpdatedAt время последнего локального изменения
	ID           string    `json:"id"`                               // ID клиентский идентификатор (UUID)
	OwnerScopeID string    `json:"ownerScopeId" validate:"required"` // OwnerScopeID идентификатор компании-владельца
	SyncMeta     `json:"-"`
}

// RecordID implements Record
func (b *Base) RecordID() string { return b.ID }

// SetRecordID implements Record
func (b *Base) SetRecordID(id string) { b.ID = id }

// Scope implements Record
func (b *Base) Scope() string { return b.OwnerScopeID }

// LastUpdated implements Record
func (b *Base) LastUpdated() time.Time { return b.UpdatedAt }

// Sync implements Record
func (b *Base) Sync() *SyncMeta { return &b.SyncMeta }

// Touch implements Record
func (b *Base) Touch(now time.Time) {
	now = now.UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// constructors реестр фабрик записей по типу сущности
var constructors = map[EntityType]func() Record{
	EntityClient:      func() Record { return &Client{} },
	EntityCredit:      func() Record { return &Credit{} },
	EntityInstallment: func() Record { return &Installment{} },
	EntityPayment:     func() Record { return &Payment{} },
	EntityRoute:       func() Record { return &Route{} },
	EntityProduct:     func() Record { return &Product{} },
}

// NewRecord returns an empty record of the given type.
func NewRecord(t EntityType) (Record, error) {
	ctor, ok := constructors[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
	}
	return ctor(), nil
}

// DecodeRecord unmarshals a business payload into a typed record.
func DecodeRecord(t EntityType, payload []byte) (Record, error) {
	rec, err := NewRecord(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return rec, nil
}

// EncodePayload serializes the business fields of a record (sync attributes excluded).
func EncodePayload(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", rec.EntityType(), err)
	}
	return data, nil
}

// PayloadUpdatedAt extracts "updatedAt" from a serialized payload without knowing its type.
// Returns the zero time when the field is missing or unparsable.
func PayloadUpdatedAt(payload []byte) time.Time {
	var head struct {
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return time.Time{}
	}
	return head.UpdatedAt
}
