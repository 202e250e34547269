package models

import (
	"encoding/json"
	"time"
)

// Operation тип мутации, ожидающей отправки на сервер
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// IsValid reports whether op is CREATE, UPDATE or DELETE.
func (op Operation) IsValid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Mutation описывает локальное изменение, которое нужно поставить в очередь синхронизации.
type Mutation struct {
	ScopeID    string          // ScopeID идентификатор компании-владельца
	EntityType EntityType      // EntityType тип сущности
	Operation  Operation       // Operation CREATE / UPDATE / DELETE
	EntityID   string          // EntityID идентификатор записи
	Payload    json.RawMessage // Payload снимок записи на момент постановки в очередь
}

// OutboxEntry представляет одну запись очереди синхронизации (outbox).
type OutboxEntry struct {
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	ID            string          `json:"id"` // ID ULID, лексикографический порядок совпадает с порядком постановки
	OwnerScopeID  string          `json:"owner_scope_id"`
	EntityType    EntityType      `json:"entity_type"`
	Operation     Operation       `json:"operation"`
	EntityID      string          `json:"entity_id"`
	LastError     string          `json:"last_error,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
	Revision      int             `json:"revision"` // Revision увеличивается при каждом слиянии payload
	Resolved      bool            `json:"resolved"`
	Quarantined   bool            `json:"quarantined,omitempty"`  // Quarantined payload не десериализуется, запись закрыта с ошибкой
	NeedsReview   bool            `json:"needs_review,omitempty"` // NeedsReview конфликт требует ручного разрешения
}

// Exhausted reports whether the entry reached the attempt ceiling without being resolved.
func (e *OutboxEntry) Exhausted(maxAttempts int) bool {
	return !e.Resolved && e.Attempts >= maxAttempts
}

// Pending reports whether the dispatcher should still try this entry.
func (e *OutboxEntry) Pending(maxAttempts int) bool {
	return !e.Resolved && !e.NeedsReview && e.Attempts < maxAttempts
}

// EnqueueAction результат применения правил слияния к новой мутации
type EnqueueAction int

const (
	// ActionAppend добавить новую запись в очередь
	ActionAppend EnqueueAction = iota
	// ActionCoalesce заменить payload существующей записи (и, возможно, ее операцию)
	ActionCoalesce
	// ActionDrop удалить существующую запись, новая не добавляется
	ActionDrop
	// ActionIgnore оставить существующую запись без изменений
	ActionIgnore
)

// EnqueuePlan описывает, что делать с новой мутацией при наличии неразрешенной записи для той же сущности.
type EnqueuePlan struct {
	Action    EnqueueAction
	Operation Operation // Operation итоговая операция при ActionAppend/ActionCoalesce
}

// PlanEnqueue applies the coalescing rules to an incoming mutation.
// existing is the unresolved entry for the same entity, or nil.
//
// Rules:
//   - UPDATE over CREATE/UPDATE keeps the existing tag and replaces the payload.
//   - DELETE over a CREATE that was never sent removes the entry: the record never reached the server.
//   - DELETE over an attempted CREATE or an UPDATE turns the entry into DELETE.
//   - DELETE dominates: UPDATE or CREATE arriving over a pending DELETE never resurrect a CREATE;
//     an UPDATE is ignored, a CREATE (same id re-created) becomes UPDATE.
func PlanEnqueue(existing *OutboxEntry, op Operation) EnqueuePlan {
	if existing == nil {
		return EnqueuePlan{Action: ActionAppend, Operation: op}
	}

	switch op {
	case OpCreate, OpUpdate:
		switch existing.Operation {
		case OpDelete:
			if op == OpCreate {
				return EnqueuePlan{Action: ActionCoalesce, Operation: OpUpdate}
			}
			return EnqueuePlan{Action: ActionIgnore, Operation: OpDelete}
		default:
			return EnqueuePlan{Action: ActionCoalesce, Operation: existing.Operation}
		}
	case OpDelete:
		if existing.Operation == OpCreate && existing.LastAttemptAt == nil {
			return EnqueuePlan{Action: ActionDrop}
		}
		return EnqueuePlan{Action: ActionCoalesce, Operation: OpDelete}
	}

	return EnqueuePlan{Action: ActionAppend, Operation: op}
}

// OutboxStats счетчики состояния очереди
type OutboxStats struct {
	Pending     int `json:"pending"`      // Pending ожидают отправки (attempts < max)
	Failed      int `json:"failed"`       // Failed достигли лимита попыток
	NeedsReview int `json:"needs_review"` // NeedsReview ждут ручного разрешения конфликта
	Synced      int `json:"synced"`       // Synced успешно отправлены
	Quarantined int `json:"quarantined"`  // Quarantined закрыты из-за поврежденного payload
}
