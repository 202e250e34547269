package api

import (
	"encoding/json"
	"time"
)

// ScopeHeader заголовок с идентификатором компании-владельца записей
const ScopeHeader = "X-Owner-Scope"

// RecordRequest тело запроса на создание или изменение записи
type RecordRequest struct {
	ID          string          `json:"id,omitempty"`           // клиентский идентификатор записи (только при создании)
	Payload     json.RawMessage `json:"payload"`                // бизнес-поля записи
	BaseVersion int64           `json:"base_version,omitempty"` // версия сервера, от которой отталкивалось изменение
}

// RecordResponse подтверждение сервера
type RecordResponse struct {
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Version   int64     `json:"version"`            // текущая версия записи на сервере
	Replayed  bool      `json:"replayed,omitempty"` // повторный запрос, запись уже была в этом состоянии
}

// RecordEnvelope запись в том виде, в каком ее хранит сервер
type RecordEnvelope struct {
	UpdatedAt  time.Time       `json:"updated_at"`
	ID         string          `json:"id"`
	EntityType string          `json:"entity_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Version    int64           `json:"version"`
	Deleted    bool            `json:"deleted"`
}

// ConflictResponse ответ 409: состояние на сервере разошлось с базовой версией клиента
type ConflictResponse struct {
	Error   string         `json:"error"`
	Current RecordEnvelope `json:"current"`
}

// HealthResponse ответ health-check
type HealthResponse struct {
	Status string `json:"status"`
	Time   int64  `json:"time"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
