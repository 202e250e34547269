package handlers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/credisync/internal/models"
	"github.com/iudanet/credisync/internal/server/metrics"
	"github.com/iudanet/credisync/internal/server/storage"
	"github.com/iudanet/credisync/pkg/api"
)

// MaxBodyBytes ограничение размера тела запроса
const MaxBodyBytes = 1 << 20

// RecordStorage определяет интерфейс для работы с записями
type RecordStorage interface {
	GetRecord(ctx context.Context, key storage.RecordKey) (*storage.Record, error)
	InsertRecord(ctx context.Context, rec *storage.Record) error
	ReplaceRecord(ctx context.Context, rec *storage.Record, expectedVersion int64) error
}

// RecordsHandler serves the versioned record API used by the client dispatcher.
//
// CREATE is idempotent by payload fingerprint, UPDATE uses the client's base
// version for optimistic concurrency, DELETE is a soft delete and idempotent.
type RecordsHandler struct {
	logger  *slog.Logger
	storage RecordStorage
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRecordsHandler creates a new records handler
// m may be nil
func NewRecordsHandler(logger *slog.Logger, storage RecordStorage, m *metrics.Metrics) *RecordsHandler {
	return &RecordsHandler{
		logger:  logger,
		storage: storage,
		metrics: m,
		now:     time.Now,
	}
}

// outcome результат применения мутации
type outcome struct {
	record   *storage.Record
	label    string // метка исхода для метрик
	status   int
	replayed bool
}

func conflictOutcome(rec *storage.Record) outcome {
	return outcome{status: http.StatusConflict, record: rec, label: metrics.OutcomeConflict}
}

// HandleCreate обрабатывает POST /api/v1/records/{entity}
func (h *RecordsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	key, ok := h.recordKey(w, r)
	if !ok {
		return
	}
	req, payload, ok := h.decodeRequest(w, r, models.OpCreate)
	if !ok {
		return
	}
	if req.ID == "" {
		h.reject(w, key, models.OpCreate, "Record id is required")
		return
	}
	key.ID = req.ID

	h.apply(w, r, key, models.OpCreate, func(ctx context.Context) (outcome, error) {
		return h.applyCreate(ctx, key, payload)
	})
}

// HandleUpdate обрабатывает PUT /api/v1/records/{entity}/{id}
func (h *RecordsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key, ok := h.recordKey(w, r)
	if !ok {
		return
	}
	key.ID = r.PathValue("id")
	req, payload, ok := h.decodeRequest(w, r, models.OpUpdate)
	if !ok {
		return
	}

	h.apply(w, r, key, models.OpUpdate, func(ctx context.Context) (outcome, error) {
		return h.applyUpdate(ctx, key, payload, req.BaseVersion)
	})
}

// HandleDelete обрабатывает DELETE /api/v1/records/{entity}/{id}
func (h *RecordsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := h.recordKey(w, r)
	if !ok {
		return
	}
	key.ID = r.PathValue("id")

	h.apply(w, r, key, models.OpDelete, func(ctx context.Context) (outcome, error) {
		return h.applyDelete(ctx, key, true)
	})
}

// HandleGet обрабатывает GET /api/v1/records/{entity}/{id}
// Удаленная запись возвращается с deleted=true
func (h *RecordsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := h.recordKey(w, r)
	if !ok {
		return
	}
	key.ID = r.PathValue("id")

	rec, err := h.storage.GetRecord(r.Context(), key)
	if errors.Is(err, storage.ErrRecordNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Record not found", "")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get record", "error", err, "entity_type", key.EntityType, "entity_id", key.ID)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, envelope(rec))
}

// recordKey извлекает scope и тип сущности из запроса
func (h *RecordsHandler) recordKey(w http.ResponseWriter, r *http.Request) (storage.RecordKey, bool) {
	scope := r.Header.Get(api.ScopeHeader)
	if scope == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Missing "+api.ScopeHeader+" header", "")
		return storage.RecordKey{}, false
	}

	t := models.EntityType(r.PathValue("entity"))
	if !t.IsValid() {
		writeError(w, h.logger, http.StatusNotFound, "Unknown entity type", string(t))
		return storage.RecordKey{}, false
	}

	return storage.RecordKey{ScopeID: scope, EntityType: t}, true
}

// decodeRequest читает тело запроса и нормализует payload
func (h *RecordsHandler) decodeRequest(w http.ResponseWriter, r *http.Request, op models.Operation) (api.RecordRequest, json.RawMessage, bool) {
	var req api.RecordRequest

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode record request", "error", err)
		h.observe(models.EntityType(r.PathValue("entity")), op, metrics.OutcomeRejected, 0)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body", "")
		return req, nil, false
	}

	var compact bytes.Buffer
	if len(req.Payload) == 0 || json.Compact(&compact, req.Payload) != nil || compact.Bytes()[0] != '{' {
		h.observe(models.EntityType(r.PathValue("entity")), op, metrics.OutcomeRejected, 0)
		writeError(w, h.logger, http.StatusBadRequest, "Payload must be a JSON object", "")
		return req, nil, false
	}

	return req, compact.Bytes(), true
}

func (h *RecordsHandler) reject(w http.ResponseWriter, key storage.RecordKey, op models.Operation, msg string) {
	h.observe(key.EntityType, op, metrics.OutcomeRejected, 0)
	writeError(w, h.logger, http.StatusBadRequest, msg, "")
}

// apply выполняет мутацию и пишет ответ
func (h *RecordsHandler) apply(w http.ResponseWriter, r *http.Request, key storage.RecordKey, op models.Operation, fn func(ctx context.Context) (outcome, error)) {
	start := h.now()
	res, err := fn(r.Context())
	elapsed := h.now().Sub(start)

	if err != nil {
		h.observe(key.EntityType, op, metrics.OutcomeError, elapsed)
		h.logger.Error("Failed to apply mutation",
			"error", err,
			"operation", op,
			"entity_type", key.EntityType,
			"entity_id", key.ID,
			"scope_id", key.ScopeID)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	h.observe(key.EntityType, op, res.label, elapsed)

	log := h.logger.With(
		"operation", op,
		"entity_type", key.EntityType,
		"entity_id", key.ID,
		"outcome", res.label)

	if res.status == http.StatusConflict {
		log.Info("Mutation conflicts with server state", "version", res.record.Version, "deleted", res.record.Deleted)
		writeJSON(w, h.logger, http.StatusConflict, api.ConflictResponse{
			Error:   "record changed on server",
			Current: envelope(res.record),
		})
		return
	}

	log.Debug("Mutation applied", "version", res.record.Version)
	writeJSON(w, h.logger, res.status, api.RecordResponse{
		ID:        key.ID,
		Version:   res.record.Version,
		UpdatedAt: res.record.UpdatedAt,
		Replayed:  res.replayed,
	})
}

func (h *RecordsHandler) observe(t models.EntityType, op models.Operation, label string, elapsed time.Duration) {
	if h.metrics != nil {
		h.metrics.ObserveMutation(string(t), string(op), label, elapsed)
	}
}

// applyCreate создает запись. Повтор с тем же payload подтверждается без изменений,
// другой payload под тем же id является конфликтом. CREATE поверх удаленной записи восстанавливает ее.
func (h *RecordsHandler) applyCreate(ctx context.Context, key storage.RecordKey, payload json.RawMessage) (outcome, error) {
	sum := checksum(payload)

	existing, err := h.storage.GetRecord(ctx, key)
	if errors.Is(err, storage.ErrRecordNotFound) {
		rec := h.newRecord(key, payload, sum)
		err = h.storage.InsertRecord(ctx, rec)
		if err == nil {
			return outcome{status: http.StatusCreated, record: rec, label: metrics.OutcomeCreated}, nil
		}
		if !errors.Is(err, storage.ErrRecordExists) {
			return outcome{}, err
		}
		// Параллельный CREATE успел раньше
		existing, err = h.storage.GetRecord(ctx, key)
	}
	if err != nil {
		return outcome{}, err
	}

	switch {
	case existing.Deleted:
		return h.replace(ctx, existing, payload, sum, false, http.StatusCreated, metrics.OutcomeCreated)
	case existing.Checksum == sum:
		return outcome{status: http.StatusOK, record: existing, label: metrics.OutcomeReplayed, replayed: true}, nil
	default:
		return conflictOutcome(existing), nil
	}
}

// applyUpdate заменяет запись, если клиент отталкивался от текущей версии.
// UPDATE записи, которой нет на сервере, создает ее.
func (h *RecordsHandler) applyUpdate(ctx context.Context, key storage.RecordKey, payload json.RawMessage, baseVersion int64) (outcome, error) {
	sum := checksum(payload)

	existing, err := h.storage.GetRecord(ctx, key)
	if errors.Is(err, storage.ErrRecordNotFound) {
		rec := h.newRecord(key, payload, sum)
		err = h.storage.InsertRecord(ctx, rec)
		if err == nil {
			return outcome{status: http.StatusOK, record: rec, label: metrics.OutcomeCreated}, nil
		}
		if !errors.Is(err, storage.ErrRecordExists) {
			return outcome{}, err
		}
		existing, err = h.storage.GetRecord(ctx, key)
	}
	if err != nil {
		return outcome{}, err
	}

	switch {
	case !existing.Deleted && existing.Checksum == sum:
		// Повтор после потерянного ответа: состояние уже применено
		return outcome{status: http.StatusOK, record: existing, label: metrics.OutcomeReplayed, replayed: true}, nil
	case existing.Version != baseVersion:
		return conflictOutcome(existing), nil
	default:
		return h.replace(ctx, existing, payload, sum, false, http.StatusOK, metrics.OutcomeUpdated)
	}
}

// applyDelete помечает запись удаленной. Удаление отсутствующей или уже
// удаленной записи подтверждается.
func (h *RecordsHandler) applyDelete(ctx context.Context, key storage.RecordKey, retry bool) (outcome, error) {
	existing, err := h.storage.GetRecord(ctx, key)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return outcome{status: http.StatusOK, record: &storage.Record{RecordKey: key}, label: metrics.OutcomeReplayed, replayed: true}, nil
	}
	if err != nil {
		return outcome{}, err
	}
	if existing.Deleted {
		return outcome{status: http.StatusOK, record: existing, label: metrics.OutcomeReplayed, replayed: true}, nil
	}

	res, err := h.replace(ctx, existing, existing.Payload, existing.Checksum, true, http.StatusOK, metrics.OutcomeDeleted)
	if err != nil {
		return outcome{}, err
	}
	if res.status == http.StatusConflict {
		// Запись изменилась между чтением и записью: пробуем еще раз по свежей версии
		if !retry {
			return outcome{}, fmt.Errorf("record %s %s keeps changing: %w", key.EntityType, key.ID, storage.ErrVersionMismatch)
		}
		return h.applyDelete(ctx, key, false)
	}
	return res, nil
}

// replace записывает следующую версию поверх existing
func (h *RecordsHandler) replace(ctx context.Context, existing *storage.Record, payload json.RawMessage, sum string, deleted bool, status int, label string) (outcome, error) {
	next := *existing
	next.Payload = payload
	next.Checksum = sum
	next.Deleted = deleted
	next.Version = existing.Version + 1
	next.UpdatedAt = h.now().UTC()

	err := h.storage.ReplaceRecord(ctx, &next, existing.Version)
	if errors.Is(err, storage.ErrVersionMismatch) {
		current, err := h.storage.GetRecord(ctx, existing.RecordKey)
		if err != nil {
			return outcome{}, err
		}
		return conflictOutcome(current), nil
	}
	if err != nil {
		return outcome{}, err
	}

	return outcome{status: status, record: &next, label: label}, nil
}

func (h *RecordsHandler) newRecord(key storage.RecordKey, payload json.RawMessage, sum string) *storage.Record {
	now := h.now().UTC()
	return &storage.Record{
		RecordKey: key,
		Payload:   payload,
		Checksum:  sum,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// checksum отпечаток payload в компактной форме
func checksum(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func envelope(rec *storage.Record) api.RecordEnvelope {
	env := api.RecordEnvelope{
		ID:         rec.ID,
		EntityType: string(rec.EntityType),
		Version:    rec.Version,
		Deleted:    rec.Deleted,
		UpdatedAt:  rec.UpdatedAt,
	}
	if !rec.Deleted {
		env.Payload = rec.Payload
	}
	return env
}
