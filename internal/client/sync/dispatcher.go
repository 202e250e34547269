package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/iudanet/credisync/internal/client/api"
	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/conflict"
	"github.com/iudanet/credisync/internal/models"
)

// DefaultMaxAttempts потолок попыток отправки одной записи outbox
const DefaultMaxAttempts = 5

// DefaultRetention сколько хранятся подтвержденные записи outbox
const DefaultRetention = 7 * 24 * time.Hour

// State состояние диспетчера
type State string

const (
	StateIdle     State = "IDLE"
	StateDraining State = "DRAINING"
)

// LocalStore is what the dispatcher needs from the Local Store.
type LocalStore interface {
	Get(ctx context.Context, t models.EntityType, id string) (models.Record, error)
	MarkSynced(ctx context.Context, t models.EntityType, id string, version int64, sentUpdatedAt time.Time) error
	RecordRemoteVersion(ctx context.Context, t models.EntityType, id string, version int64) error
	ApplyResolved(ctx context.Context, t models.EntityType, payload json.RawMessage, remoteVersion int64) (models.Record, error)
	Delete(ctx context.Context, t models.EntityType, id string) error
}

// Connectivity reports whether the remote service is reachable.
type Connectivity interface {
	Online() bool
}

// DrainResult contains drain cycle results
type DrainResult struct {
	StartedAt   time.Time
	Exhausted   []string // идентификаторы записей, исчерпавших попытки в этом цикле
	Duration    time.Duration
	Attempted   int  // количество обработанных записей
	Committed   int  // подтверждены сервером
	Conflicts   int  // конфликты, прошедшие через resolver
	Failed      int  // неудачные попытки (останутся в очереди)
	Superseded  int  // отправлены, но payload изменился пока запрос был в пути
	Quarantined int  // поврежденный payload
	NeedsReview int  // требуют ручного разрешения
	Pruned      int  // удалено старых подтвержденных записей
	Skipped     bool // другой цикл уже выполнялся
	Offline     bool // нет связи, цикл не запускался
}

// Dispatcher drains the outbox against the remote service.
// At most one drain runs at a time; a call made while draining returns immediately.
type Dispatcher struct {
	outbox       storage.OutboxStorage
	store        LocalStore
	registry     *Registry
	resolver     *conflict.Resolver
	connectivity Connectivity
	metadata     storage.MetadataStorage
	logger       *slog.Logger
	now          func() time.Time
	maxAttempts  int
	retention    time.Duration
	draining     atomic.Bool
}

// DispatcherOption настраивает Dispatcher
type DispatcherOption func(*Dispatcher)

// WithMaxAttempts sets the attempt ceiling
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithRetention sets how long resolved entries are kept; d <= 0 keeps them forever
func WithRetention(retention time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.retention = retention }
}

// WithMetadata stores the time of every drain that reached the server
func WithMetadata(m storage.MetadataStorage) DispatcherOption {
	return func(d *Dispatcher) { d.metadata = m }
}

// WithDispatcherClock overrides the clock (tests)
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	outbox storage.OutboxStorage,
	store LocalStore,
	registry *Registry,
	resolver *conflict.Resolver,
	connectivity Connectivity,
	logger *slog.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		outbox:       outbox,
		store:        store,
		registry:     registry,
		resolver:     resolver,
		connectivity: connectivity,
		logger:       logger,
		now:          time.Now,
		maxAttempts:  DefaultMaxAttempts,
		retention:    DefaultRetention,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxAttempts returns the attempt ceiling
func (d *Dispatcher) MaxAttempts() int { return d.maxAttempts }

// State returns IDLE or DRAINING
func (d *Dispatcher) State() State {
	if d.draining.Load() {
		return StateDraining
	}
	return StateIdle
}

// Drain sends every pending outbox entry, sequentially and in FIFO order.
// The cycle is not cancelled by ctx: it runs to completion over the snapshot
// of pending entries taken at start; per-call timeouts belong to the gateway.
func (d *Dispatcher) Drain(ctx context.Context) (*DrainResult, error) {
	if !d.draining.CompareAndSwap(false, true) {
		d.logger.Debug("Drain already in progress, skipping")
		return &DrainResult{Skipped: true}, nil
	}
	defer d.draining.Store(false)

	if d.connectivity != nil && !d.connectivity.Online() {
		d.logger.Debug("Offline, drain skipped")
		return &DrainResult{Offline: true}, nil
	}

	ctx = context.WithoutCancel(ctx)
	result := &DrainResult{StartedAt: d.now()}

	pending, err := d.outbox.ListPending(ctx, d.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}
	if len(pending) == 0 {
		return result, nil
	}

	d.logger.Info("Starting drain", "pending", len(pending))

	for _, entry := range pending {
		result.Attempted++
		if err := d.process(ctx, entry, result); err != nil {
			// Ошибка хранилища: запись останется в очереди до следующего цикла
			d.logger.Error("Failed to process outbox entry",
				"entry_id", entry.ID,
				"entity_type", entry.EntityType,
				"entity_id", entry.EntityID,
				"error", err)
			result.Failed++
		}
	}

	result.Duration = d.now().Sub(result.StartedAt)

	if result.Committed > 0 && d.metadata != nil {
		if err := d.metadata.SaveLastSyncTime(ctx, d.now()); err != nil {
			d.logger.Warn("Failed to save last sync time", "error", err)
		}
	}
	if result.Committed > 0 && d.retention > 0 {
		pruned, err := d.outbox.PruneResolved(ctx, d.now().Add(-d.retention))
		if err != nil {
			d.logger.Warn("Failed to prune resolved entries", "error", err)
		}
		result.Pruned = pruned
	}

	d.logger.Info("Drain completed",
		"attempted", result.Attempted,
		"committed", result.Committed,
		"conflicts", result.Conflicts,
		"failed", result.Failed,
		"superseded", result.Superseded,
		"quarantined", result.Quarantined,
		"needs_review", result.NeedsReview,
		"exhausted", len(result.Exhausted),
		"pruned", result.Pruned)

	return result, nil
}

// process проводит одну запись через SENDING -> COMMITTED | CONFLICTED -> RESOLVING | FAILED
func (d *Dispatcher) process(ctx context.Context, entry *models.OutboxEntry, result *DrainResult) error {
	log := d.logger.With(
		"entry_id", entry.ID,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"operation", entry.Operation)

	ops, err := d.registry.Lookup(entry.EntityType)
	if err != nil {
		// Ошибка сборки клиента, а не данных: запись остается в очереди и видна как неудачная
		return d.fail(ctx, log, entry, err, result)
	}
	if entry.Operation != models.OpDelete {
		if _, err := models.DecodeRecord(entry.EntityType, entry.Payload); err != nil {
			return d.quarantine(ctx, log, entry, fmt.Errorf("%w: %w", ErrMalformedPayload, err), result)
		}
	}

	sent, err := d.outbox.MarkSending(ctx, entry.ID)
	if err != nil {
		return err
	}

	baseVersion := d.baseVersion(ctx, sent)
	ack, err := send(ctx, ops, sent, baseVersion)

	var conflictErr *api.ConflictError
	switch {
	case err == nil:
		return d.commit(ctx, log, sent, sent.Payload, ack, result)
	case errors.As(err, &conflictErr) && sent.Operation != models.OpDelete:
		result.Conflicts++
		return d.resolve(ctx, log, ops, sent, conflictErr, result)
	default:
		return d.fail(ctx, log, sent, err, result)
	}
}

// baseVersion версия сервера, известная локальной записи
func (d *Dispatcher) baseVersion(ctx context.Context, entry *models.OutboxEntry) int64 {
	if entry.Operation != models.OpUpdate {
		return 0
	}
	rec, err := d.store.Get(ctx, entry.EntityType, entry.EntityID)
	if err != nil {
		return 0
	}
	return rec.Sync().RemoteVersion
}

// commit закрывает запись outbox; payload - то, что фактически ушло на сервер
func (d *Dispatcher) commit(ctx context.Context, log *slog.Logger, entry *models.OutboxEntry, payload json.RawMessage, ack *api.Ack, result *DrainResult) error {
	resolved, err := d.outbox.MarkResolved(ctx, entry.ID, entry.Revision)
	if err != nil {
		return err
	}

	var version int64
	if ack != nil {
		version = ack.Version
	}

	if !resolved {
		// Пользователь изменил запись пока запрос был в пути: запись остается pending
		log.Info("Outbox entry superseded while in flight", "version", version)
		result.Superseded++
		if entry.Operation == models.OpDelete {
			return nil
		}
		return d.store.RecordRemoteVersion(ctx, entry.EntityType, entry.EntityID, version)
	}

	result.Committed++
	log.Debug("Outbox entry committed", "version", version)

	if entry.Operation == models.OpDelete {
		return nil
	}
	return d.store.MarkSynced(ctx, entry.EntityType, entry.EntityID, version, models.PayloadUpdatedAt(payload))
}

// resolve применяет Conflict Resolver и повторяет вызов один раз с итоговой версией
func (d *Dispatcher) resolve(ctx context.Context, log *slog.Logger, ops RemoteOps, entry *models.OutboxEntry, ce *api.ConflictError, result *DrainResult) error {
	strategy := d.resolver.StrategyFor(entry.EntityType)
	log = log.With("strategy", strategy, "remote_version", ce.RemoteVersion)

	// Запись удалена на сервере другим устройством
	if ce.RemoteDeleted && strategy == conflict.RemoteWins {
		log.Info("Remote record deleted, removing local copy")
		if err := d.store.Delete(ctx, entry.EntityType, entry.EntityID); err != nil {
			return err
		}
		resolved, err := d.outbox.MarkResolved(ctx, entry.ID, entry.Revision)
		if err != nil {
			return err
		}
		if resolved {
			result.Committed++
		} else {
			result.Superseded++
		}
		return nil
	}

	remote := conflict.Version{Payload: ce.RemotePayload, UpdatedAt: ce.RemoteUpdatedAt}
	if remote.UpdatedAt.IsZero() {
		remote.UpdatedAt = models.PayloadUpdatedAt(ce.RemotePayload)
	}
	local := conflict.Version{Payload: entry.Payload, UpdatedAt: models.PayloadUpdatedAt(entry.Payload)}
	if ce.RemoteDeleted {
		// Удаленной копии нет: восстанавливаем локальную версию
		remote = conflict.Version{}
	}

	var (
		resolution conflict.Resolution
		err        error
	)
	if ce.RemoteDeleted || d.diverged(local, remote) {
		resolution, err = d.resolver.Resolve(conflict.Context{
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Local:      local,
			Remote:     remote,
		})
	} else {
		// Расхождение только в номере версии: правка та же, стратегия не нужна
		log.Info("Versions within clock tolerance, keeping local payload")
		resolution = conflict.Resolution{Payload: entry.Payload, Strategy: strategy, Decision: conflict.KeepLocal}
	}
	if ce.RemoteDeleted && err == nil {
		resolution.Payload = entry.Payload
	}
	if errors.Is(err, conflict.ErrManualResolutionRequired) {
		log.Warn("Conflict requires manual resolution")
		result.NeedsReview++
		return d.outbox.MarkNeedsReview(ctx, entry.ID, err.Error())
	}
	if err != nil {
		return d.fail(ctx, log, entry, err, result)
	}

	// Пока шел запрос пользователь снова изменил запись: его версия новее результата слияния
	if current, err := d.outbox.GetEntry(ctx, entry.ID); err == nil && current.Revision != entry.Revision {
		log.Info("Outbox entry superseded during conflict resolution")
		result.Superseded++
		return d.store.RecordRemoteVersion(ctx, entry.EntityType, entry.EntityID, ce.RemoteVersion)
	}

	rec, err := d.store.ApplyResolved(ctx, entry.EntityType, resolution.Payload, ce.RemoteVersion)
	if err != nil {
		return d.fail(ctx, log, entry, fmt.Errorf("failed to store resolved record: %w", err), result)
	}
	payload, err := models.EncodePayload(rec)
	if err != nil {
		return d.fail(ctx, log, entry, err, result)
	}

	log.Info("Conflict resolved, retrying", "decision", resolution.Decision)

	ack, err := ops.Update(ctx, entry.EntityID, payload, ce.RemoteVersion)
	if err != nil {
		return d.fail(ctx, log, entry, fmt.Errorf("retry after conflict resolution: %w", err), result)
	}
	return d.commit(ctx, log, entry, payload, ack, result)
}

// diverged сообщает, что стороны правились независимо. Без отметки времени хотя бы
// у одной стороны сравнить их нельзя, и решение остается за стратегией.
func (d *Dispatcher) diverged(local, remote conflict.Version) bool {
	if local.UpdatedAt.IsZero() || remote.UpdatedAt.IsZero() {
		return true
	}
	return d.resolver.DetectConflict(local, remote)
}

func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, entry *models.OutboxEntry, cause error, result *DrainResult) error {
	updated, err := d.outbox.RecordFailure(ctx, entry.ID, cause.Error())
	if err != nil {
		return err
	}
	result.Failed++

	if updated.Attempts >= d.maxAttempts {
		log.Warn("Outbox entry left for operator",
			"attempts", updated.Attempts,
			"error", fmt.Errorf("%w: %w", ErrExhaustedRetries, cause))
		result.Exhausted = append(result.Exhausted, entry.ID)
		return nil
	}

	log.Info("Outbox entry failed, will retry",
		"attempts", updated.Attempts,
		"transient", api.IsTransient(cause),
		"error", cause)
	return nil
}

func (d *Dispatcher) quarantine(ctx context.Context, log *slog.Logger, entry *models.OutboxEntry, cause error, result *DrainResult) error {
	log.Error("Quarantining outbox entry", "error", cause)
	result.Quarantined++
	return d.outbox.Quarantine(ctx, entry.ID, cause.Error())
}
