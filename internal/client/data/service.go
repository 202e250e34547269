package data

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iudanet/credisync/internal/client/storage"
	"github.com/iudanet/credisync/internal/models"
	"github.com/iudanet/credisync/internal/validation"
)

//go:generate moq -out queue_mock.go . Queue

// LocalStore is the part of the Local Store used by business operations.
type LocalStore interface {
	Get(ctx context.Context, t models.EntityType, id string) (models.Record, error)
	Put(ctx context.Context, rec models.Record) error
	Delete(ctx context.Context, t models.EntityType, id string) error
	Query(ctx context.Context, t models.EntityType, pred func(models.Record) bool) iter.Seq2[models.Record, error]
}

// Queue is the part of the outbox used by business operations.
type Queue interface {
	Enqueue(ctx context.Context, m models.Mutation) (string, error)
	FindUnresolved(ctx context.Context, t models.EntityType, entityID string) (*models.OutboxEntry, error)
}

// ErrNotQueued означает, что запись сохранена локально, но мутация не попала в outbox.
// Запись остается pendingSync и будет поставлена в очередь RequeueOrphans.
var ErrNotQueued = errors.New("saved locally but not queued for sync")

// PaymentReceipt результат регистрации платежа
type PaymentReceipt struct {
	Payment     *models.Payment
	Installment *models.Installment
	Credit      *models.Credit
}

// Service handles client-side business operations: every write goes to the
// Local Store first and is then enqueued for sync. No network call is made.
type Service struct {
	store     LocalStore
	queue     Queue
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option настраивает Service
type Option func(*Service)

// WithClock overrides the clock (tests)
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides id generation (tests)
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a new data service
func NewService(store LocalStore, queue Queue, validator *validation.Validator, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		queue:     queue,
		validator: validator,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save validates rec, writes it locally and enqueues CREATE or UPDATE.
// A record without id gets a fresh UUID. Updates should start from a record
// obtained from the store so that its sync attributes are carried over.
// Returns the record id.
func (s *Service) Save(ctx context.Context, rec models.Record) (string, error) {
	if err := s.validator.Validate(rec); err != nil {
		return "", err
	}
	if err := s.save(ctx, rec); err != nil {
		return rec.RecordID(), err
	}
	return rec.RecordID(), nil
}

// save пишет запись и ставит мутацию в очередь без валидации
func (s *Service) save(ctx context.Context, rec models.Record) error {
	op := models.OpCreate
	if rec.RecordID() == "" {
		rec.SetRecordID(s.newID())
	} else {
		existing, err := s.store.Get(ctx, rec.EntityType(), rec.RecordID())
		switch {
		case err == nil:
			op = models.OpUpdate
			// Версия сервера нужна для следующего UPDATE
			if rec.Sync().RemoteVersion == 0 {
				rec.Sync().RemoteVersion = existing.Sync().RemoteVersion
			}
			if rec.Sync().LastSyncedAt == nil {
				rec.Sync().LastSyncedAt = existing.Sync().LastSyncedAt
			}
		case errors.Is(err, storage.ErrRecordNotFound):
		default:
			return fmt.Errorf("failed to load %s %s: %w", rec.EntityType(), rec.RecordID(), err)
		}
	}

	rec.Touch(s.now())
	rec.Sync().MarkPending()

	if err := s.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", rec.EntityType(), rec.RecordID(), err)
	}

	payload, err := models.EncodePayload(rec)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, rec.Scope(), rec.EntityType(), op, rec.RecordID(), payload)
}

// Delete removes a record locally and enqueues DELETE.
func (s *Service) Delete(ctx context.Context, t models.EntityType, id string) error {
	rec, err := s.store.Get(ctx, t, id)
	if err != nil {
		return fmt.Errorf("failed to load %s %s: %w", t, id, err)
	}
	if err := s.store.Delete(ctx, t, id); err != nil {
		return err
	}
	return s.enqueue(ctx, rec.Scope(), t, models.OpDelete, id, nil)
}

func (s *Service) enqueue(ctx context.Context, scope string, t models.EntityType, op models.Operation, id string, payload []byte) error {
	entryID, err := s.queue.Enqueue(ctx, models.Mutation{
		ScopeID:    scope,
		EntityType: t,
		Operation:  op,
		EntityID:   id,
		Payload:    payload,
	})
	if err != nil {
		s.logger.Error("Failed to enqueue mutation",
			"entity_type", t,
			"entity_id", id,
			"operation", op,
			"error", err)
		return fmt.Errorf("%w: %s %s: %w", ErrNotQueued, t, id, err)
	}

	s.logger.Debug("Mutation enqueued",
		"entry_id", entryID,
		"entity_type", t,
		"entity_id", id,
		"operation", op)
	return nil
}

// RecordPayment registers a field payment: the payment is created and the
// installment and credit balances are reduced. Each of the three records is
// written and enqueued independently; when a later step fails the receipt
// still holds what was saved.
func (s *Service) RecordPayment(ctx context.Context, p *models.Payment) (*PaymentReceipt, error) {
	inst, err := getTyped[*models.Installment](ctx, s.store, models.EntityInstallment, p.InstallmentID)
	if err != nil {
		return nil, err
	}
	credit, err := getTyped[*models.Credit](ctx, s.store, models.EntityCredit, p.CreditID)
	if err != nil {
		return nil, err
	}

	due := inst.Due()
	if err := validation.ValidatePaymentAmount(p.Amount, due); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if p.PaidAt.IsZero() {
		p.PaidAt = now
	}
	if p.ClientID == "" {
		p.ClientID = credit.ClientID
	}
	if p.Kind == "" {
		p.Kind = paymentKind(p.Amount, due)
	}
	if err := s.validator.Validate(p); err != nil {
		return nil, err
	}

	receipt := &PaymentReceipt{}
	if err := s.save(ctx, p); err != nil {
		return receipt, fmt.Errorf("failed to record payment: %w", err)
	}
	receipt.Payment = p

	wasPaid := inst.Status == models.InstallmentPaid
	applyToInstallment(inst, p.Amount, now)
	if err := s.save(ctx, inst); err != nil {
		return receipt, fmt.Errorf("failed to update installment %s: %w", inst.ID, err)
	}
	receipt.Installment = inst

	applyToCredit(credit, p.Amount, !wasPaid && inst.Status == models.InstallmentPaid)
	if err := s.save(ctx, credit); err != nil {
		return receipt, fmt.Errorf("failed to update credit %s: %w", credit.ID, err)
	}
	receipt.Credit = credit

	s.logger.Info("Payment recorded",
		"payment_id", p.ID,
		"credit_id", credit.ID,
		"installment_id", inst.ID,
		"amount", p.Amount.String())
	return receipt, nil
}

func paymentKind(amount, due decimal.Decimal) models.PaymentKind {
	switch amount.Cmp(due) {
	case -1:
		return models.PaymentPartial
	case 1:
		return models.PaymentExtra
	default:
		return models.PaymentRegular
	}
}

func applyToInstallment(inst *models.Installment, amount decimal.Decimal, at time.Time) {
	remaining := decimal.Max(inst.Due().Sub(amount), decimal.Zero)
	inst.PaidAmount = inst.PaidAmount.Add(amount)
	inst.OutstandingBalance = remaining
	inst.PaidAt = &at
	inst.Visited = true
	if remaining.IsZero() {
		inst.Status = models.InstallmentPaid
		inst.DaysOverdue = 0
	} else {
		inst.Status = models.InstallmentPartial
	}
}

func applyToCredit(credit *models.Credit, amount decimal.Decimal, installmentClosed bool) {
	credit.OutstandingBalance = decimal.Max(credit.OutstandingBalance.Sub(amount), decimal.Zero)
	if installmentClosed {
		credit.InstallmentsPaid++
		if credit.InstallmentsPending > 0 {
			credit.InstallmentsPending--
		}
	}
	if credit.OutstandingBalance.IsZero() {
		credit.Status = models.CreditPaidOff
	}
}

// RequeueOrphans enqueues records left pendingSync without an unresolved
// outbox entry (a crash between the local write and the enqueue).
// Returns the number of records queued again.
func (s *Service) RequeueOrphans(ctx context.Context) (int, error) {
	requeued := 0
	pending := func(rec models.Record) bool { return rec.Sync().PendingSync }

	for _, t := range models.EntityTypes() {
		for rec, err := range s.store.Query(ctx, t, pending) {
			if err != nil {
				return requeued, fmt.Errorf("failed to scan %s: %w", t, err)
			}

			_, err := s.queue.FindUnresolved(ctx, t, rec.RecordID())
			if err == nil {
				continue
			}
			if !errors.Is(err, storage.ErrEntryNotFound) {
				return requeued, err
			}

			op := models.OpCreate
			if rec.Sync().RemoteVersion > 0 {
				op = models.OpUpdate
			}
			payload, err := models.EncodePayload(rec)
			if err != nil {
				return requeued, err
			}
			if err := s.enqueue(ctx, rec.Scope(), t, op, rec.RecordID(), payload); err != nil {
				return requeued, err
			}
			requeued++
		}
	}

	if requeued > 0 {
		s.logger.Info("Orphaned records queued for sync", "count", requeued)
	}
	return requeued, nil
}

func getTyped[T models.Record](ctx context.Context, s LocalStore, t models.EntityType, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, &validation.ValidationError{
			Entity: models.EntityPayment,
			Fields: []validation.FieldError{{Field: string(t) + "Id", Message: "This field is required"}},
		}
	}
	rec, err := s.Get(ctx, t, id)
	if err != nil {
		return zero, fmt.Errorf("failed to load %s %s: %w", t, id, err)
	}
	typed, ok := rec.(T)
	if !ok {
		return zero, fmt.Errorf("record %s has type %T", id, rec)
	}
	return typed, nil
}
