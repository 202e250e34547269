package storage

import (
	"context"
	"time"

	"github.com/iudanet/credisync/internal/models"
)

// OutboxStorage defines interface for the durable sync queue.
type OutboxStorage interface {
	// Enqueue appends a mutation, coalescing it with the unresolved entry of the same entity.
	// Returns the id of the entry that now carries the mutation, or "" when the
	// mutation cancelled a CREATE that was never sent.
	Enqueue(ctx context.Context, m models.Mutation) (string, error)

	// GetEntry retrieves an entry by id
	// Returns ErrEntryNotFound if entry doesn't exist
	GetEntry(ctx context.Context, id string) (*models.OutboxEntry, error)

	// FindUnresolved returns the unresolved entry for an entity
	// Returns ErrEntryNotFound if there is none
	FindUnresolved(ctx context.Context, t models.EntityType, entityID string) (*models.OutboxEntry, error)

	// ListPending returns unresolved entries with attempts < maxAttempts in FIFO order,
	// excluding entries waiting for manual review
	ListPending(ctx context.Context, maxAttempts int) ([]*models.OutboxEntry, error)

	// ListEntries returns every entry (resolved included) in FIFO order
	ListEntries(ctx context.Context) ([]*models.OutboxEntry, error)

	// MarkSending stamps lastAttemptAt before the remote call and returns the entry as sent
	MarkSending(ctx context.Context, id string) (*models.OutboxEntry, error)

	// MarkResolved resolves the entry if its revision still equals revision.
	// Returns false when the payload was coalesced while the call was in flight;
	// a superseded CREATE becomes UPDATE since the record now exists remotely.
	MarkResolved(ctx context.Context, id string, revision int) (bool, error)

	// RecordFailure increments attempts and stores the error message
	RecordFailure(ctx context.Context, id string, reason string) (*models.OutboxEntry, error)

	// Quarantine resolves an entry whose payload cannot be decoded, keeping the reason
	Quarantine(ctx context.Context, id string, reason string) error

	// MarkNeedsReview parks the entry until an operator resolves the conflict
	MarkNeedsReview(ctx context.Context, id string, reason string) error

	// ResetAttempts re-arms an exhausted or parked entry
	ResetAttempts(ctx context.Context, id string) error

	// PruneResolved deletes resolved entries resolved before olderThan
	PruneResolved(ctx context.Context, olderThan time.Time) (int, error)

	// Stats returns queue counters
	Stats(ctx context.Context, maxAttempts int) (models.OutboxStats, error)
}
