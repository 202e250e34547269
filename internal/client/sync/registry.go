package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iudanet/credisync/internal/client/api"
	"github.com/iudanet/credisync/internal/models"
)

//go:generate moq -out remoteops_mock.go . RemoteOps

// RemoteOps is the remote create/update/delete surface of one entity type.
type RemoteOps interface {
	// Create sends a new record keyed by its client-generated id
	Create(ctx context.Context, id string, payload json.RawMessage) (*api.Ack, error)

	// Update sends the new state of a record based on server version baseVersion
	Update(ctx context.Context, id string, payload json.RawMessage, baseVersion int64) (*api.Ack, error)

	// Delete removes a record
	Delete(ctx context.Context, id string) (*api.Ack, error)
}

// Registry maps entity types to their remote operations.
type Registry struct {
	ops map[models.EntityType]RemoteOps
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[models.EntityType]RemoteOps)}
}

// NewRegistryFromClient registers every known entity type against the HTTP client.
func NewRegistryFromClient(c *api.Client) *Registry {
	r := NewRegistry()
	for _, t := range models.EntityTypes() {
		r.Register(t, c.Entity(t))
	}
	return r
}

// Register binds ops to entity type t, replacing any previous binding.
func (r *Registry) Register(t models.EntityType, ops RemoteOps) {
	r.ops[t] = ops
}

// Lookup returns the operations bound to t.
func (r *Registry) Lookup(t models.EntityType) (RemoteOps, error) {
	ops, ok := r.ops[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredEntity, t)
	}
	return ops, nil
}

// send invokes the remote operation matching the outbox entry.
func send(ctx context.Context, ops RemoteOps, entry *models.OutboxEntry, baseVersion int64) (*api.Ack, error) {
	switch entry.Operation {
	case models.OpCreate:
		return ops.Create(ctx, entry.EntityID, entry.Payload)
	case models.OpUpdate:
		return ops.Update(ctx, entry.EntityID, entry.Payload, baseVersion)
	case models.OpDelete:
		return ops.Delete(ctx, entry.EntityID)
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidOperation, entry.Operation)
	}
}
