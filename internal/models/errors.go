package models

import "errors"

var (
	// ErrUnknownEntityType indicates an entity type that has no registered record constructor
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrInvalidOperation indicates an outbox operation other than CREATE/UPDATE/DELETE
	ErrInvalidOperation = errors.New("invalid outbox operation")
)
