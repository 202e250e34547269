package storage

import "errors"

// Common client storage errors
var (
	// ErrRecordNotFound indicates that an entity record does not exist in the local store
	ErrRecordNotFound = errors.New("record not found")

	// ErrEntryNotFound indicates that an outbox entry was not found
	ErrEntryNotFound = errors.New("outbox entry not found")

	// ErrUnknownTable indicates a snapshot table that does not map to any local bucket
	ErrUnknownTable = errors.New("unknown table")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
