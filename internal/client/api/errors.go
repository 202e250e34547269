package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/credisync/internal/models"
)

// ConflictError reports that the remote record changed since the local baseline.
// It carries the server copy so the conflict can be resolved without another round trip.
type ConflictError struct {
	RemoteUpdatedAt time.Time
	EntityType      models.EntityType
	EntityID        string
	RemotePayload   json.RawMessage
	RemoteVersion   int64
	RemoteDeleted   bool
}

// Error implements error
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %s: remote version %d", e.EntityType, e.EntityID, e.RemoteVersion)
}

// TransientError reports a network failure or a 5xx/429 answer; the call may be retried.
type TransientError struct {
	Err        error
	Op         string
	StatusCode int
}

// Error implements error
func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: server unavailable (%d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause
func (e *TransientError) Unwrap() error { return e.Err }

// RejectedError reports a 4xx answer other than 409: the server refused the payload.
type RejectedError struct {
	Op         string
	Message    string
	StatusCode int
}

// Error implements error
func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: rejected by server (%d): %s", e.Op, e.StatusCode, e.Message)
}

// IsConflict reports whether err is a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsTransient reports whether err is a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
