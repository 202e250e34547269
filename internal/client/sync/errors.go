package sync

import "errors"

var (
	// ErrExhaustedRetries indicates that an outbox entry reached the attempt ceiling.
	// The entry stays in the outbox for operator visibility.
	ErrExhaustedRetries = errors.New("outbox entry exhausted retries")

	// ErrMalformedPayload indicates an outbox payload that cannot be decoded; the entry is quarantined
	ErrMalformedPayload = errors.New("malformed outbox payload")

	// ErrUnregisteredEntity indicates an outbox entry whose entity type has no remote operations
	ErrUnregisteredEntity = errors.New("no remote operations registered for entity type")
)
